package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/shaun/assetsync/internal/config"
	"github.com/shaun/assetsync/internal/paths"
)

// Reconciler lists remote trees and derives every asset's status from the
// remote identity, the manifest and the live workspace. It never writes.
type Reconciler struct {
	client   RemoteClient
	manifest *Manifest
	ws       *Workspace
	cfg      *config.Config
	excluder *paths.Excluder
	logger   *slog.Logger
}

func NewReconciler(client RemoteClient, manifest *Manifest, ws *Workspace, cfg *config.Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		client:   client,
		manifest: manifest,
		ws:       ws,
		cfg:      cfg,
		excluder: paths.NewExcluder(cfg.Files.Exclude),
		logger:   logger,
	}
}

// Resolve maps a remote path onto its local destination.
func (r *Reconciler) Resolve(remotePath string) string {
	return paths.ResolveDestination(remotePath, r.cfg.Destinations)
}

// FetchTree lists the repository and scopes the result to its root, depth
// and exclude settings.
func (r *Reconciler) FetchTree(ctx context.Context, repo config.Repository) ([]RemoteNode, error) {
	tree, err := r.client.ListTree(ctx, repo.Owner, repo.Repo, repo.Branch)
	if err != nil {
		return nil, err
	}
	if tree.Truncated {
		r.logger.Warn("remote tree listing truncated, some files are missing", "repo", repo.ID(), "branch", repo.Branch)
	}
	return ScopeTree(tree.Nodes, repo.Path, r.cfg.MaxDepth(), r.excluder), nil
}

// ScopeTree keeps blobs under root whose depth below root is at most
// maxDepth and that are not excluded.
func ScopeTree(nodes []RemoteNode, root string, maxDepth int, ex *paths.Excluder) []RemoteNode {
	var out []RemoteNode
	for _, n := range nodes {
		if n.Type != NodeBlob {
			continue
		}
		rel, ok := paths.WithinRoot(n.Path, root)
		if !ok || paths.Depth(rel) > maxDepth {
			continue
		}
		if ex.Excluded(n.Path) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Reconcile groups nodes into assets and computes their status. Bundles
// come first, then regular files.
func (r *Reconciler) Reconcile(repo config.Repository, nodes []RemoteNode) ([]Asset, error) {
	entries := r.manifest.All()
	bundles, regular := Partition(nodes, r.cfg.Files.Extensions, r.logger)

	assets := make([]Asset, 0, len(bundles)+len(regular))
	for _, b := range bundles {
		assets = append(assets, r.bundleAsset(repo, b, entries))
	}
	for _, n := range regular {
		a, err := r.fileAsset(repo, n, entries)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

func (r *Reconciler) bundleAsset(repo config.Repository, b BundleCandidate, entries map[string]ManifestEntry) Asset {
	members := make([]Member, len(b.Members))
	for i, m := range b.Members {
		members[i] = Member{Path: m.Path, SHA: m.SHA}
	}
	a := Asset{
		RemotePath:  b.Prefix,
		RemoteSHA:   CombinedRemoteHash(members),
		FileName:    b.Name,
		Repo:        repo,
		LocalPath:   r.Resolve(b.Prefix),
		IsBundle:    true,
		BundleFiles: b.MemberPaths(),
	}

	marker, _ := b.Marker()
	entry, ok := entries[a.ManifestKey()]
	a.Status = DeriveStatus(entry, ok, r.ws.Exists(a.memberLocalPath(marker.Path)), a.RemoteSHA, func() (string, error) {
		return CombinedLocalHash(r.ws.FS(), a.LocalPath, a.BundleFiles), nil
	})
	return a
}

func (r *Reconciler) fileAsset(repo config.Repository, n RemoteNode, entries map[string]ManifestEntry) (Asset, error) {
	a := Asset{
		RemotePath: n.Path,
		RemoteSHA:  n.SHA,
		FileName:   path.Base(n.Path),
		Repo:       repo,
		LocalPath:  r.Resolve(n.Path),
	}

	var hashErr error
	entry, ok := entries[a.LocalPath]
	a.Status = DeriveStatus(entry, ok, r.ws.Exists(a.LocalPath), a.RemoteSHA, func() (string, error) {
		h, err := r.ws.HashFile(a.LocalPath)
		hashErr = err
		return h, err
	})
	if hashErr != nil {
		return Asset{}, fmt.Errorf("failed to hash %s: %w", a.LocalPath, hashErr)
	}
	return a, nil
}

// DeriveStatus is the status truth table. localHash is only called when the
// remote identity moved away from the recorded one.
func DeriveStatus(entry ManifestEntry, hasEntry, localExists bool, remoteSHA string, localHash func() (string, error)) Status {
	switch {
	case !hasEntry, !localExists:
		return StatusNotInstalled
	case entry.RemoteSHA == remoteSHA:
		return StatusUpToDate
	}
	h, err := localHash()
	if err != nil || h != entry.LocalContentHash {
		return StatusLocallyModified
	}
	return StatusUpdateAvailable
}
