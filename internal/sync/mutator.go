package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/shaun/assetsync/internal/config"
	"github.com/shaun/assetsync/internal/paths"
)

// UpdateResult is the outcome of Mutator.Update.
type UpdateResult string

const (
	UpdateApplied  UpdateResult = "updated"
	UpdateConflict UpdateResult = "conflict"
)

// Mutator downloads, updates, skips and removes assets. Every operation
// ends with a manifest save; operations are serialized so that two saves
// never overlap.
type Mutator struct {
	client   RemoteClient
	manifest *Manifest
	ws       *Workspace
	mapping  config.DestinationConfig
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

func NewMutator(client RemoteClient, manifest *Manifest, ws *Workspace, mapping config.DestinationConfig, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{
		client:   client,
		manifest: manifest,
		ws:       ws,
		mapping:  mapping,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Mutator) normalize(a Asset) Asset {
	if a.LocalPath == "" {
		a.LocalPath = paths.ResolveDestination(a.RemotePath, m.mapping)
	}
	return a
}

// Download installs the asset and records fresh manifest entries.
func (m *Mutator) Download(ctx context.Context, a Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.install(ctx, m.normalize(a), false)
}

// ForceUpdate overwrites local content whatever its state, keeping the
// original installedAt.
func (m *Mutator) ForceUpdate(ctx context.Context, a Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.install(ctx, m.normalize(a), true)
}

// Update behaves like ForceUpdate when the local content still matches the
// manifest, and otherwise changes nothing and reports UpdateConflict.
func (m *Mutator) Update(ctx context.Context, a Asset) (UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a = m.normalize(a)
	drifted, err := m.drifted(a)
	if err != nil {
		return "", err
	}
	if drifted {
		m.logger.Info("update blocked by local edits", "repo", a.Repo.ID(), "path", a.LocalPath)
		return UpdateConflict, nil
	}
	if err := m.install(ctx, a, true); err != nil {
		return "", err
	}
	return UpdateApplied, nil
}

// Skip records the asset's current remote identity without touching local
// files, so the update notice disappears until the remote changes again.
func (m *Mutator) Skip(a Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a = m.normalize(a)
	key := a.ManifestKey()
	entry, ok := m.manifest.Get(key)
	if !ok {
		return nil
	}
	entry.RemoteSHA = a.RemoteSHA
	entry.UpdatedAt = m.now()
	m.manifest.Set(key, entry)
	if err := m.manifest.Save(); err != nil {
		return err
	}
	m.logger.Info("update skipped", "repo", a.Repo.ID(), "path", a.LocalPath)
	return nil
}

// Remove deletes local files and their manifest entries. Files already
// gone are ignored.
func (m *Mutator) Remove(a Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a = m.normalize(a)
	if !a.IsBundle {
		if err := m.ws.Remove(a.LocalPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", a.LocalPath, err)
		}
		m.manifest.Remove(a.LocalPath)
	} else {
		for _, p := range a.BundleFiles {
			local := a.memberLocalPath(p)
			if err := m.ws.Remove(local); err != nil {
				return fmt.Errorf("failed to remove %s: %w", local, err)
			}
			m.manifest.Remove(local)
			m.ws.PruneDirs(path.Dir(local), a.LocalPath)
		}
		m.manifest.Remove(a.ManifestKey())
	}
	if err := m.manifest.Save(); err != nil {
		return err
	}
	m.logger.Info("asset removed", "repo", a.Repo.ID(), "path", a.LocalPath)
	return nil
}

// drifted reports whether the local copy no longer matches the hash
// recorded at last sync. Missing entries or files never count as drift.
func (m *Mutator) drifted(a Asset) (bool, error) {
	entry, ok := m.manifest.Get(a.ManifestKey())
	if !ok {
		return false, nil
	}
	if !a.IsBundle {
		if !m.ws.Exists(a.LocalPath) {
			return false, nil
		}
		h, err := m.ws.HashFile(a.LocalPath)
		if err != nil {
			return false, fmt.Errorf("failed to hash %s: %w", a.LocalPath, err)
		}
		return h != entry.LocalContentHash, nil
	}
	if !m.ws.Exists(m.markerLocalPath(a)) {
		return false, nil
	}
	return CombinedLocalHash(m.ws.FS(), a.LocalPath, a.BundleFiles) != entry.LocalContentHash, nil
}

func (m *Mutator) markerLocalPath(a Asset) string {
	for _, p := range a.BundleFiles {
		if strings.EqualFold(path.Base(p), bundleMarker) {
			return a.memberLocalPath(p)
		}
	}
	return a.ManifestKey()
}

func (m *Mutator) source(a Asset, remotePath string) Source {
	return Source{
		Owner:  a.Repo.Owner,
		Repo:   a.Repo.Repo,
		Branch: a.Repo.Branch,
		Path:   remotePath,
	}
}

func (m *Mutator) entry(a Asset, key, remotePath, remoteSHA, localHash string, preserve bool) ManifestEntry {
	now := m.now()
	e := ManifestEntry{
		Source:           m.source(a, remotePath),
		RemoteSHA:        remoteSHA,
		LocalContentHash: localHash,
		InstalledAt:      now,
		UpdatedAt:        now,
	}
	if prev, ok := m.manifest.Get(key); ok && preserve && !prev.InstalledAt.IsZero() {
		e.InstalledAt = prev.InstalledAt
	}
	return e
}

func (m *Mutator) install(ctx context.Context, a Asset, preserve bool) error {
	if a.IsBundle {
		return m.installBundle(ctx, a, preserve)
	}

	f, err := m.client.GetFileContent(ctx, a.Repo.Owner, a.Repo.Repo, a.RemotePath, a.Repo.Branch)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", a.RemotePath, err)
	}
	if err := m.ws.WriteFile(a.LocalPath, f.Content); err != nil {
		return fmt.Errorf("failed to write %s: %w", a.LocalPath, err)
	}

	m.manifest.Set(a.LocalPath, m.entry(a, a.LocalPath, a.RemotePath, f.SHA, ContentHash(f.Content), preserve))
	if err := m.manifest.Save(); err != nil {
		return err
	}
	m.logger.Info("asset installed", "repo", a.Repo.ID(), "path", a.LocalPath, "sha", f.SHA)
	return nil
}

// installBundle fetches every member before writing anything, and only
// touches the manifest once all files are on disk.
func (m *Mutator) installBundle(ctx context.Context, a Asset, preserve bool) error {
	if len(a.BundleFiles) == 0 {
		return fmt.Errorf("bundle %s has no files", a.RemotePath)
	}

	files := make([]*RemoteFile, len(a.BundleFiles))
	for i, p := range a.BundleFiles {
		f, err := m.client.GetFileContent(ctx, a.Repo.Owner, a.Repo.Repo, p, a.Repo.Branch)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", p, err)
		}
		files[i] = f
	}

	members := make([]Member, len(files))
	staged := make(map[string]ManifestEntry, len(files)+1)
	for i, f := range files {
		remotePath := a.BundleFiles[i]
		local := a.memberLocalPath(remotePath)
		if err := m.ws.WriteFile(local, f.Content); err != nil {
			return fmt.Errorf("failed to write %s: %w", local, err)
		}
		members[i] = Member{Path: remotePath, SHA: f.SHA}
		staged[local] = m.entry(a, local, remotePath, f.SHA, ContentHash(f.Content), preserve)
	}

	key := a.ManifestKey()
	combinedRemote := CombinedRemoteHash(members)
	combinedLocal := CombinedLocalHash(m.ws.FS(), a.LocalPath, a.BundleFiles)
	synthetic := m.entry(a, key, a.RemotePath, combinedRemote, combinedLocal, preserve)

	for local, e := range staged {
		m.manifest.Set(local, e)
	}
	// written last: it shares its key with the SKILL.md member entry
	m.manifest.Set(key, synthetic)
	if err := m.manifest.Save(); err != nil {
		return err
	}
	m.logger.Info("bundle installed", "repo", a.Repo.ID(), "path", a.LocalPath, "files", len(files))
	return nil
}
