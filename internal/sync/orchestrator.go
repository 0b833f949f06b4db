package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/shaun/assetsync/internal/config"
	"golang.org/x/sync/errgroup"
)

// SyncResult is the reconciliation outcome of one repository. A failed
// repository carries Error and ErrorKind and no assets.
type SyncResult struct {
	Repo      config.Repository `json:"repo"`
	Assets    []Asset           `json:"assets"`
	Error     string            `json:"error,omitempty"`
	ErrorKind ErrorKind         `json:"errorKind,omitempty"`
}

// BulkReport summarizes DownloadAll and UpdateAll.
type BulkReport struct {
	Downloaded int `json:"downloaded,omitempty"`
	Updated    int `json:"updated,omitempty"`
	Conflicts  int `json:"conflicts,omitempty"`
	Failed     int `json:"failed,omitempty"`
}

// Orchestrator reconciles all configured repositories and owns the last
// result set.
type Orchestrator struct {
	cfg        *config.Config
	reconciler *Reconciler
	mutator    *Mutator
	logger     *slog.Logger

	syncing atomic.Bool

	mu        sync.RWMutex
	results   []SyncResult
	listeners []func([]SyncResult)
}

func NewOrchestrator(cfg *config.Config, reconciler *Reconciler, mutator *Mutator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg,
		reconciler: reconciler,
		mutator:    mutator,
		logger:     logger,
		results:    []SyncResult{},
	}
}

// OnSync registers fn to receive every completed result set.
func (o *Orchestrator) OnSync(fn func([]SyncResult)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Syncing reports whether a sync is in flight.
func (o *Orchestrator) Syncing() bool {
	return o.syncing.Load()
}

// Results returns the last result set.
func (o *Orchestrator) Results() []SyncResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.results)
}

// Sync reconciles every repository concurrently. A call made while another
// is in flight returns the previous results immediately. Failures are
// reported per repository; results keep configuration order.
func (o *Orchestrator) Sync(ctx context.Context) []SyncResult {
	if !o.syncing.CompareAndSwap(false, true) {
		return o.Results()
	}
	defer o.syncing.Store(false)

	repos := o.cfg.Repos()
	results := make([]SyncResult, len(repos))

	var g errgroup.Group
	if n := o.cfg.Sync.Concurrency; n > 0 {
		g.SetLimit(n)
	}
	for i, repo := range repos {
		g.Go(func() error {
			results[i] = o.syncRepo(ctx, repo)
			return nil
		})
	}
	_ = g.Wait()

	o.mu.Lock()
	o.results = results
	listeners := slices.Clone(o.listeners)
	o.mu.Unlock()

	o.logger.Info("sync completed", "repositories", len(results), "updates", o.UpdateCount())
	for _, fn := range listeners {
		fn(slices.Clone(results))
	}
	return slices.Clone(results)
}

func (o *Orchestrator) syncRepo(ctx context.Context, repo config.Repository) (res SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			res = o.failed(repo, fmt.Errorf("panic during reconciliation: %v", r))
		}
	}()

	nodes, err := o.reconciler.FetchTree(ctx, repo)
	if err != nil {
		return o.failed(repo, err)
	}
	assets, err := o.reconciler.Reconcile(repo, nodes)
	if err != nil {
		return o.failed(repo, err)
	}
	o.logger.Debug("repository reconciled", "repo", repo.ID(), "assets", len(assets))
	return SyncResult{Repo: repo, Assets: assets}
}

func (o *Orchestrator) failed(repo config.Repository, err error) SyncResult {
	kind := ClassifyError(err)
	o.logger.Warn("repository sync failed", "repo", repo.ID(), "kind", kind, "error", err)
	return SyncResult{Repo: repo, Assets: []Asset{}, Error: err.Error(), ErrorKind: kind}
}

// AllAssets flattens the last results.
func (o *Orchestrator) AllAssets() []Asset {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []Asset
	for _, r := range o.results {
		out = append(out, r.Assets...)
	}
	return out
}

// UpdateCount counts assets that are update-available or locally-modified.
func (o *Orchestrator) UpdateCount() int {
	assets := o.AllAssets()
	return CountByStatus(assets, StatusUpdateAvailable) + CountByStatus(assets, StatusLocallyModified)
}

// FindAsset looks up an asset of the last results by repository ID and
// remote path.
func (o *Orchestrator) FindAsset(repoID, remotePath string) (Asset, bool) {
	for _, a := range o.AllAssets() {
		if a.Repo.ID() == repoID && a.RemotePath == remotePath {
			return a, true
		}
	}
	return Asset{}, false
}

// Download installs a and re-syncs.
func (o *Orchestrator) Download(ctx context.Context, a Asset) error {
	defer o.Sync(ctx)
	return o.mutator.Download(ctx, a)
}

// ForceUpdate overwrites a and re-syncs.
func (o *Orchestrator) ForceUpdate(ctx context.Context, a Asset) error {
	defer o.Sync(ctx)
	return o.mutator.ForceUpdate(ctx, a)
}

// Update updates a unless it conflicts, then re-syncs.
func (o *Orchestrator) Update(ctx context.Context, a Asset) (UpdateResult, error) {
	defer o.Sync(ctx)
	return o.mutator.Update(ctx, a)
}

// Skip accepts the remote identity of a without touching files, then re-syncs.
func (o *Orchestrator) Skip(ctx context.Context, a Asset) error {
	defer o.Sync(ctx)
	return o.mutator.Skip(a)
}

// Remove deletes a and re-syncs.
func (o *Orchestrator) Remove(ctx context.Context, a Asset) error {
	defer o.Sync(ctx)
	return o.mutator.Remove(a)
}

// DownloadAll downloads every not-installed asset, optionally only those
// of repoID, one at a time. Failures are counted and joined into the
// returned error; the remaining assets are still attempted.
func (o *Orchestrator) DownloadAll(ctx context.Context, repoID string) (BulkReport, error) {
	defer o.Sync(ctx)

	var (
		report BulkReport
		errs   []error
	)
	for _, a := range CollectByStatus(o.AllAssets(), StatusNotInstalled) {
		if repoID != "" && a.Repo.ID() != repoID {
			continue
		}
		if err := o.mutator.Download(ctx, a); err != nil {
			report.Failed++
			errs = append(errs, err)
			continue
		}
		report.Downloaded++
	}
	return report, errors.Join(errs...)
}

// UpdateAll updates every update-available or locally-modified asset, one
// at a time. Conflicting assets are counted and left untouched.
func (o *Orchestrator) UpdateAll(ctx context.Context) (BulkReport, error) {
	defer o.Sync(ctx)

	var (
		report BulkReport
		errs   []error
	)
	for _, a := range o.AllAssets() {
		if a.Status != StatusUpdateAvailable && a.Status != StatusLocallyModified {
			continue
		}
		res, err := o.mutator.Update(ctx, a)
		if err != nil {
			report.Failed++
			errs = append(errs, err)
			continue
		}
		switch res {
		case UpdateApplied:
			report.Updated++
		case UpdateConflict:
			report.Conflicts++
		}
	}
	return report, errors.Join(errs...)
}
