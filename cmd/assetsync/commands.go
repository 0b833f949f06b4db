package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shaun/assetsync/internal/api"
	"github.com/shaun/assetsync/internal/auth"
	"github.com/shaun/assetsync/internal/sync"
	"github.com/spf13/cobra"
)

var (
	allFlag      bool
	repoFilter   string
	statusFilter string
	listenAddr   string
)

func addCommands(root *cobra.Command) {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Check every repository and print the asset tree",
		Args:  cobra.NoArgs,
		RunE:  runSync,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List assets with their status",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	listCmd.Flags().StringVar(&statusFilter, "status", "", "only show assets in this status")

	downloadCmd := &cobra.Command{
		Use:   "download [owner/repo remote-path]",
		Short: "Install an asset, or every not-installed asset with --all",
		Args:  assetOrAll,
		RunE:  runDownload,
	}
	downloadCmd.Flags().BoolVar(&allFlag, "all", false, "download every not-installed asset")
	downloadCmd.Flags().StringVar(&repoFilter, "repo", "", "with --all, only this owner/repo")

	updateCmd := &cobra.Command{
		Use:   "update [owner/repo remote-path]",
		Short: "Update an asset unless it has local edits, or all with --all",
		Args:  assetOrAll,
		RunE:  runUpdate,
	}
	updateCmd.Flags().BoolVar(&allFlag, "all", false, "update every asset with a pending update")

	root.AddCommand(
		syncCmd,
		listCmd,
		downloadCmd,
		updateCmd,
		assetCommand("force-update", "Overwrite an asset with the remote version, discarding local edits", (*sync.Orchestrator).ForceUpdate),
		assetCommand("skip", "Accept the current remote version without changing local files", (*sync.Orchestrator).Skip),
		assetCommand("remove", "Delete an installed asset and forget it", (*sync.Orchestrator).Remove),
		serveCommand(),
	)
}

func assetOrAll(cmd *cobra.Command, args []string) error {
	if all, _ := cmd.Flags().GetBool("all"); all {
		return cobra.NoArgs(cmd, args)
	}
	return cobra.ExactArgs(2)(cmd, args)
}

// prepare wires the app and runs a sync so that assets can be looked up.
func prepare(ctx context.Context) (*app, error) {
	a, err := newApp(setupLogger(), true)
	if err != nil {
		return nil, err
	}
	a.orch.Sync(ctx)
	return a, nil
}

func (a *app) find(repoID, remotePath string) (sync.Asset, error) {
	for _, r := range a.orch.Results() {
		if r.Repo.ID() == repoID && r.Error != "" {
			return sync.Asset{}, fmt.Errorf("%s: %s", repoID, r.Error)
		}
	}
	asset, ok := a.orch.FindAsset(repoID, remotePath)
	if !ok {
		return sync.Asset{}, fmt.Errorf("%w: no asset %s in %s", sync.ErrNotFound, remotePath, repoID)
	}
	return asset, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	a, err := newApp(setupLogger(), true)
	if err != nil {
		return err
	}
	a.orch.Sync(ctx)
	printTree(cmd.OutOrStdout(), a.orch.BuildTree())
	printSummary(cmd.OutOrStdout(), a.orch.AllAssets())
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	a, err := prepare(ctx)
	if err != nil {
		return err
	}
	assets := a.orch.AllAssets()
	if statusFilter != "" {
		assets = sync.CollectByStatus(assets, sync.Status(statusFilter))
	}
	printAssets(cmd.OutOrStdout(), assets, a.manifest, time.Now())
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	a, err := prepare(ctx)
	if err != nil {
		return err
	}
	if allFlag {
		report, err := a.orch.DownloadAll(ctx, repoFilter)
		printReport(cmd.OutOrStdout(), report)
		return err
	}
	asset, err := a.find(args[0], args[1])
	if err != nil {
		return err
	}
	if err := a.orch.Download(ctx, asset); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", asset.LocalPath)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	a, err := prepare(ctx)
	if err != nil {
		return err
	}
	if allFlag {
		report, err := a.orch.UpdateAll(ctx)
		printReport(cmd.OutOrStdout(), report)
		return err
	}
	asset, err := a.find(args[0], args[1])
	if err != nil {
		return err
	}
	res, err := a.orch.Update(ctx, asset)
	if err != nil {
		return err
	}
	if res == sync.UpdateConflict {
		return fmt.Errorf("%s has local edits; use force-update to overwrite or skip to keep them", asset.LocalPath)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", asset.LocalPath)
	return nil
}

type assetOp func(*sync.Orchestrator, context.Context, sync.Asset) error

func assetCommand(name, short string, op assetOp) *cobra.Command {
	return &cobra.Command{
		Use:   name + " owner/repo remote-path",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupSignalHandler()
			defer cancel()

			a, err := prepare(ctx)
			if err != nil {
				return err
			}
			asset, err := a.find(args[0], args[1])
			if err != nil {
				return err
			}
			if err := op(a.orch, ctx, asset); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, asset.LocalPath)
			return nil
		},
	}
}

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control API",
		Long: `Serve exposes sync, asset listing and the asset operations over HTTP.
When sync.check_on_startup is set, one background check runs at start;
it never prompts for credentials and only logs failures.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides serve.listen_addr)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	a, err := newApp(logger, false)
	if err != nil {
		return err
	}
	a.orch.OnSync(func(results []sync.SyncResult) {
		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		logger.Info("status", "repositories", len(results), "failed", failed, "updates", a.orch.UpdateCount())
	})

	handler := api.NewHandler(a.orch, a.cfg.HTMLBaseURL(), logger)
	router := api.NewRouter(handler, auth.Middleware(a.cfg.Serve.Username, a.cfg.Serve.Password, "local"))

	addr := a.cfg.Serve.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	if a.cfg.CheckOnStartup() {
		go startupCheck(ctx, a)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	}
}

// startupCheck runs one silent sync; failures are logged only.
func startupCheck(ctx context.Context, a *app) {
	for _, r := range a.orch.Sync(auth.WithSilent(ctx)) {
		if r.Error != "" {
			a.logger.Debug("startup check failed", "repo", r.Repo.ID(), "kind", r.ErrorKind, "error", r.Error)
		}
	}
}
