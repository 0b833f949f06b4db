package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/shaun/assetsync/internal/auth"
	"github.com/shaun/assetsync/internal/config"
	"github.com/shaun/assetsync/internal/github"
	"github.com/shaun/assetsync/internal/sync"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile      string
	logLevel     string
	logFormat    string
	workspaceDir string
)

func main() {
	_ = godotenv.Load(".env")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", sync.UserMessage(err))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "assetsync",
	Short: "Keep workspace assets in sync with GitHub repositories",
	Long: `assetsync mirrors prompt, agent and skill files from one or more GitHub
repositories into the current workspace.

It records what it installed in .copilot-assets.json, so that remote updates
and local edits can be told apart. Local edits are never overwritten unless
explicitly forced.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "assetsync %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./assetsync.yaml, then $HOME/.config/assetsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&workspaceDir, "workspace", "", "workspace root (overrides the config file)")

	rootCmd.AddCommand(versionCmd)
	addCommands(rootCmd)
}

func setupLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:   level,
			NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
		})
	}
	return slog.New(handler)
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	if _, err := os.Stat("assetsync.yaml"); err == nil {
		return "assetsync.yaml", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "assetsync", "config.yaml"), nil
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	logger.Debug("loading configuration", "path", path)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if workspaceDir != "" {
		cfg.Workspace = workspaceDir
	}
	logger.Debug("configuration loaded",
		"workspace", cfg.Workspace,
		"repositories", len(cfg.Repos()),
		"destination", cfg.Destinations.Default)
	return cfg, nil
}

// app is the wired object graph shared by all commands.
type app struct {
	cfg      *config.Config
	manifest *sync.Manifest
	orch     *sync.Orchestrator
	logger   *slog.Logger
}

// newApp wires the engine. interactive enables the terminal token prompt.
func newApp(logger *slog.Logger, interactive bool) (*app, error) {
	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	root, err := filepath.Abs(cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	var opts []auth.ProviderOption
	if interactive {
		opts = append(opts, auth.WithPrompt(auth.TerminalPrompt(os.Stdin, os.Stderr)))
	}
	client := github.NewClient(auth.NewProvider(cfg.GitHub, opts...), cfg.APIBaseURL())

	ws := sync.NewWorkspace(root)
	manifest := sync.NewManifest(root, logger)
	manifest.Load()

	reconciler := sync.NewReconciler(client, manifest, ws, cfg, logger)
	mutator := sync.NewMutator(client, manifest, ws, cfg.Destinations, logger)
	return &app{
		cfg:      cfg,
		manifest: manifest,
		orch:     sync.NewOrchestrator(cfg, reconciler, mutator, logger),
		logger:   logger,
	}, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
