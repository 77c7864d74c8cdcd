package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tickdown/tickdown/pkg/auth"
	"github.com/tickdown/tickdown/pkg/config"
	"github.com/tickdown/tickdown/pkg/hierarchy"
	"github.com/tickdown/tickdown/pkg/sync"
	"github.com/tickdown/tickdown/pkg/ticktick"
)

const version = "0.2.0"

var (
	flagTitleInFilename bool
	flagOutput          string
	flagVerbose         bool
)

// errPartial marks a run that finished but skipped tasks or failed file
// operations; the process still exits non-zero.
var errPartial = errors.New("completed with per-item failures")

var rootCmd = &cobra.Command{
	Use:   "tickdown",
	Short: "Export TickTick tasks to a tree of markdown files",
	Long: `tickdown exports every project and task in a TickTick account into
markdown files with YAML frontmatter, one file per task, grouped into one
directory per project. Re-running only touches files whose tasks actually
changed and removes files for tasks deleted remotely, so the export root can
live in a version-controlled repository with minimal diffs.

The exporter reads its access token from TICKTICK_ACCESS_TOKEN (or a .env
file). Run 'tickdown auth' once to obtain a token interactively.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Fetch all tasks and sync them to the export root",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd)
	},
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Obtain a TickTick access token interactively",
	Long: `Runs the OAuth2 authorization-code flow against TickTick. Requires
TICKTICK_CLIENT_ID, TICKTICK_CLIENT_SECRET and optionally
TICKTICK_REDIRECT_URI / TICKTICK_SCOPE in the environment or a .env file.
The obtained token is cached under ~/.config/tickdown/.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tok, err := auth.Login(cmd.Context(), auth.Credentials{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
			Scope:        cfg.Scope,
		})
		if err != nil {
			return err
		}
		fmt.Println("Authentication successful!")
		fmt.Printf("You can also export the token directly:\n  export TICKTICK_ACCESS_TOKEN='%s'\n", tok.AccessToken)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tickdown version %s\n", version)
	},
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if flagVerbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

func runExport(cmd *cobra.Command) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	token := cfg.AccessToken
	if token == "" {
		token = auth.CachedAccessToken()
	}
	if token == "" {
		return fmt.Errorf("TICKTICK_ACCESS_TOKEN is not set and no cached token was found; run 'tickdown auth' first")
	}

	opts := []ticktick.Option{ticktick.WithLogger(logger)}
	if cfg.BaseURL != "" {
		opts = append(opts, ticktick.WithBaseURL(cfg.BaseURL))
	}
	client := ticktick.NewClient(token, opts...)

	ctx := cmd.Context()
	snap, err := client.FetchAll(ctx)
	if err != nil {
		if errors.Is(err, ticktick.ErrAuth) {
			return fmt.Errorf("access token was rejected; run 'tickdown auth' to obtain a new one: %w", err)
		}
		return err
	}

	trees, unresolved := hierarchy.Resolve(snap.Projects, snap.Tasks, logger)

	syncer := sync.NewSyncer(flagOutput, flagTitleInFilename, logger)
	stats, err := syncer.Run(ctx, trees)
	if err != nil {
		return err
	}

	logger.Info("Export complete",
		zap.Int("projects", len(snap.Projects)),
		zap.Int("tasks", len(snap.Tasks)),
		zap.Int("written", stats.Written),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("deleted", stats.Deleted),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", snap.Skipped+unresolved))

	if stats.Failed > 0 || snap.Skipped > 0 || unresolved > 0 {
		return fmt.Errorf("%w: %d skipped, %d failed",
			errPartial, snap.Skipped+unresolved, stats.Failed)
	}
	return nil
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, exportCmd} {
		cmd.Flags().BoolVar(&flagTitleInFilename, "title-in-filename", false,
			"Include the task title in filenames (default: task id only)")
		cmd.Flags().StringVar(&flagOutput, "output", "tasks",
			"Export root directory")
		cmd.Flags().BoolVar(&flagVerbose, "verbose", false,
			"Enable debug logging")
	}

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
