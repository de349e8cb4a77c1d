package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weftworks/weft/internal/build"
	"github.com/weftworks/weft/internal/modules"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Build all entrypoints and rebuild on file changes",
	Long: `Run a full build, then keep watching every tracked dependency.
When a watched file changes, the entrypoints that depend on it are
batched and rebuilt. New dependencies discovered during a rebuild are
added to the watch set automatically.

The loop runs until interrupted (Ctrl+C).

Examples:
  weft watch                       # Watch with config from .weft.yml
  weft watch --env staging         # Watch with the staging environment`,
	RunE: runWatchCommand,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addSiteFlags(watchCmd)
}

func runWatchCommand(cmd *cobra.Command, args []string) error {
	bindSiteFlags(cmd)

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := modules.NewLoader(logger)
	driver := build.NewDriver(logger, cfg, loader)
	defer driver.Shutdown()

	// An initial build failure is reported but does not stop the loop;
	// fixing the offending file triggers a rebuild.
	if err := driver.BuildAll(ctx); err != nil {
		logger.Error(ctx, err, "initial build completed with errors")
	}

	logger.Info(ctx, "watching for changes",
		"src_dir", cfg.Site.SrcDir,
		"environment", cfg.Site.Environment)

	driver.WatchLoop(ctx)
	return nil
}
