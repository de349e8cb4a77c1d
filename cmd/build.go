package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weftworks/weft/internal/build"
	"github.com/weftworks/weft/internal/modules"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build all entrypoints once",
	Long: `Discover every entrypoint matching the configured include patterns,
transform each document and write the results to the output directory.

Documents that fail to build are reported and skipped; the remaining
entrypoints still build. The command exits non-zero if any document failed.

Examples:
  weft build                       # Build with config from .weft.yml
  weft build --src ./pages         # Override the source directory
  weft build --env production      # Build for the production environment`,
	RunE: runBuildCommand,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	addSiteFlags(buildCmd)
}

// addSiteFlags registers the flags shared by build and watch.
func addSiteFlags(cmd *cobra.Command) {
	cmd.Flags().String("src", "", "source directory containing entrypoints")
	cmd.Flags().String("out", "", "output directory for built documents")
	cmd.Flags().String("env", "", "environment name for env tag filtering")
}

// bindSiteFlags binds the shared flags of the invoked command into viper.
// Binding happens at run time so build and watch do not clobber each
// other's flag sets.
func bindSiteFlags(cmd *cobra.Command) {
	viper.BindPFlag("site.src_dir", cmd.Flags().Lookup("src"))
	viper.BindPFlag("site.out_dir", cmd.Flags().Lookup("out"))
	viper.BindPFlag("site.environment", cmd.Flags().Lookup("env"))
}

func runBuildCommand(cmd *cobra.Command, args []string) error {
	bindSiteFlags(cmd)

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	loader := modules.NewLoader(logger)
	driver := build.NewDriver(logger, cfg, loader)
	defer driver.Shutdown()

	return driver.BuildAll(context.Background())
}
