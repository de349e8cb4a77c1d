package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build-time variables, overridden via -ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var versionFormat string

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for weft including the semantic version,
git commit hash, build timestamp and Go runtime version.

Examples:
  weft version                 # Show version
  weft version --format json   # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	switch versionFormat {
	case "json":
		info := map[string]string{
			"version":    version,
			"commit":     gitCommit,
			"build_date": buildDate,
			"go_version": runtime.Version(),
			"platform":   runtime.GOOS + "/" + runtime.GOARCH,
		}
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	case "text":
		fmt.Printf("weft %s (commit %s, built %s, %s)\n",
			version, gitCommit, buildDate, runtime.Version())
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}
