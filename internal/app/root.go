// Package app contains the Cobra command tree for campaigntrends.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/campaigntrends/internal/output"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "campaigntrends",
	Short: "Campaign metrics history, timeline merge, and recommendations",
	Long: `campaigntrends keeps a bounded history of campaign metric snapshots,
reconciles it with the campaign API's server timeline, and turns the latest
measurement into actionable recommendations.

Run 'campaigntrends serve' to start the HTTP service with background sync.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagNoColor {
			output.SetNoColor(true)
			return
		}
		output.AutoColor(os.Stdout)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "campaigntrends", appVersion)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Use a subcommand:")
		fmt.Fprintln(w, "  serve      Run the HTTP service and background timeline sync")
		fmt.Fprintln(w, "  ingest     Validate a measurement payload and add it to history")
		fmt.Fprintln(w, "  timeline   Show a campaign's merged local and server timeline")
		fmt.Fprintln(w, "  recommend  Evaluate recommendations for a payload or campaign")
		fmt.Fprintln(w, "  stats      Show history memory statistics")
		fmt.Fprintln(w, "  mcp        Run an MCP stdio server over campaign history")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/campaigntrends/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
}
