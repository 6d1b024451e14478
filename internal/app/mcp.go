package app

import (
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/campaigntrends/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP stdio server over campaign history",
	Long: `Start a Model Context Protocol stdio server that assistants can query.
The server exposes five tools:

  list_campaigns        Campaigns with snapshot history
  get_snapshots         Local history of a campaign
  get_timeline          Merged local and server timeline of a campaign
  get_recommendations   Recommendations for a campaign's latest snapshot
  get_memory_stats      Campaign count, snapshot count, and estimated size

Logs go to stderr; stdin and stdout carry only protocol messages.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	st, err := openStack(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	st.hydrate()

	srv := mcp.NewServer(st.store, st.adapter, st.timeline,
		mcp.WithVersion(appVersion),
		mcp.WithTimelineLimit(st.cfg.Timeline.Limit),
		mcp.WithLogger(st.logger),
	)
	return srv.Run(cmd.Context(), &sdk.StdioTransport{})
}
