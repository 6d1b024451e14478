package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/campaigntrends/internal/output"
	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

var (
	timelineLimit  int
	timelineCursor string
	timelineLocal  bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <campaign>",
	Short: "Show a campaign's merged local and server timeline",
	Long: `Fetch one page of the campaign's server timeline, merge it with local
history (local copies win on id collisions), and integrate server snapshots
as pinned entries. When the server is unreachable or disabled, only local
history is shown.

Examples:
  campaigntrends timeline camp-42
  campaigntrends timeline camp-42 --limit 100 --cursor abc123
  campaigntrends timeline camp-42 --local`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeline,
}

func init() {
	timelineCmd.Flags().IntVar(&timelineLimit, "limit", 0, "Server page size (default from config)")
	timelineCmd.Flags().StringVar(&timelineCursor, "cursor", "", "Server pagination cursor")
	timelineCmd.Flags().BoolVar(&timelineLocal, "local", false, "Skip the server and show local history only")
	rootCmd.AddCommand(timelineCmd)
}

// timelineOutput is the JSON-serializable output for the timeline command.
type timelineOutput struct {
	CampaignID string              `json:"campaignId"`
	Snapshots  []snapshot.Snapshot `json:"snapshots"`
	Integrated int                 `json:"integrated"`
}

func runTimeline(cmd *cobra.Command, args []string) error {
	campaignID := args[0]
	st, err := openStack(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	limit := st.cfg.Timeline.Limit
	if timelineLimit > 0 {
		limit = timelineLimit
	}

	out := timelineOutput{CampaignID: campaignID}
	if timelineLocal {
		out.Snapshots = st.store.Snapshots(campaignID)
	} else {
		out.Snapshots, out.Integrated = st.timeline.Reconcile(cmd.Context(), st.store, campaignID, timelineCursor, limit)
	}
	if out.Snapshots == nil {
		out.Snapshots = []snapshot.Snapshot{}
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, output.Section("Timeline: "+campaignID))
	if len(out.Snapshots) == 0 {
		fmt.Fprintln(w, output.StyleMuted.Render(" No snapshots."))
		return nil
	}
	fmt.Fprintln(w)
	if err := output.SnapshotTable(out.Snapshots).Fprint(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n %s%s\n", output.StyleLabel.Render("Lead score"), output.Sparkline(output.LeadScores(out.Snapshots)))
	if out.Integrated > 0 {
		fmt.Fprintf(w, " %s%d\n", output.StyleLabel.Render("Integrated from server"), out.Integrated)
	}
	return nil
}
