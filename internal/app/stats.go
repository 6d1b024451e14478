package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/campaigntrends/internal/history"
	"github.com/blackwell-systems/campaigntrends/internal/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history memory statistics",
	Long: `Load every mirrored campaign and report campaign count, snapshot count,
and the estimated in-memory size of the history.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// statsOutput is the JSON-serializable output for the stats command.
type statsOutput struct {
	history.MemoryStats
	Campaigns []campaignStat `json:"campaigns"`
}

type campaignStat struct {
	ID        string `json:"id"`
	Snapshots int    `json:"snapshots"`
	Latest    string `json:"latest,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) error {
	st, err := openStack(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	st.hydrate()
	out := statsOutput{
		MemoryStats: st.store.MemoryStats(),
		Campaigns:   []campaignStat{},
	}
	for _, id := range st.store.Campaigns() {
		cs := campaignStat{ID: id, Snapshots: st.store.SnapshotCount(id)}
		if latest, ok := st.store.Latest(id); ok {
			cs.Latest = latest.ID
		}
		out.Campaigns = append(out.Campaigns, cs)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, output.Section("History"))
	fmt.Fprint(w, output.MemoryStats(out.MemoryStats))
	if len(out.Campaigns) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tbl := output.NewTable("Campaign", "Snapshots", "Latest")
	for _, c := range out.Campaigns {
		tbl.AddRow(c.ID, strconv.Itoa(c.Snapshots), c.Latest)
	}
	return tbl.Fprint(w)
}
