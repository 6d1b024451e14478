package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/campaigntrends/internal/adapter"
	"github.com/blackwell-systems/campaigntrends/internal/output"
	"github.com/blackwell-systems/campaigntrends/internal/recommend"
	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

var recommendCampaign string

var recommendCmd = &cobra.Command{
	Use:   "recommend [file|-]",
	Short: "Evaluate recommendations for a payload or campaign",
	Long: `Run the recommendation rules against a measurement payload, or against
the latest stored snapshot of a campaign with --campaign. An unusable payload
or a campaign without history is evaluated as an empty default snapshot.

Examples:
  campaigntrends recommend measurement.json
  campaigntrends recommend --campaign camp-42 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringVar(&recommendCampaign, "campaign", "", "Use the latest stored snapshot of this campaign")
	rootCmd.AddCommand(recommendCmd)
}

// recommendOutput is the JSON-serializable output for the recommend command.
type recommendOutput struct {
	SnapshotID      string                     `json:"snapshotId"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

func runRecommend(cmd *cobra.Command, args []string) error {
	if (recommendCampaign == "") == (len(args) == 0) {
		return errors.New("give either a payload file or --campaign")
	}

	st, err := openStack(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var snap snapshot.Snapshot
	if recommendCampaign != "" {
		latest, ok := st.store.Latest(recommendCampaign)
		if !ok {
			st.logger.Warn("campaign has no history; using an empty snapshot", "campaign", recommendCampaign)
			latest = st.adapter.DefaultSnapshot()
		}
		snap = latest
	} else {
		payload, err := readPayload(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		if adapter.Validate(payload) {
			snap = st.adapter.Normalize(payload)
		} else {
			st.logger.Warn("payload unusable; using an empty snapshot")
			snap = st.adapter.DefaultSnapshot()
		}
	}

	recs := recommend.GetRecommendations(recommend.InputFromSnapshot(snap))
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), recommendOutput{SnapshotID: snap.ID, Recommendations: recs})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, output.Section("Recommendations for "+snap.ID))
	fmt.Fprintln(w)
	fmt.Fprint(w, output.Recommendations(recs))
	return nil
}
