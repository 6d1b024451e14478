package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/campaigntrends/internal/adapter"
	"github.com/blackwell-systems/campaigntrends/internal/config"
	"github.com/blackwell-systems/campaigntrends/internal/output"
	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

var ingestPinned bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <campaign> <file|->",
	Short: "Validate a measurement payload and add it to history",
	Long: `Read a single-measurement payload, normalize it into a snapshot, and add
it to the campaign's history. The payload must be a JSON object carrying an
"aggregates" or "classification" member.

Examples:
  campaigntrends ingest camp-42 measurement.json
  curl -s $API/campaigns/camp-42/aggregates | campaigntrends ingest camp-42 -
  campaigntrends ingest camp-42 baseline.json --pinned`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestPinned, "pinned", false, "Exempt the snapshot from capacity and TTL eviction")
	rootCmd.AddCommand(ingestCmd)
}

// ingestOutput is the JSON-serializable output for the ingest command.
type ingestOutput struct {
	CampaignID string            `json:"campaignId"`
	Stored     bool              `json:"stored"`
	Pinned     bool              `json:"pinned"`
	Count      int               `json:"count"`
	Snapshot   snapshot.Snapshot `json:"snapshot"`
}

var errInvalidPayload = errors.New("payload has neither aggregates nor classification")

func runIngest(cmd *cobra.Command, args []string) error {
	campaignID := args[0]
	payload, err := readPayload(args[1], cmd.InOrStdin())
	if err != nil {
		return err
	}
	if !adapter.Validate(payload) {
		return errInvalidPayload
	}

	st, err := openStack(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	snap := st.adapter.Normalize(payload)
	st.store.AddSnapshot(campaignID, snap, ingestPinned)

	out := ingestOutput{
		CampaignID: campaignID,
		Stored:     config.TrendsEnabled(),
		Pinned:     ingestPinned,
		Count:      st.store.SnapshotCount(campaignID),
		Snapshot:   snap,
	}
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	if !out.Stored {
		fmt.Fprintln(w, output.StyleWarning.Render("Trends are disabled; snapshot was not stored."))
		return nil
	}
	fmt.Fprintf(w, "Stored snapshot %s for %s (%d in history)\n\n", snap.ID, campaignID, out.Count)
	return output.SnapshotTable([]snapshot.Snapshot{snap}).Fprint(w)
}
