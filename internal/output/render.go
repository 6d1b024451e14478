package output

import (
	"fmt"
	"math"
	"strings"

	"github.com/blackwell-systems/campaigntrends/internal/history"
	"github.com/blackwell-systems/campaigntrends/internal/recommend"
	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

// Section returns a styled section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}

// TrendArrow returns a styled trend indicator for a delta value.
// Positive delta shows an up arrow, negative shows down, zero shows a dash.
func TrendArrow(delta float64, higherIsBetter bool) string {
	if delta == 0 || math.IsNaN(delta) {
		return StyleMuted.Render("─")
	}

	isPositive := delta > 0
	isImproved := isPositive == higherIsBetter

	var arrow string
	if isPositive {
		arrow = fmt.Sprintf("▲ +%.1f", delta)
	} else {
		arrow = fmt.Sprintf("▼ %.1f", delta)
	}

	if isImproved {
		return StyleSuccess.Render(arrow)
	}
	return StyleError.Render(arrow)
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as a one-line bar chart scaled to their range.
// Non-numeric values render as a space.
func Sparkline(values []float64) string {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var sb strings.Builder
	for _, v := range values {
		switch {
		case math.IsNaN(v):
			sb.WriteRune(' ')
		case hi == lo:
			sb.WriteRune(sparkBlocks[len(sparkBlocks)/2])
		default:
			i := int((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
			sb.WriteRune(sparkBlocks[i])
		}
	}
	return sb.String()
}

// SeverityBadge returns a styled, fixed-width severity label.
func SeverityBadge(severity string) string {
	label := fmt.Sprintf("%-6s", strings.ToUpper(severity))
	switch severity {
	case recommend.SeverityAction:
		return StyleError.Render(label)
	case recommend.SeverityWarn:
		return StyleWarning.Render(label)
	default:
		return StyleSuccess.Render(label)
	}
}

// SnapshotTable lays out a timeline, one row per snapshot, with the lead
// score change against the previous row.
func SnapshotTable(snaps []snapshot.Snapshot) *Table {
	tbl := NewTable("ID", "Timestamp", "Domains", "Success %", "DNS %", "HTTP %", "Lead score", "Trend").
		AlignRight(2, 3, 4, 5, 6)
	prev := math.NaN()
	for _, s := range snaps {
		a := s.Aggregates
		lead := a.AvgLeadScore.Float()
		trend := StyleMuted.Render("─")
		if !math.IsNaN(prev) {
			trend = TrendArrow(lead-prev, true)
		}
		prev = lead
		tbl.AddRow(s.ID, s.Timestamp,
			a.TotalDomains.String(), a.SuccessRate.String(),
			a.DNSSuccessRate.String(), a.HTTPSuccessRate.String(),
			a.AvgLeadScore.String(), trend)
	}
	return tbl
}

// LeadScores extracts the lead score series of a timeline.
func LeadScores(snaps []snapshot.Snapshot) []float64 {
	out := make([]float64, len(snaps))
	for i, s := range snaps {
		out[i] = s.Aggregates.AvgLeadScore.Float()
	}
	return out
}

// Recommendations renders findings, most severe first.
func Recommendations(recs []recommend.Recommendation) string {
	var sb strings.Builder
	for _, r := range recommend.SortBySeverity(recs) {
		fmt.Fprintf(&sb, " %s %s\n", SeverityBadge(r.Severity), StyleBold.Render(r.Title))
		fmt.Fprintf(&sb, "        %s\n", r.Detail)
		if r.Rationale != "" {
			fmt.Fprintf(&sb, "        %s\n", StyleMuted.Render(r.Rationale))
		}
	}
	return sb.String()
}

// MemoryStats renders the store rollup as label/value lines.
func MemoryStats(st history.MemoryStats) string {
	var sb strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&sb, " %s%s\n", StyleLabel.Render(label), StyleValue.Render(value))
	}
	line("Campaigns", fmt.Sprintf("%d", st.CampaignCount))
	line("Snapshots", fmt.Sprintf("%d", st.TotalSnapshots))
	line("Estimated size", fmt.Sprintf("%.1f KB", st.EstimatedSizeKB))
	return sb.String()
}
