package recommend

import "fmt"

// LowHighQuality flags campaigns of meaningful size where few domains land
// in the "High Quality" bucket.
func LowHighQuality(in *Input) []Recommendation {
	total := in.Aggregates.TotalDomains.Float()
	pct := in.highQualityPct()
	if !(total >= MinDomainsForQuality) || !(pct < LowHighQualityPct) {
		return nil
	}

	detail := fmt.Sprintf("Only %.1f%% of %.0f analyzed domains are classified High Quality.", pct, total)
	if in.TargetDomains > 0 {
		detail += fmt.Sprintf(" The campaign targets %d domains.", in.TargetDomains)
	}
	return []Recommendation{{
		ID:        IDLowHighQuality,
		Severity:  SeverityAction,
		Title:     "Few high-quality domains",
		Detail:    detail,
		Rationale: fmt.Sprintf("High Quality share is below %.0f%% with at least %d domains analyzed. Consider refining keyword rules or the generation pattern.", LowHighQualityPct, MinDomainsForQuality),
	}}
}

// HighWarning flags a warning rate above HighWarningRate.
func HighWarning(in *Input) []Recommendation {
	if !(in.WarningRate > HighWarningRate) {
		return nil
	}
	return []Recommendation{{
		ID:        IDHighWarningRate,
		Severity:  SeverityWarn,
		Title:     "High warning rate",
		Detail:    fmt.Sprintf("%.1f%% of domains raised warnings during analysis.", in.WarningRate),
		Rationale: fmt.Sprintf("Warning rate is above %.0f%%. Review stuffing and repetition penalties before scaling the campaign.", HighWarningRate),
	}}
}

// NoLeads flags campaigns whose average lead score is exactly zero.
func NoLeads(in *Input) []Recommendation {
	if in.Aggregates.AvgLeadScore.Float() != 0 {
		return nil
	}
	return []Recommendation{{
		ID:        IDNoLeads,
		Severity:  SeverityAction,
		Title:     "No leads generated",
		Detail:    "No domain has produced a lead score yet.",
		Rationale: "An average lead score of zero means the keyword set matched nothing. Check the keyword set and HTTP validation settings.",
	}}
}

// LowDNSSuccess flags a DNS success rate below LowDNSSuccessRate.
func LowDNSSuccess(in *Input) []Recommendation {
	rate := in.Aggregates.DNSSuccessRate.Float()
	if !(rate < LowDNSSuccessRate) {
		return nil
	}
	return []Recommendation{{
		ID:        IDLowDNSSuccess,
		Severity:  SeverityWarn,
		Title:     "Low DNS success rate",
		Detail:    fmt.Sprintf("Only %.1f%% of domains resolved.", rate),
		Rationale: fmt.Sprintf("DNS success is below %.0f%%. Domain generation parameters may be producing unregistered names.", LowDNSSuccessRate),
	}}
}

// GoodPerformance reports a healthy campaign: a large High Quality share
// with few warnings.
func GoodPerformance(in *Input) []Recommendation {
	pct := in.highQualityPct()
	if !(pct >= GoodHighQualityPct) || !(in.WarningRate < GoodMaxWarningRate) {
		return nil
	}
	return []Recommendation{{
		ID:        IDGoodPerformance,
		Severity:  SeverityInfo,
		Title:     "Strong campaign performance",
		Detail:    fmt.Sprintf("%.1f%% of domains are High Quality with a %.1f%% warning rate.", pct, in.WarningRate),
		Rationale: fmt.Sprintf("High Quality share is at least %.0f%% and warnings stay under %.0f%%.", GoodHighQualityPct, GoodMaxWarningRate),
	}}
}
