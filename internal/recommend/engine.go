package recommend

// Engine runs all registered rules against an Input and collects the
// resulting recommendations.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with all built-in rules registered.
func NewEngine() *Engine {
	return &Engine{
		rules: []Rule{
			LowHighQuality,
			HighWarning,
			NoLeads,
			LowDNSSuccess,
			GoodPerformance,
		},
	}
}

// Run evaluates every rule independently and returns all matches in rule
// order. It returns nil when nothing matched.
func (e *Engine) Run(in *Input) []Recommendation {
	var all []Recommendation
	for _, rule := range e.rules {
		all = append(all, rule(in)...)
	}
	return all
}

// GetRecommendations runs the built-in rules and substitutes a single
// all-clear finding when none matched, so callers never see an empty list.
func GetRecommendations(in Input) []Recommendation {
	recs := NewEngine().Run(&in)
	if len(recs) == 0 {
		return []Recommendation{AllClear()}
	}
	return recs
}

// AllClear is the finding reported when no rule fires.
func AllClear() Recommendation {
	return Recommendation{
		ID:        IDAllClear,
		Severity:  SeverityInfo,
		Title:     "All clear",
		Detail:    "Campaign performance looks good. All metrics are within expected ranges.",
		Rationale: "No recommendation threshold was crossed.",
	}
}
