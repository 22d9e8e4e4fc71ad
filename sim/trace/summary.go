package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions       int            `json:"total_decisions"`
	FallbackCount        int            `json:"fallback_count"`
	MeanRegret           float64        `json:"mean_regret"`
	MaxRegret            float64        `json:"max_regret"`
	UniqueSequences      int            `json:"unique_sequences"`
	SequenceDistribution map[string]int `json:"sequence_distribution"` // compound sequence → races chosen
	FallbackKinds        map[string]int `json:"fallback_kinds"`
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		SequenceDistribution: make(map[string]int),
		FallbackKinds:        make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.FallbackCount = len(st.Fallbacks)
	for _, f := range st.Fallbacks {
		summary.FallbackKinds[f.Kind]++
	}

	summary.TotalDecisions = len(st.Selections)
	if len(st.Selections) > 0 {
		totalRegret := 0.0
		for _, r := range st.Selections {
			summary.SequenceDistribution[r.Sequence]++
			totalRegret += r.Regret
			if r.Regret > summary.MaxRegret {
				summary.MaxRegret = r.Regret
			}
		}
		summary.MeanRegret = totalRegret / float64(len(st.Selections))
	}

	summary.UniqueSequences = len(summary.SequenceDistribution)

	return summary
}
