// Package trace provides decision-trace recording for strategy selection and
// permissive-mode fallbacks. It stores pure data types and has no
// dependencies on the other sim packages.
package trace

// FallbackRecord captures a permissive-mode substitution: a synthetic table,
// a pooled race in the championship, or a rival paced from its offset.
type FallbackRecord struct {
	RaceID string `json:"race_id,omitempty"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// CandidateScore captures a counterfactual candidate with its score.
type CandidateScore struct {
	Key              string  `json:"key"`
	Name             string  `json:"name"`
	Composite        float64 `json:"strategy_score"`
	ExpectedPoints   float64 `json:"expected_points"`
	ExpectedPosition float64 `json:"expected_position"`
	Robustness       float64 `json:"robustness_window"`
	Degenerate       bool    `json:"degenerate,omitempty"`
}

// SelectionRecord captures one race's primary strategy decision with
// optional counterfactual analysis.
type SelectionRecord struct {
	RaceID     string           `json:"race_id"`
	Round      int              `json:"round"`
	Chosen     string           `json:"chosen"`   // candidate key
	Sequence   string           `json:"sequence"` // compound sequence, e.g. MEDIUM>HARD
	Reason     string           `json:"reason"`
	Candidates []CandidateScore `json:"candidates,omitempty"` // top-k by rank (nil if k=0)
	Regret     float64          `json:"regret"`               // max(alternative composite) - composite(chosen); 0 if chosen is best
}
