package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every selection and fallback decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level           TraceLevel `yaml:"level" json:"level"`
	CounterfactualK int        `yaml:"counterfactual_k" json:"counterfactual_k"` // alternatives kept per selection
}

// Enabled reports whether decisions should be recorded.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelDecisions
}

// SimulationTrace collects decision records during a season run.
type SimulationTrace struct {
	Config     TraceConfig       `json:"config"`
	Selections []SelectionRecord `json:"selections"`
	Fallbacks  []FallbackRecord  `json:"fallbacks"`
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Selections: make([]SelectionRecord, 0),
		Fallbacks:  make([]FallbackRecord, 0),
	}
}

// RecordSelection appends a selection decision record. A nil trace ignores it.
func (st *SimulationTrace) RecordSelection(record SelectionRecord) {
	if st == nil {
		return
	}
	st.Selections = append(st.Selections, record)
}

// RecordFallback appends a fallback record. A nil trace ignores it.
func (st *SimulationTrace) RecordFallback(record FallbackRecord) {
	if st == nil {
		return
	}
	st.Fallbacks = append(st.Fallbacks, record)
}
