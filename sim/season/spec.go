// Package season loads the season configuration and runs the end-to-end
// pipeline: pace model, per-race strategy selection with contingency
// scenarios, and the championship projection.
package season

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/pace"
	"github.com/f1-strategy-lab/strategylab/sim/trace"
)

// Paths locate the run's inputs and outputs.
type Paths struct {
	TrainingCSV     string `yaml:"training_csv" json:"training_csv"`
	InferenceCSV    string `yaml:"inference_csv" json:"inference_csv"`
	ReportsDir      string `yaml:"reports_dir" json:"reports_dir" validate:"required"`
	LockRoot        string `yaml:"lock_root" json:"lock_root"`
	MetricsTextfile string `yaml:"metrics_textfile" json:"metrics_textfile"`
}

// StrategyConfig holds the candidate constraints and the lap-count fallback.
type StrategyConfig struct {
	DefaultTotalLaps         int `yaml:"default_total_laps" json:"default_total_laps" validate:"min=1"`
	sim.CandidateConstraints `yaml:",inline"`
}

// Spec is the full season configuration. All top-level sections must be
// listed to satisfy KnownFields(true) strict parsing.
type Spec struct {
	ProjectName   string           `yaml:"project_name" json:"project_name"`
	Team          string           `yaml:"team" json:"team" validate:"required"`
	TargetDriver  string           `yaml:"target_driver" json:"target_driver" validate:"required"`
	TargetYear    int              `yaml:"target_year" json:"target_year" validate:"min=1950"`
	TrainingYears []int            `yaml:"training_years" json:"training_years"`
	Mode          sim.Mode         `yaml:"mode" json:"mode"`
	Seed          int64            `yaml:"seed" json:"seed"`
	Calendar      []sim.Race       `yaml:"calendar" json:"calendar"`
	Field         []sim.FieldEntry `yaml:"field" json:"field" validate:"dive"`

	Paths        Paths                  `yaml:"paths" json:"paths"`
	Model        pace.ModelConfig       `yaml:"model" json:"model"`
	Simulation   sim.SimulationConfig   `yaml:"simulation" json:"simulation"`
	Strategy     StrategyConfig         `yaml:"strategy" json:"strategy"`
	Selection    sim.SelectionConfig    `yaml:"selection" json:"selection"`
	Championship sim.ChampionshipConfig `yaml:"championship" json:"championship"`
	Contingency  sim.ContingencyConfig  `yaml:"contingency" json:"contingency"`
	Trace        trace.TraceConfig      `yaml:"trace" json:"trace"`
}

// DefaultSpec returns a permissive McLaren/NOR 2025 setup with calibrated
// defaults. Loaded YAML overrides individual fields.
func DefaultSpec() *Spec {
	return &Spec{
		ProjectName:   "strategylab",
		Team:          "MCLAREN",
		TargetDriver:  "NOR",
		TargetYear:    2025,
		TrainingYears: []int{2022, 2023, 2024},
		Mode:          sim.ModePermissive,
		Seed:          42,
		Paths:         Paths{ReportsDir: "./reports"},
		Model:         pace.DefaultModelConfig(),
		Simulation:    sim.DefaultSimulationConfig(),
		Strategy: StrategyConfig{
			DefaultTotalLaps:     57,
			CandidateConstraints: sim.DefaultCandidateConstraints(),
		},
		Selection:    sim.DefaultSelectionConfig(),
		Championship: sim.DefaultChampionshipConfig(),
		Contingency:  sim.DefaultContingencyConfig(),
		Trace:        trace.TraceConfig{Level: trace.TraceLevelNone},
	}
}

// LoadSpec reads a YAML season spec over the defaults. Unknown keys are errors.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading season spec: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec decodes YAML over the defaults, normalizes names and validates.
func ParseSpec(data []byte) (*Spec, error) {
	spec := DefaultSpec()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(spec); err != nil {
		return nil, fmt.Errorf("parsing season spec: %w", err)
	}
	spec.normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// normalize upper-cases driver, team and compound identifiers.
func (s *Spec) normalize() {
	s.Team = strings.ToUpper(strings.TrimSpace(s.Team))
	s.TargetDriver = strings.ToUpper(strings.TrimSpace(s.TargetDriver))
	for i := range s.Field {
		s.Field[i].Driver = strings.ToUpper(strings.TrimSpace(s.Field[i].Driver))
		s.Field[i].Team = strings.ToUpper(strings.TrimSpace(s.Field[i].Team))
	}
	for i, c := range s.Strategy.Compounds {
		s.Strategy.Compounds[i] = sim.NormalizeCompound(string(c))
	}
	if len(s.Strategy.CompoundLimits) > 0 {
		limits := make(map[sim.Compound]sim.StintLimit, len(s.Strategy.CompoundLimits))
		for c, l := range s.Strategy.CompoundLimits {
			limits[sim.NormalizeCompound(string(c))] = l
		}
		s.Strategy.CompoundLimits = limits
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate runs struct-tag validation followed by cross-field checks.
func (s *Spec) Validate() error {
	if err := structValidator().Struct(s); err != nil {
		return fmt.Errorf("invalid season spec: %w", err)
	}
	if !sim.IsValidMode(string(s.Mode)) {
		return fmt.Errorf("unknown mode %q; valid: strict, permissive", s.Mode)
	}
	if !trace.IsValidTraceLevel(string(s.Trace.Level)) {
		return fmt.Errorf("unknown trace level %q; valid: none, decisions", s.Trace.Level)
	}
	if s.Trace.CounterfactualK < 0 {
		return fmt.Errorf("trace.counterfactual_k must be non-negative, got %d", s.Trace.CounterfactualK)
	}
	if err := s.validateField(); err != nil {
		return err
	}
	if err := s.validateCalendar(); err != nil {
		return err
	}
	return validateConstraints(s.Strategy.CandidateConstraints)
}

func (s *Spec) validateField() error {
	if len(s.Field) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(s.Field))
	target := false
	for _, e := range s.Field {
		if seen[e.Driver] {
			return fmt.Errorf("driver %q appears twice in the field", e.Driver)
		}
		seen[e.Driver] = true
		if e.Driver == s.TargetDriver {
			target = true
			if e.Team != s.Team {
				return fmt.Errorf("target driver %s is entered for %s, spec team is %s", e.Driver, e.Team, s.Team)
			}
		}
	}
	if !target {
		return fmt.Errorf("target driver %s is not in the field", s.TargetDriver)
	}
	return nil
}

func (s *Spec) validateCalendar() error {
	if len(s.Calendar) == 0 {
		if s.Mode == sim.ModeStrict {
			return fmt.Errorf("strict mode requires a calendar")
		}
		return nil
	}
	seen := make(map[string]bool, len(s.Calendar))
	for i, r := range s.Calendar {
		if r.ID == "" {
			return fmt.Errorf("calendar[%d]: id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("calendar race %q appears twice", r.ID)
		}
		seen[r.ID] = true
		if r.Laps < 0 {
			return fmt.Errorf("calendar race %q: laps must be non-negative, got %d", r.ID, r.Laps)
		}
	}
	return nil
}

func validateConstraints(c sim.CandidateConstraints) error {
	if c.MaxStintLaps > 0 && c.MaxStintLaps < c.MinStintLaps {
		return fmt.Errorf("strategy: max_stint_laps %d below min_stint_laps %d", c.MaxStintLaps, c.MinStintLaps)
	}
	for comp, l := range c.CompoundLimits {
		if l.Max > 0 && l.Min > l.Max {
			return fmt.Errorf("strategy: compound %s stint window [%d, %d] is empty", comp, l.Min, l.Max)
		}
	}
	if !sort.Float64sAreSorted(c.OneStopFractions) {
		return fmt.Errorf("strategy: one_stop_fractions must be ascending, got %v", c.OneStopFractions)
	}
	for _, pair := range c.TwoStopFractions {
		if pair[0] >= pair[1] {
			return fmt.Errorf("strategy: two_stop_fractions pair %v must be strictly increasing", pair)
		}
	}
	if len(c.OneStopFractions) == 0 && len(c.TwoStopFractions) == 0 {
		return fmt.Errorf("strategy: at least one pit fraction is required")
	}
	return nil
}

// Key returns the run's simulation key.
func (s *Spec) Key() sim.SimulationKey {
	return sim.NewSimulationKey(s.Seed)
}

// referenceRaceGaps are the race-time gaps in seconds of the static reference
// field ranked against when no field is configured.
var referenceRaceGaps = []float64{0.0, 4.0, 8.2, 12.0, 15.5, 19.8, 23.5, 27.0, 31.2}

// ReferenceField returns the target followed by one rival per reference gap.
// Rival i is named REF<i>, runs for its own team and carries the gap spread
// over laps as its per-lap pace offset.
func ReferenceField(driver, team string, laps int) []sim.FieldEntry {
	if laps < 1 {
		laps = 1
	}
	field := make([]sim.FieldEntry, 0, len(referenceRaceGaps)+1)
	field = append(field, sim.FieldEntry{Driver: driver, Team: team})
	for i, gap := range referenceRaceGaps {
		field = append(field, sim.FieldEntry{
			Driver:     fmt.Sprintf("REF%d", i+1),
			Team:       fmt.Sprintf("REFERENCE %d", i+1),
			PaceOffset: gap / float64(laps),
		})
	}
	return field
}

// RaceField returns the configured field, or the reference field sized to
// default_total_laps when none is configured.
func (s *Spec) RaceField() []sim.FieldEntry {
	if len(s.Field) > 0 {
		return s.Field
	}
	return ReferenceField(s.TargetDriver, s.Team, s.Strategy.DefaultTotalLaps)
}
