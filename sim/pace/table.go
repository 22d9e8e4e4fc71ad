// Package pace implements the race-pace regression model: a feature table with
// a fixed schema, a one-hot/median-imputing encoder, and a gradient-boosted
// ensemble of least-squares regression trees.
package pace

import (
	"math"
	"sort"
	"strings"

	"github.com/f1-strategy-lab/strategylab/sim"
)

// ColumnKind distinguishes numeric from categorical predictors.
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindCategorical ColumnKind = "categorical"
)

// Column is one schema entry.
type Column struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// Schema is the ordered column list of a feature table. Meta fields
// (year, event, driver, team) are not part of the schema.
type Schema []Column

// Lookup returns the column with the given name.
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// FeatureRow is one observation. Missing numeric values are NaN or absent;
// missing categorical values are "" or absent.
type FeatureRow struct {
	Year        int                `json:"year"`
	Event       string             `json:"event_name"`
	Driver      string             `json:"driver"`
	Team        string             `json:"team"`
	Numeric     map[string]float64 `json:"numeric,omitempty"`
	Categorical map[string]string  `json:"categorical,omitempty"`
}

// Value returns a numeric value and whether it is present.
func (r FeatureRow) Value(name string) (float64, bool) {
	v, ok := r.Numeric[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ValueOr returns the first present numeric value among names, else fallback.
func (r FeatureRow) ValueOr(fallback float64, names ...string) float64 {
	for _, n := range names {
		if v, ok := r.Value(n); ok {
			return v
		}
	}
	return fallback
}

// Label returns a categorical value and whether it is present.
func (r FeatureRow) Label(name string) (string, bool) {
	v, ok := r.Categorical[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FeatureTable is an immutable set of rows sharing a schema.
type FeatureTable struct {
	Schema Schema
	Rows   []FeatureRow
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Validate checks that every row agrees with the schema: no unknown columns
// and no value stored under the wrong kind.
func (t *FeatureTable) Validate() error {
	if t.Len() == 0 {
		return sim.NewTrainingDataError("feature table is empty", "")
	}
	if len(t.Schema) == 0 {
		return sim.NewTrainingDataError("feature table has no columns", "")
	}
	seen := make(map[string]bool, len(t.Schema))
	for _, c := range t.Schema {
		if seen[c.Name] {
			return sim.NewTrainingDataError("duplicate column", c.Name)
		}
		seen[c.Name] = true
		if c.Kind != KindNumeric && c.Kind != KindCategorical {
			return sim.NewTrainingDataError("unknown column kind "+string(c.Kind), c.Name)
		}
	}
	for i, r := range t.Rows {
		for name := range r.Numeric {
			col, ok := t.Schema.Lookup(name)
			if !ok {
				return &sim.TrainingDataError{Reason: "column not in schema", Column: name, Row: i}
			}
			if col.Kind != KindNumeric {
				return &sim.TrainingDataError{Reason: "numeric value for categorical column", Column: name, Row: i}
			}
		}
		for name := range r.Categorical {
			col, ok := t.Schema.Lookup(name)
			if !ok {
				return &sim.TrainingDataError{Reason: "column not in schema", Column: name, Row: i}
			}
			if col.Kind != KindCategorical {
				return &sim.TrainingDataError{Reason: "categorical value for numeric column", Column: name, Row: i}
			}
		}
	}
	return nil
}

// Events returns the distinct event names in first-seen order.
func (t *FeatureTable) Events() []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range t.Rows {
		if !seen[r.Event] {
			seen[r.Event] = true
			out = append(out, r.Event)
		}
	}
	return out
}

// ByEvent groups rows by event name.
func (t *FeatureTable) ByEvent() map[string][]FeatureRow {
	out := make(map[string][]FeatureRow)
	for _, r := range t.Rows {
		out[r.Event] = append(out[r.Event], r)
	}
	return out
}

// featureColumns returns the schema columns used as predictors: everything
// except the target and other target_* label columns.
func featureColumns(s Schema, target string) Schema {
	out := make(Schema, 0, len(s))
	for _, c := range s {
		if c.Name == target || strings.HasPrefix(c.Name, "target_") {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindNumeric
		}
		return false
	})
	return out
}
