package pace

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// encoder turns FeatureRows into dense vectors: numeric columns median-imputed,
// categorical columns one-hot encoded with unknown labels ignored.
type encoder struct {
	Numeric     []string   `json:"numeric"`
	Medians     []float64  `json:"medians"`
	Categorical []string   `json:"categorical"`
	Levels      [][]string `json:"levels"`
	Modes       []string   `json:"modes"`
}

func fitEncoder(rows []FeatureRow, features Schema) encoder {
	var e encoder
	for _, col := range features {
		switch col.Kind {
		case KindNumeric:
			e.Numeric = append(e.Numeric, col.Name)
			e.Medians = append(e.Medians, columnMedian(rows, col.Name))
		case KindCategorical:
			levels, mode := columnLevels(rows, col.Name)
			e.Categorical = append(e.Categorical, col.Name)
			e.Levels = append(e.Levels, levels)
			e.Modes = append(e.Modes, mode)
		}
	}
	return e
}

func (e *encoder) width() int {
	w := len(e.Numeric)
	for _, l := range e.Levels {
		w += len(l)
	}
	return w
}

func (e *encoder) encode(r FeatureRow) []float64 {
	x := make([]float64, 0, e.width())
	for i, name := range e.Numeric {
		v, ok := r.Value(name)
		if !ok {
			v = e.Medians[i]
		}
		x = append(x, v)
	}
	for i, name := range e.Categorical {
		label, ok := r.Label(name)
		if !ok {
			label = e.Modes[i]
		}
		for _, level := range e.Levels[i] {
			if level == label {
				x = append(x, 1)
			} else {
				x = append(x, 0)
			}
		}
	}
	return x
}

// featureNames returns the encoded column names, one-hot columns as name=level.
func (e *encoder) featureNames() []string {
	out := append([]string(nil), e.Numeric...)
	for i, name := range e.Categorical {
		for _, level := range e.Levels[i] {
			out = append(out, name+"="+level)
		}
	}
	return out
}

func columnMedian(rows []FeatureRow, name string) float64 {
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v, ok := r.Value(name); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil)
}

// columnLevels returns the sorted distinct labels and the most frequent label
// (ties broken alphabetically).
func columnLevels(rows []FeatureRow, name string) ([]string, string) {
	counts := map[string]int{}
	for _, r := range rows {
		if v, ok := r.Label(name); ok {
			counts[v]++
		}
	}
	levels := make([]string, 0, len(counts))
	for l := range counts {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	mode := ""
	for _, l := range levels {
		if mode == "" || counts[l] > counts[mode] {
			mode = l
		}
	}
	return levels, mode
}
