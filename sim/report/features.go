// Package report reads feature tables from CSV and writes the run's
// artifacts: the recommendation table, championship projection, model
// quality, decision trace and run summary.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/pace"
)

// Meta columns identify a row and are never model features.
const (
	colYear   = "year"
	colEvent  = "event_name"
	colTeam   = "team"
	colDriver = "driver"
)

var metaColumns = []string{colYear, colEvent, colTeam, colDriver}

func isMeta(name string) bool {
	for _, m := range metaColumns {
		if m == name {
			return true
		}
	}
	return false
}

// ReadFeatureTableFile reads a feature table CSV from disk.
func ReadFeatureTableFile(path string) (*pace.FeatureTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feature table: %w", err)
	}
	defer f.Close()
	t, err := ReadFeatureTable(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// ReadFeatureTable parses a header-first CSV. event_name and driver are
// required; a non-meta column is numeric when every non-empty cell parses as
// a float, categorical otherwise. Empty and NaN cells are missing values.
// A header with no data rows yields an empty table.
func ReadFeatureTable(r io.Reader) (*pace.FeatureTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, sim.NewTrainingDataError(fmt.Sprintf("malformed csv: %v", err), "")
	}
	if len(records) == 0 {
		return nil, sim.NewTrainingDataError("missing header row", "")
	}
	header := make([]string, len(records[0]))
	seen := map[string]bool{}
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		if seen[h] {
			return nil, sim.NewTrainingDataError("duplicate column", h)
		}
		seen[h] = true
		header[i] = h
	}
	for _, req := range []string{colEvent, colDriver} {
		if !seen[req] {
			return nil, sim.NewTrainingDataError("missing required column", req)
		}
	}
	data := records[1:]

	t := &pace.FeatureTable{}
	kinds := make([]pace.ColumnKind, len(header))
	for j, name := range header {
		if isMeta(name) {
			continue
		}
		kinds[j] = pace.KindNumeric
		for _, rec := range data {
			if cell := strings.TrimSpace(rec[j]); cell != "" {
				if _, err := strconv.ParseFloat(cell, 64); err != nil {
					kinds[j] = pace.KindCategorical
					break
				}
			}
		}
		t.Schema = append(t.Schema, pace.Column{Name: name, Kind: kinds[j]})
	}

	t.Rows = make([]pace.FeatureRow, 0, len(data))
	for i, rec := range data {
		row := pace.FeatureRow{Numeric: map[string]float64{}, Categorical: map[string]string{}}
		for j, name := range header {
			cell := strings.TrimSpace(rec[j])
			switch name {
			case colYear:
				year, err := parseYear(cell)
				if err != nil {
					return nil, &sim.TrainingDataError{Reason: "invalid year " + strconv.Quote(cell), Column: colYear, Row: i}
				}
				row.Year = year
			case colEvent:
				row.Event = cell
			case colTeam:
				row.Team = cell
			case colDriver:
				row.Driver = cell
			default:
				if cell == "" {
					continue
				}
				if kinds[j] == pace.KindCategorical {
					row.Categorical[name] = cell
					continue
				}
				v, _ := strconv.ParseFloat(cell, 64)
				if !math.IsNaN(v) {
					row.Numeric[name] = v
				}
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// parseYear accepts integer or integral float cells ("2024", "2024.0").
func parseYear(cell string) (int, error) {
	if cell == "" {
		return 0, nil
	}
	if y, err := strconv.Atoi(cell); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, errors.New("not an integer")
	}
	return int(f), nil
}

// WriteFeatureTable writes t as CSV: meta columns first, then the schema.
func WriteFeatureTable(w io.Writer, t *pace.FeatureTable) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), metaColumns...), t.Schema.Names()...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range t.Rows {
		rec := []string{strconv.Itoa(r.Year), r.Event, r.Team, r.Driver}
		for _, c := range t.Schema {
			if c.Kind == pace.KindCategorical {
				rec = append(rec, r.Categorical[c.Name])
				continue
			}
			if v, ok := r.Value(c.Name); ok {
				rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
