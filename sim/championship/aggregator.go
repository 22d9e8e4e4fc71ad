// Package championship rolls per-race finishing distributions into season
// points and title probabilities by repeated season-level resampling.
package championship

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/f1-strategy-lab/strategylab/sim"
	"github.com/f1-strategy-lab/strategylab/sim/race"
	"github.com/f1-strategy-lab/strategylab/sim/selection"
	"github.com/f1-strategy-lab/strategylab/sim/trace"
)

// Standing summarizes one driver's or constructor's season distribution.
type Standing struct {
	Name             string  `json:"name"`
	Team             string  `json:"team,omitempty"`
	MeanPoints       float64 `json:"mean_points"`
	P10Points        float64 `json:"p10_points"`
	P50Points        float64 `json:"p50_points"`
	P90Points        float64 `json:"p90_points"`
	ExpectedWins     float64 `json:"expected_wins"`
	TitleProbability float64 `json:"title_probability"`
}

// Projection is the season outlook. Recomputed per run, never mutated.
type Projection struct {
	Drivers      []Standing `json:"drivers"`
	Constructors []Standing `json:"constructors"`
	Resamples    int        `json:"resamples"`
	Seed         int64      `json:"seed"`
	Mode         sim.Mode   `json:"mode"`
	Races        int        `json:"races"`
	PooledRaces  []string   `json:"pooled_races,omitempty"` // calendar races sampled from the pooled fallback
}

// Driver returns the standing of a driver.
func (p *Projection) Driver(name string) (Standing, bool) {
	return find(p.Drivers, name)
}

// Constructor returns the standing of a team.
func (p *Projection) Constructor(name string) (Standing, bool) {
	return find(p.Constructors, name)
}

func find(s []Standing, name string) (Standing, bool) {
	for _, st := range s {
		if st.Name == name {
			return st, true
		}
	}
	return Standing{}, false
}

// Aggregator runs season resamples. Safe for concurrent use.
type Aggregator struct {
	key     sim.SimulationKey
	cfg     sim.ChampionshipConfig
	mode    sim.Mode
	workers int
	trace   *trace.SimulationTrace
}

// NewAggregator creates an aggregator. workers <= 0 uses GOMAXPROCS.
func NewAggregator(key sim.SimulationKey, cfg sim.ChampionshipConfig, mode sim.Mode, workers int) *Aggregator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Aggregator{key: key, cfg: cfg, mode: mode, workers: workers}
}

// WithTrace records permissive fallbacks into st.
func (a *Aggregator) WithTrace(st *trace.SimulationTrace) *Aggregator {
	a.trace = st
	return a
}

// resample is one simulated season.
type resample struct {
	driverPoints []float64
	teamPoints   []float64
	wins         []int
	champion     int
	teamChampion int
}

// Project resamples the season M times. Every calendar race must have a
// recommendation in strict mode; permissive mode samples uncovered races
// from the pooled draws of the covered ones.
func (a *Aggregator) Project(ctx context.Context, calendar []sim.Race, field []sim.FieldEntry, recs []selection.Recommendation) (*Projection, error) {
	if len(field) == 0 {
		return nil, fmt.Errorf("championship field is empty")
	}
	if len(calendar) == 0 {
		return nil, &sim.IncompleteScheduleError{}
	}
	teams, teamOf, err := indexField(field)
	if err != nil {
		return nil, err
	}

	byRace := make(map[string][]race.Draw, len(recs))
	for _, r := range recs {
		if len(r.Draws) > 0 {
			byRace[r.Race.ID] = r.Draws
		}
	}
	sources := make([][]race.Draw, len(calendar))
	var missing []string
	var pooled []race.Draw
	for i, r := range calendar {
		draws, ok := byRace[r.ID]
		if !ok {
			missing = append(missing, r.ID)
			continue
		}
		for _, d := range draws {
			if len(d.Order) != len(field) {
				return nil, &sim.SimulationError{RaceID: r.ID, Err: fmt.Errorf("draw ranks %d cars, field has %d", len(d.Order), len(field))}
			}
		}
		sources[i] = draws
		pooled = append(pooled, draws...)
	}
	if len(missing) > 0 {
		schedErr := &sim.IncompleteScheduleError{Expected: len(calendar), Produced: len(calendar) - len(missing), Missing: missing}
		if a.mode != sim.ModePermissive || len(pooled) == 0 {
			return nil, schedErr
		}
		logrus.WithField("missing", missing).Warnf("%v; sampling missing races from pooled draws", schedErr)
		for i := range sources {
			if sources[i] == nil {
				sources[i] = pooled
				a.trace.RecordFallback(trace.FallbackRecord{RaceID: calendar[i].ID, Kind: "pooled_race", Reason: "no recommendation; sampled from pooled draws"})
			}
		}
	}

	m := a.cfg.Resamples
	if m < 1 {
		return nil, fmt.Errorf("resample count %d must be positive", m)
	}
	results := make([]resample, m)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	chunk := (m + a.workers - 1) / a.workers
	for start := 0; start < m; start += chunk {
		end := min(start+chunk, m)
		g.Go(func() error {
			for r := start; r < end; r++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[r] = a.season(r, sources, field, teams, teamOf)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("championship resampling: %w", err)
	}

	proj := summarize(results, field, teams)
	proj.Resamples = m
	proj.Seed = int64(a.key)
	proj.Mode = a.mode
	proj.Races = len(calendar)
	proj.PooledRaces = missing
	logrus.WithFields(logrus.Fields{
		"resamples": m,
		"races":     len(calendar),
		"leader":    proj.Drivers[0].Name,
		"title_p":   proj.Drivers[0].TitleProbability,
	}).Info("championship projected")
	return proj, nil
}

// season plays one resample: one draw per race, scored over its full
// finishing order.
func (a *Aggregator) season(r int, sources [][]race.Draw, field []sim.FieldEntry, teams []string, teamOf []int) resample {
	rng := sim.DrawStream(a.key, sim.ScopeChampionship, "season", r)
	n := len(field)
	res := resample{
		driverPoints: make([]float64, n),
		teamPoints:   make([]float64, len(teams)),
		wins:         make([]int, n),
	}
	// finishes[i][p] counts driver i's finishes in position p for countback.
	finishes := make([][]int, n)
	for i := range finishes {
		finishes[i] = make([]int, n)
	}
	for i, e := range field {
		res.driverPoints[i] = float64(a.cfg.StartingPoints[e.Driver])
	}
	for _, draws := range sources {
		d := draws[rng.IntN(len(draws))]
		for pos, idx := range d.Order {
			res.driverPoints[idx] += float64(a.cfg.Scoring.Points(pos + 1))
			finishes[idx][pos]++
		}
		res.wins[d.Order[0]]++
	}
	for i := range field {
		res.teamPoints[teamOf[i]] += res.driverPoints[i]
	}

	res.champion = 0
	for i := 1; i < n; i++ {
		if beats(res.driverPoints[i], finishes[i], res.driverPoints[res.champion], finishes[res.champion]) {
			res.champion = i
		}
	}
	res.teamChampion = 0
	for t := 1; t < len(teams); t++ {
		if res.teamPoints[t] > res.teamPoints[res.teamChampion] {
			res.teamChampion = t
		}
	}
	return res
}

// beats reports whether a outranks b on points, then countback. Equal
// records leave the earlier field entry ahead.
func beats(pa float64, fa []int, pb float64, fb []int) bool {
	if pa != pb {
		return pa > pb
	}
	for p := range fa {
		if fa[p] != fb[p] {
			return fa[p] > fb[p]
		}
	}
	return false
}

// indexField returns teams in first-appearance order and each driver's team index.
func indexField(field []sim.FieldEntry) ([]string, []int, error) {
	var teams []string
	teamIdx := map[string]int{}
	teamOf := make([]int, len(field))
	seen := map[string]bool{}
	for i, e := range field {
		if seen[e.Driver] {
			return nil, nil, fmt.Errorf("driver %q appears twice in the field", e.Driver)
		}
		seen[e.Driver] = true
		t, ok := teamIdx[e.Team]
		if !ok {
			t = len(teams)
			teamIdx[e.Team] = t
			teams = append(teams, e.Team)
		}
		teamOf[i] = t
	}
	return teams, teamOf, nil
}

func summarize(results []resample, field []sim.FieldEntry, teams []string) *Projection {
	m := float64(len(results))
	proj := &Projection{}

	driverTitles := make([]int, len(field))
	teamTitles := make([]int, len(teams))
	for _, r := range results {
		driverTitles[r.champion]++
		teamTitles[r.teamChampion]++
	}

	col := make([]float64, len(results))
	for i, e := range field {
		wins := 0
		for k, r := range results {
			col[k] = r.driverPoints[i]
			wins += r.wins[i]
		}
		st := distribution(col)
		st.Name, st.Team = e.Driver, e.Team
		st.ExpectedWins = float64(wins) / m
		st.TitleProbability = float64(driverTitles[i]) / m
		proj.Drivers = append(proj.Drivers, st)
	}
	for t, name := range teams {
		for k, r := range results {
			col[k] = r.teamPoints[t]
		}
		st := distribution(col)
		st.Name = name
		for i, e := range field {
			if e.Team == name {
				st.ExpectedWins += proj.Drivers[i].ExpectedWins
			}
		}
		st.TitleProbability = float64(teamTitles[t]) / m
		proj.Constructors = append(proj.Constructors, st)
	}
	sortStandings(proj.Drivers)
	sortStandings(proj.Constructors)
	return proj
}

func distribution(points []float64) Standing {
	sorted := append([]float64(nil), points...)
	sort.Float64s(sorted)
	return Standing{
		MeanPoints: stat.Mean(sorted, nil),
		P10Points:  stat.Quantile(0.1, stat.Empirical, sorted, nil),
		P50Points:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90Points:  stat.Quantile(0.9, stat.Empirical, sorted, nil),
	}
}

// sortStandings orders by title probability, then mean points; field order
// breaks remaining ties.
func sortStandings(s []Standing) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].TitleProbability != s[j].TitleProbability {
			return s[i].TitleProbability > s[j].TitleProbability
		}
		return s[i].MeanPoints > s[j].MeanPoints
	})
}
