// Package race implements the Monte Carlo race simulator. Each draw realizes
// traffic, weather, safety cars and pit losses for the simulated driver and
// the whole field, then ranks the field by race time.
//
// Randomness within a draw is consumed in a fixed order:
//
//  1. traffic (one term per stint of the simulated driver)
//  2. weather (baseline rain term, then the shift event)
//  3. safety car (window count, then start and length of each window)
//  4. pit loss (one term per stop, plus the safety-car discount)
//  5. lap noise (one term per stint, then the model-error term)
//  6. field (every other entrant in field order)
//
// Every draw has its own stream derived from the run key, the scope, the
// race and candidate, and the draw index (see sim.DrawStream), so the result
// does not depend on how candidates are spread over workers.
package race

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/f1-strategy-lab/strategylab/sim"
)

// minLapSeconds is the floor applied to every green-flag lap.
const minLapSeconds = 40.0

// Input is everything the simulator needs for one race.
type Input struct {
	Race       sim.Race
	Conditions sim.RaceConditions
	// Field lists every entrant's pace, target included. Field order breaks
	// ties in finishing position.
	Field []sim.PacePrediction
	// Target is the driver whose candidates are simulated.
	Target string
	// Nominal is the plan every rival runs. Empty means the fastest
	// noise-free candidate.
	Nominal sim.Candidate
	// BaseLapDelta is added to the target's base lap only.
	BaseLapDelta float64
}

// Draw is one realization of a race for one candidate.
type Draw struct {
	RaceTime     float64 `json:"race_time"`
	Position     int     `json:"position"`
	Points       int     `json:"points"`
	SafetyCars   int     `json:"safety_cars"`
	WeatherShift bool    `json:"weather_shift"`
	PitLaps      []int   `json:"pit_laps"` // laps the stops were actually taken
	Order        []int16 `json:"order"`    // field indices in finishing order
}

// Outcome is the full draw set of one candidate.
type Outcome struct {
	Candidate sim.Candidate
	Draws     []Draw
}

// Simulator runs candidates against the field. Safe for concurrent use.
type Simulator struct {
	key         sim.SimulationKey
	cfg         sim.SimulationConfig
	constraints sim.CandidateConstraints
	scoring     sim.ScoringTable
}

// NewSimulator creates a simulator for one run key.
func NewSimulator(key sim.SimulationKey, cfg sim.SimulationConfig, constraints sim.CandidateConstraints, scoring sim.ScoringTable) *Simulator {
	return &Simulator{key: key, cfg: cfg, constraints: constraints, scoring: scoring}
}

// Config returns the simulation parameters.
func (s *Simulator) Config() sim.SimulationConfig {
	return s.cfg
}

// prepared holds per-race values shared read-only by all draws.
type prepared struct {
	in          Input
	laps        int
	target      int
	nominal     []sim.Stint
	fuelTerm    []float64 // indexed by lap, 1-based
	scLap       float64
	noiseSigma  float64
	trafficMean float64 // per lap
	trafficSig  float64 // per sqrt(lap)
}

func (s *Simulator) prepare(in Input, candidates []sim.Candidate) (*prepared, error) {
	laps := in.Race.Laps
	if laps < 1 {
		return nil, fmt.Errorf("lap count %d must be positive", laps)
	}
	if len(in.Field) == 0 {
		return nil, fmt.Errorf("field is empty")
	}
	if len(in.Field) > math.MaxInt16 {
		return nil, fmt.Errorf("field of %d entrants is too large", len(in.Field))
	}
	target := -1
	fastest := math.Inf(1)
	for i, p := range in.Field {
		if p.Driver == in.Target && target < 0 {
			target = i
		}
		fastest = math.Min(fastest, p.BaseLapTime)
	}
	if target < 0 {
		return nil, fmt.Errorf("target driver %q not in field", in.Target)
	}

	p := &prepared{
		in:          in,
		laps:        laps,
		target:      target,
		fuelTerm:    make([]float64, laps+1),
		scLap:       fastest * s.cfg.SafetyCarLapFactor,
		noiseSigma:  s.cfg.WeatherUncertaintySeconds + s.cfg.TrafficUncertaintySeconds,
		trafficMean: in.Conditions.TrafficIndex * s.cfg.TrafficLossPerLap,
		trafficSig:  in.Conditions.TrafficIndex * s.cfg.TrafficSigmaPerLap,
	}
	fuel := FuelEffect(in.Conditions.FuelLoadProxy, laps)
	for l := 1; l <= laps; l++ {
		p.fuelTerm[l] = -fuel * (float64(l) / float64(laps)) * 5
	}

	nominal := in.Nominal
	if len(nominal.Stints) == 0 {
		var ok bool
		nominal, ok = NominalCandidate(in, candidates, s.cfg.PitLaneLossSeconds)
		if !ok {
			return nil, fmt.Errorf("no candidates to derive the field's nominal strategy")
		}
	}
	if nominal.TotalLaps() != laps {
		return nil, fmt.Errorf("nominal strategy %s covers %d of %d laps", nominal.Key(), nominal.TotalLaps(), laps)
	}
	p.nominal = nominal.Stints
	return p, nil
}

// FuelEffect returns the per-race fuel burn coefficient, clamped to [0.05, 0.3].
func FuelEffect(fuelLoadProxy float64, laps int) float64 {
	v := fuelLoadProxy / math.Max(float64(laps)*0.06, 1)
	return math.Max(0.05, math.Min(0.3, v))
}

// NominalCandidate returns the candidate with the lowest noise-free race time
// for the target, preferring non-degenerate candidates. Ties keep the earlier
// candidate.
func NominalCandidate(in Input, candidates []sim.Candidate, pitLoss float64) (sim.Candidate, bool) {
	laps := in.Race.Laps
	base := 0.0
	for _, p := range in.Field {
		if p.Driver == in.Target {
			base = p.BaseLapTime
			break
		}
	}
	fuel := FuelEffect(in.Conditions.FuelLoadProxy, laps)
	rain := in.Conditions.RainIndex * 0.25

	best, bestTime, found := sim.Candidate{}, math.Inf(1), false
	for _, c := range candidates {
		if c.TotalLaps() != laps {
			continue
		}
		t := float64(c.Stops()) * pitLoss
		lap := 0
		for _, st := range c.Stints {
			deg := in.Conditions.DegradationFor(st.Compound)
			for age := 0; age < st.Laps; age++ {
				lap++
				t += math.Max(base-fuel*(float64(lap)/float64(laps))*5+deg*float64(age)+rain, minLapSeconds)
			}
		}
		better := t < bestTime
		if found && best.Degenerate != c.Degenerate {
			better = best.Degenerate
		}
		if !found || better {
			best, bestTime, found = c, t, true
		}
	}
	return best, found
}

// Run simulates cfg.Draws draws for every candidate on a bounded worker pool.
// Outcomes are returned in candidate order.
func (s *Simulator) Run(ctx context.Context, in Input, candidates []sim.Candidate, scope string) ([]Outcome, error) {
	p, err := s.prepare(in, candidates)
	if err != nil {
		return nil, &sim.SimulationError{RaceID: in.Race.ID, Err: err}
	}
	for _, c := range candidates {
		if c.TotalLaps() != p.laps {
			return nil, &sim.SimulationError{
				RaceID:       in.Race.ID,
				CandidateKey: c.Key(),
				Err:          fmt.Errorf("candidate covers %d of %d laps", c.TotalLaps(), p.laps),
			}
		}
	}

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logrus.WithFields(logrus.Fields{
		"race":       in.Race.ID,
		"scope":      scope,
		"candidates": len(candidates),
		"draws":      s.cfg.Draws,
		"workers":    workers,
	}).Debug("simulating race")

	out := make([]Outcome, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range candidates {
		g.Go(func() error {
			draws := make([]Draw, s.cfg.Draws)
			for d := range draws {
				if d%128 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				draws[d] = s.draw(p, c, scope, d)
			}
			out[i] = Outcome{Candidate: c, Draws: draws}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulating race %s: %w", in.Race.ID, err)
	}
	return out, nil
}

// Draw evaluates a single draw. The result depends only on the arguments and
// the simulator's key and config.
func (s *Simulator) Draw(in Input, candidates []sim.Candidate, c sim.Candidate, scope string, index int) (Draw, error) {
	p, err := s.prepare(in, candidates)
	if err != nil {
		return Draw{}, &sim.SimulationError{RaceID: in.Race.ID, CandidateKey: c.Key(), Err: err}
	}
	if c.TotalLaps() != p.laps {
		return Draw{}, &sim.SimulationError{RaceID: in.Race.ID, CandidateKey: c.Key(), Err: fmt.Errorf("candidate covers %d of %d laps", c.TotalLaps(), p.laps)}
	}
	return s.draw(p, c, scope, index), nil
}

// StreamID is the draw-stream identifier of a candidate within a race.
func StreamID(raceID string, c sim.Candidate) string {
	return raceID + "/" + c.Key()
}

func (s *Simulator) draw(p *prepared, c sim.Candidate, scope string, index int) Draw {
	rng := sim.DrawStream(s.key, scope, StreamID(p.in.Race.ID, c), index)
	w := &world{laps: p.laps}

	// 1. traffic
	trafficZ := normals(rng, len(c.Stints))

	// 2. weather, 3. safety car
	w.sampleWeather(rng, p.in.Conditions.RainIndex, s.cfg.WeatherShiftProbability, s.cfg.WeatherPaceFactor)
	w.sampleSafetyCars(rng, s.cfg.SafetyCarRate, s.cfg.SafetyCarMinLaps, s.cfg.SafetyCarMaxLaps)

	stints := adaptStops(c.Stints, w, s.cfg.SafetyCarPitSlackLaps, s.constraints)

	// 4. pit loss
	pits := pitLaps(stints)
	pitLoss := s.pitLosses(rng, w, pits)

	// 5. lap noise
	target := p.in.Field[p.target]
	extra := s.stintExtras(rng, p, stints, trafficZ)
	modelErr := rng.NormFloat64() * target.Uncertainty * math.Sqrt(float64(p.laps))

	n := len(p.in.Field)
	totals := make([]float64, n)
	restarts := make([]float64, n)
	totals[p.target], restarts[p.target] = p.raceTime(w, stints, target.BaseLapTime+p.in.BaseLapDelta, extra, pitLoss, modelErr)

	// 6. field
	for i, rival := range p.in.Field {
		if i == p.target {
			continue
		}
		rs := adaptStops(p.nominal, w, s.cfg.SafetyCarPitSlackLaps, s.constraints)
		z := normals(rng, len(rs))
		rl := s.pitLosses(rng, w, pitLaps(rs))
		re := s.stintExtras(rng, p, rs, z)
		me := rng.NormFloat64() * rival.Uncertainty * math.Sqrt(float64(p.laps))
		totals[i], restarts[i] = p.raceTime(w, rs, rival.BaseLapTime, re, rl, me)
	}

	compressGaps(totals, restarts, len(w.windows), s.cfg.GapCompression)

	order := finishingOrder(totals)
	position := positionOf(order, p.target)
	return Draw{
		RaceTime:     totals[p.target],
		Position:     position,
		Points:       s.scoring.Points(position),
		SafetyCars:   len(w.windows),
		WeatherShift: w.shift,
		PitLaps:      pits,
		Order:        order,
	}
}

// pitLosses draws the time lost at each stop. A stop taken under a safety car
// costs a discounted share of the lane loss.
func (s *Simulator) pitLosses(rng *rand.Rand, w *world, pits []int) []float64 {
	out := make([]float64, len(pits))
	for i, lap := range pits {
		loss := s.cfg.PitLaneLossSeconds + math.Abs(rng.NormFloat64()*s.cfg.PitLossSigmaSeconds)
		if w.underSC[lap] {
			lo, hi := s.cfg.SafetyCarPitDiscountLo, s.cfg.SafetyCarPitDiscountHi
			loss *= lo + (hi-lo)*rng.Float64()
		}
		out[i] = loss
	}
	return out
}

// stintExtras combines the traffic loss and the lap noise of each stint.
func (s *Simulator) stintExtras(rng *rand.Rand, p *prepared, stints []sim.Stint, trafficZ []float64) []float64 {
	out := make([]float64, len(stints))
	for i, st := range stints {
		laps := float64(st.Laps)
		traffic := p.trafficMean*laps + p.trafficSig*math.Sqrt(laps)*trafficZ[i]
		noise := rng.NormFloat64() * p.noiseSigma * math.Sqrt(laps)
		out[i] = traffic + noise
	}
	return out
}

// raceTime sums one car's laps. Stint extras are spread evenly over the
// stint and the model error over the race. It also returns the elapsed time
// at the last safety-car restart (0 when there was none).
func (p *prepared) raceTime(w *world, stints []sim.Stint, base float64, extra, pitLoss []float64, modelErr float64) (float64, float64) {
	total, atRestart := 0.0, 0.0
	spread := modelErr / float64(p.laps)
	lap := 0
	for i, st := range stints {
		if st.Laps == 0 {
			continue
		}
		perLap := extra[i]/float64(st.Laps) + spread
		deg := p.in.Conditions.DegradationFor(st.Compound)
		for age := 0; age < st.Laps; age++ {
			lap++
			var t float64
			if w.underSC[lap] {
				t = p.scLap
			} else {
				t = base + p.fuelTerm[lap] + deg*float64(age) + w.rainPerLap
				if w.shift && lap >= w.shiftOnset {
					t *= w.shiftFactor
				}
				t = math.Max(t, minLapSeconds)
			}
			total += t + perLap
			if age == st.Laps-1 && i < len(pitLoss) {
				total += pitLoss[i]
			}
			if lap == w.restart {
				atRestart = total
			}
		}
	}
	return total, atRestart
}

// adaptStops applies the safety-car pit policy: a planned stop falling within
// slack laps after a window start, but after the window ended, is pulled
// forward to the window start when both adjacent stints stay legal. Each stop
// moves at most once. The input is not modified.
func adaptStops(planned []sim.Stint, w *world, slack int, c sim.CandidateConstraints) []sim.Stint {
	if len(planned) < 2 || len(w.windows) == 0 || slack <= 0 {
		return planned
	}
	var stints []sim.Stint
	pit := 0
	for i := 0; i < len(planned)-1; i++ {
		cur := planned
		if stints != nil {
			cur = stints
		}
		pit += cur[i].Laps
		for _, win := range w.windows {
			if pit <= win.End || pit-win.Start > slack {
				continue
			}
			shift := pit - win.Start
			a := sim.Stint{Compound: cur[i].Compound, Laps: cur[i].Laps - shift}
			b := sim.Stint{Compound: cur[i+1].Compound, Laps: cur[i+1].Laps + shift}
			if a.Laps >= 1 && c.StintLegal(a) && c.StintLegal(b) {
				if stints == nil {
					stints = append([]sim.Stint(nil), planned...)
				}
				stints[i], stints[i+1] = a, b
				pit = win.Start
			}
			break
		}
	}
	if stints == nil {
		return planned
	}
	return stints
}

// pitLaps returns the lap at the end of which each stop is taken.
func pitLaps(stints []sim.Stint) []int {
	if len(stints) < 2 {
		return nil
	}
	out := make([]int, 0, len(stints)-1)
	lap := 0
	for _, st := range stints[:len(stints)-1] {
		lap += st.Laps
		out = append(out, lap)
	}
	return out
}

// compressGaps shrinks the share of each car's gap to the leader accrued
// before the last restart by gapCompression^k for k safety-car windows.
func compressGaps(totals, restarts []float64, k int, gapCompression float64) {
	if k == 0 {
		return
	}
	lead := math.Inf(1)
	for _, r := range restarts {
		lead = math.Min(lead, r)
	}
	f := 1 - math.Pow(gapCompression, float64(k))
	for i := range totals {
		totals[i] -= (restarts[i] - lead) * f
	}
}

// finishingOrder ranks field indices by race time, ties by field order.
func finishingOrder(totals []float64) []int16 {
	order := make([]int16, len(totals))
	for i := range order {
		order[i] = int16(i)
	}
	sort.SliceStable(order, func(a, b int) bool { return totals[order[a]] < totals[order[b]] })
	return order
}

// positionOf returns the 1-based finishing position of field index i, so
// ties resolve exactly as in the finishing order.
func positionOf(order []int16, i int) int {
	for pos, idx := range order {
		if int(idx) == i {
			return pos + 1
		}
	}
	return len(order) + 1
}

func normals(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}
