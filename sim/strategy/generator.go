// Package strategy enumerates legal pit/tyre strategy candidates for a race.
package strategy

import (
	"fmt"

	"github.com/f1-strategy-lab/strategylab/sim"
)

// Generate enumerates one-stop and two-stop candidates for a race of totalLaps
// laps. Every returned non-degenerate candidate uses at least two distinct
// compounds and respects the stint windows in c.
//
// Output is deterministic and order-stable: one-stops by (first, second,
// fraction), then two-stops by (first, second, third, fraction pair).
// Duplicate keys keep the first occurrence. When nothing is legal, a single
// candidate flagged Degenerate is returned.
func Generate(totalLaps int, c sim.CandidateConstraints) ([]sim.Candidate, error) {
	if totalLaps < 1 {
		return nil, fmt.Errorf("total laps must be positive, got %d", totalLaps)
	}
	compounds := uniqueCompounds(c.Compounds)
	if len(compounds) == 0 {
		return nil, fmt.Errorf("no compounds available")
	}

	g := &generator{laps: totalLaps, c: c, seen: make(map[string]bool)}

	for _, c1 := range compounds {
		for _, c2 := range compounds {
			if c1 == c2 {
				continue
			}
			for _, pit := range g.oneStopPitLaps() {
				g.add([]sim.Stint{{Compound: c1, Laps: pit}, {Compound: c2, Laps: totalLaps - pit}})
			}
		}
	}

	if c.MaxStops >= 2 {
		for _, c1 := range compounds {
			for _, c2 := range compounds {
				for _, c3 := range compounds {
					if c1 == c2 && c2 == c3 {
						continue
					}
					for _, f := range c.TwoStopFractions {
						p1, p2 := pitLap(totalLaps, f[0]), pitLap(totalLaps, f[1])
						if p2 <= p1 {
							continue
						}
						g.add([]sim.Stint{
							{Compound: c1, Laps: p1},
							{Compound: c2, Laps: p2 - p1},
							{Compound: c3, Laps: totalLaps - p2},
						})
					}
				}
			}
		}
	}

	if len(g.out) == 0 {
		return []sim.Candidate{degenerate(totalLaps, compounds)}, nil
	}
	return g.out, nil
}

type generator struct {
	laps int
	c    sim.CandidateConstraints
	seen map[string]bool
	out  []sim.Candidate
}

// oneStopPitLaps returns the configured fraction pit laps followed by the
// balanced split, so a legal even split is always considered.
func (g *generator) oneStopPitLaps() []int {
	pits := make([]int, 0, len(g.c.OneStopFractions)+1)
	for _, f := range g.c.OneStopFractions {
		pits = append(pits, pitLap(g.laps, f))
	}
	return append(pits, g.laps/2)
}

func (g *generator) add(stints []sim.Stint) {
	for _, s := range stints {
		if s.Laps < 1 || !g.c.StintLegal(s) {
			return
		}
	}
	cand := sim.Candidate{Stints: stints}
	if cand.DistinctCompounds() < 2 {
		return
	}
	key := cand.Key()
	if g.seen[key] {
		return
	}
	g.seen[key] = true
	cand.Index = len(g.out)
	g.out = append(g.out, cand)
}

// degenerate builds the minimal fallback plan: the first two compounds split
// evenly, or a single stint when only one compound exists or the race is one lap.
func degenerate(laps int, compounds []sim.Compound) sim.Candidate {
	if len(compounds) < 2 || laps < 2 {
		return sim.Candidate{
			Stints:     []sim.Stint{{Compound: compounds[0], Laps: laps}},
			Degenerate: true,
		}
	}
	first := laps / 2
	return sim.Candidate{
		Stints: []sim.Stint{
			{Compound: compounds[0], Laps: first},
			{Compound: compounds[1], Laps: laps - first},
		},
		Degenerate: true,
	}
}

func pitLap(laps int, fraction float64) int {
	return int(float64(laps) * fraction)
}

func uniqueCompounds(in []sim.Compound) []sim.Compound {
	seen := make(map[sim.Compound]bool, len(in))
	out := make([]sim.Compound, 0, len(in))
	for _, c := range in {
		c = sim.NormalizeCompound(string(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
