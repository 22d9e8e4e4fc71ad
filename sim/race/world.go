package race

import (
	"math"
	"math/rand/v2"
	"sort"
)

// window is a safety-car period covering laps [Start, End] inclusive.
type window struct {
	Start int
	End   int
}

// world is the shared realization of one draw: weather and safety cars apply
// to every car in the field.
type world struct {
	laps        int
	rainPerLap  float64 // baseline rain loss added to every green lap
	shift       bool
	shiftOnset  int
	shiftFactor float64 // multiplier on green laps from shiftOnset on
	windows     []window
	underSC     []bool // indexed by lap, 1-based
	restart     int    // last safety-car lap, 0 when none
}

// sampleWeather consumes the weather step of a draw.
func (w *world) sampleWeather(rng *rand.Rand, rainIndex, shiftProb, paceFactor float64) {
	w.rainPerLap = rainIndex * (0.25 + 0.12*rng.NormFloat64())
	if rng.Float64() < shiftProb {
		w.shift = true
		w.shiftOnset = 1 + rng.IntN(w.laps)
		w.shiftFactor = 1 + paceFactor*(0.5+rng.Float64())
	}
}

// sampleSafetyCars consumes the safety-car step: a Poisson window count, each
// window starting uniformly in [2, laps-1] and lasting [minLaps, maxLaps].
// Overlapping windows merge.
func (w *world) sampleSafetyCars(rng *rand.Rand, rate float64, minLaps, maxLaps int) {
	w.underSC = make([]bool, w.laps+1)
	n := poisson(rng, rate)
	if n == 0 || w.laps < 3 {
		return
	}
	raw := make([]window, 0, n)
	for i := 0; i < n; i++ {
		start := 2 + rng.IntN(w.laps-2)
		dur := minLaps
		if maxLaps > minLaps {
			dur += rng.IntN(maxLaps - minLaps + 1)
		}
		end := start + dur - 1
		if end > w.laps {
			end = w.laps
		}
		raw = append(raw, window{Start: start, End: end})
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].Start < raw[j].Start })
	for _, win := range raw {
		if k := len(w.windows); k > 0 && win.Start <= w.windows[k-1].End+1 {
			if win.End > w.windows[k-1].End {
				w.windows[k-1].End = win.End
			}
			continue
		}
		w.windows = append(w.windows, win)
	}
	for _, win := range w.windows {
		for l := win.Start; l <= win.End; l++ {
			w.underSC[l] = true
		}
	}
	w.restart = w.windows[len(w.windows)-1].End
}

// poisson samples a Poisson count by Knuth's multiplication method.
func poisson(rng *rand.Rand, rate float64) int {
	if rate <= 0 {
		return 0
	}
	limit := math.Exp(-rate)
	k := 0
	p := rng.Float64()
	for p > limit {
		k++
		p *= rng.Float64()
	}
	return k
}
