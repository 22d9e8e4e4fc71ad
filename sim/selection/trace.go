package selection

import (
	"fmt"

	"github.com/f1-strategy-lab/strategylab/sim/trace"
)

// TraceRecord builds the decision record for a recommendation, keeping the
// top k ranked candidates as counterfactuals.
func TraceRecord(rec *Recommendation, k int) trace.SelectionRecord {
	ranked := rec.Ranked()
	chosen := rec.Primary

	regret := 0.0
	for _, s := range rec.Contingencies {
		if d := s.Score.Composite - chosen.Score.Composite; d > regret {
			regret = d
		}
	}

	reason := fmt.Sprintf("best composite %.3f of %d candidates", chosen.Score.Composite, len(ranked))
	if chosen.Candidate.Degenerate {
		reason = "only degenerate candidates available"
	} else if regret > 0 {
		reason = fmt.Sprintf("best non-degenerate composite %.3f of %d candidates", chosen.Score.Composite, len(ranked))
	}

	record := trace.SelectionRecord{
		RaceID:   rec.Race.ID,
		Round:    rec.Race.Round,
		Chosen:   chosen.Candidate.Key(),
		Sequence: chosen.Candidate.Sequence(),
		Reason:   reason,
		Regret:   regret,
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	for _, s := range ranked[:max(k, 0)] {
		record.Candidates = append(record.Candidates, trace.CandidateScore{
			Key:              s.Candidate.Key(),
			Name:             s.Candidate.Name(),
			Composite:        s.Score.Composite,
			ExpectedPoints:   s.Score.ExpectedPoints,
			ExpectedPosition: s.Score.ExpectedPosition,
			Robustness:       s.Score.Robustness,
			Degenerate:       s.Candidate.Degenerate,
		})
	}
	return record
}
