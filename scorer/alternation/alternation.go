// Package alternation scores how often consecutive primary outcomes switch
// sides.
package alternation

import (
	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/scorer/score"
)

// DefaultHorizon is the sample count at which the reliability factor
// reaches 1.0 (starting from 0.5).
const DefaultHorizon = 60

// Fraction returns the share of adjacent primary outcome pairs that differ
// and the number of pairs considered. Ties and unknown symbols are skipped,
// so A,T,B counts as one differing pair.
func Fraction(outcomes []entity.Outcome, a entity.Alphabet) (float64, int) {
	prev := -1
	pairs, changes := 0, 0

	for _, o := range outcomes {
		idx := a.PrimaryIndex(o)
		if idx < 0 {
			continue
		}
		if prev >= 0 {
			pairs++
			if idx != prev {
				changes++
			}
		}
		prev = idx
	}

	if pairs == 0 {
		return 0, 0
	}
	return float64(changes) / float64(pairs), pairs
}

// Reliability rises from 0.5 toward 1.0 as the sample count grows.
func Reliability(count int, horizon float64) float64 {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return min(1, 0.5+float64(count)/horizon)
}

type Scorer struct {
	alphabet entity.Alphabet
	horizon  float64
}

func New(a entity.Alphabet, horizon float64) *Scorer {
	return &Scorer{alphabet: a, horizon: horizon}
}

// Score fills the alternation fields; Value is the reliability-scaled
// alternation score (0-100).
func (s *Scorer) Score(e entity.Entity) score.Score {
	frac, pairs := Fraction(e.Outcomes, s.alphabet)
	rel := Reliability(e.Count(), s.horizon)
	raw := frac * 100

	return score.Score{
		EntityID:       e.ID,
		Ts:             e.LastSeen,
		Count:          e.Count(),
		Pairs:          pairs,
		AlternationRaw: raw,
		Reliability:    rel,
		Alternation:    raw * rel,
		Value:          raw * rel,
	}
}
