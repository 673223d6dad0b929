// Package balance scores how close the two primary outcomes are to an even
// split.
package balance

import (
	"math"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/scorer/score"
)

// Counts tallies the primary outcomes, ties and anything else.
func Counts(outcomes []entity.Outcome, a entity.Alphabet) (primary [2]int, ties, other int) {
	for _, o := range outcomes {
		if idx := a.PrimaryIndex(o); idx >= 0 {
			primary[idx]++
			continue
		}
		if a.IsTie(o) {
			ties++
			continue
		}
		other++
	}
	return primary, ties, other
}

// Balance is 100 for a 50/50 split and loses two points per percentage
// point of deviation, floored at 0. No primary outcomes scores 0.
func Balance(a, b int) float64 {
	total := a + b
	if total == 0 {
		return 0
	}
	rate := float64(a) / float64(total) * 100
	deviation := math.Abs(rate - 50)
	return max(0, 100-2*deviation)
}

type Scorer struct {
	alphabet entity.Alphabet
}

func New(a entity.Alphabet) *Scorer {
	return &Scorer{alphabet: a}
}

func (s *Scorer) Score(e entity.Entity) score.Score {
	primary, ties, other := Counts(e.Outcomes, s.alphabet)
	b := Balance(primary[0], primary[1])

	return score.Score{
		EntityID: e.ID,
		Ts:       e.LastSeen,
		Count:    e.Count(),
		Primary:  primary,
		Ties:     ties,
		Other:    other,
		Balance:  b,
		Value:    b,
	}
}
