// Package composite combines the alternation and balance scores into the
// number entities are ranked by.
package composite

import (
	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/scorer/alternation"
	"go.ntppool.org/tablerank/scorer/balance"
	"go.ntppool.org/tablerank/scorer/score"
)

const (
	DefaultAlternationWeight = 0.7
	DefaultBalanceWeight     = 0.3
)

type Weights struct {
	Alternation float64
	Balance     float64
}

// Scorer is a pure function of an entity's outcomes and its own settings.
type Scorer struct {
	MinSamples         int
	Weights            Weights
	Alphabet           entity.Alphabet
	ReliabilityHorizon float64
}

func New(minSamples int, w Weights, a entity.Alphabet, horizon float64) *Scorer {
	return &Scorer{
		MinSamples:         minSamples,
		Weights:            w,
		Alphabet:           a,
		ReliabilityHorizon: horizon,
	}
}

func (s *Scorer) Score(e entity.Entity) score.Score {
	primary, ties, other := balance.Counts(e.Outcomes, s.Alphabet)
	frac, pairs := alternation.Fraction(e.Outcomes, s.Alphabet)

	count := e.Count()
	rel := alternation.Reliability(count, s.ReliabilityHorizon)

	sc := score.Score{
		EntityID:       e.ID,
		Ts:             e.LastSeen,
		Count:          count,
		Primary:        primary,
		Ties:           ties,
		Other:          other,
		Pairs:          pairs,
		AlternationRaw: frac * 100,
		Reliability:    rel,
		Alternation:    frac * 100 * rel,
		Balance:        balance.Balance(primary[0], primary[1]),
	}

	if count < s.MinSamples {
		return sc
	}

	sc.Eligible = true
	sc.Composite = s.Weights.Alternation*sc.Alternation + s.Weights.Balance*sc.Balance
	sc.Value = sc.Composite
	return sc
}
