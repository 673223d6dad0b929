package scorer

import (
	"math"
	"time"

	"go.ntppool.org/tablerank/scorer/score"
	"go.ntppool.org/tablerank/scorer/types"
)

type ScorerMap struct {
	Scorer    types.Scorer
	lastScore map[string]*lastUpdate
}

func newScorerMap(sc types.Scorer) *ScorerMap {
	return &ScorerMap{
		Scorer:    sc,
		lastScore: map[string]*lastUpdate{},
	}
}

var minScoreInterval = 15 * time.Minute

const (
	percentageSimilarityThreshold = 0.05 // 5%
	fastIntervalRatio             = 3    // 1/3 of minScoreInterval
)

// IsNew reports whether sc should be written to the score log, and if so
// remembers it as the last logged score for the entity.
func (sm *ScorerMap) IsNew(sc score.Score) bool {
	if last, ok := sm.lastScore[sc.EntityID]; ok {
		// Skip out-of-order scores
		if sc.Ts.Before(last.ts) {
			return false
		}

		// nothing happened since the last one
		if !sc.Ts.After(last.ts) && sc.Count == last.count {
			return false
		}

		if almostEqual(sc.Value, last.score) {
			if last.ts.Add(minScoreInterval).After(sc.Ts) {
				// we recorded the same score recently enough
				return false
			}
		}

		// also ignore if within 5% and within a third of the min interval
		percentageClose := isPercentageClose(sc.Value, last.score)
		if percentageClose && last.ts.Add(minScoreInterval/fastIntervalRatio).After(sc.Ts) {
			return false
		}
	}

	sm.lastScore[sc.EntityID] = &lastUpdate{
		ts:    sc.Ts,
		score: sc.Value,
		count: sc.Count,
	}

	return true
}

// Forget drops the remembered score for an entity that was pruned.
func (sm *ScorerMap) Forget(entityID string) {
	delete(sm.lastScore, entityID)
}

const float64EqualityThreshold = 1e-12

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= float64EqualityThreshold
}

func isPercentageClose(score1, score2 float64) bool {
	if score1 == 0 && score2 == 0 {
		return true
	}
	if score1 == 0 || score2 == 0 {
		return almostEqual(score1, score2)
	}
	return math.Abs(score1-score2) <= math.Abs(score2)*percentageSimilarityThreshold
}
