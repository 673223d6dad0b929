package selector

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/scorer/score"
	"go.ntppool.org/tablerank/scorer/types"
)

// Rank scores the eligible entities and returns at most k of them, best
// first. Inactive entities, entities that went stale as of now and entities
// below the scorer's minimum sample count are left out. Equal scores are
// ordered by entity ID.
func Rank(entities []entity.Entity, sc types.Scorer, now time.Time, window time.Duration, k int) []score.Score {
	scores := make([]score.Score, 0, len(entities))

	for _, e := range entities {
		if !e.Active || e.IsStale(now, window) {
			continue
		}
		s := sc.Score(e)
		if !s.Eligible {
			continue
		}
		scores = append(scores, s)
	}

	slices.SortFunc(scores, func(a, b score.Score) int {
		if c := cmp.Compare(b.Composite, a.Composite); c != 0 {
			return c
		}
		return strings.Compare(a.EntityID, b.EntityID)
	})

	if k >= 0 && len(scores) > k {
		scores = scores[:k]
	}
	return scores
}
