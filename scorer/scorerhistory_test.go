package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go.ntppool.org/tablerank/scorer/score"
)

func TestLastScore(t *testing.T) {
	sm := newScorerMap(nil)

	ts3 := time.Now()
	ts1 := ts3.Add(-15 * time.Minute)
	ts2 := ts1.Add(1 * time.Minute)

	sc := score.Score{EntityID: "T1", Value: 10, Count: 1}

	sc.Ts = ts1
	assert.True(t, sm.IsNew(sc), "first score should be 'new'")

	sc.Ts = ts2
	sc.Count = 2
	assert.False(t, sm.IsNew(sc), "same score shouldn't be 'new' (too recent)")

	sc.Ts = ts3
	sc.Count = 3
	assert.True(t, sm.IsNew(sc), "same score 15 minutes later should be 'new'")
}

func TestIsNewChanges(t *testing.T) {
	sm := newScorerMap(nil)
	t0 := time.Now()

	assert.True(t, sm.IsNew(score.Score{EntityID: "T1", Ts: t0, Value: 50, Count: 10}))

	// another entity is tracked on its own
	assert.True(t, sm.IsNew(score.Score{EntityID: "T2", Ts: t0, Value: 50, Count: 10}))

	// within 5% and soon after
	assert.False(t, sm.IsNew(score.Score{EntityID: "T1", Ts: t0.Add(time.Minute), Value: 51, Count: 11}))

	// within 5% after a third of the interval
	assert.True(t, sm.IsNew(score.Score{EntityID: "T1", Ts: t0.Add(6 * time.Minute), Value: 51, Count: 12}))

	// a real change is logged right away
	assert.True(t, sm.IsNew(score.Score{EntityID: "T1", Ts: t0.Add(7 * time.Minute), Value: 70, Count: 13}))

	// out of order
	assert.False(t, sm.IsNew(score.Score{EntityID: "T1", Ts: t0, Value: 10, Count: 14}))

	// no new outcomes
	assert.False(t, sm.IsNew(score.Score{EntityID: "T1", Ts: t0.Add(7 * time.Minute), Value: 90, Count: 13}))

	sm.Forget("T1")
	assert.True(t, sm.IsNew(score.Score{EntityID: "T1", Ts: t0, Value: 10, Count: 1}))
}

func TestIsPercentageClose(t *testing.T) {
	assert.True(t, isPercentageClose(0, 0))
	assert.False(t, isPercentageClose(0, 1))
	assert.True(t, isPercentageClose(100, 96))
	assert.False(t, isPercentageClose(100, 90))
}
