package tabledb_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/tabledb"
	"go.ntppool.org/tablerank/testutil"
)

func TestOutcomesRoundTrip(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()
	q := tdb.Queries

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, o := range []string{"A", "B", "T", "A"} {
		_, err := q.InsertOutcome(ctx, tabledb.InsertOutcomeParams{
			EntityID: "T1", Outcome: o, Ts: t0.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	_, err := q.InsertOutcome(ctx, tabledb.InsertOutcomeParams{EntityID: "T0", Outcome: "B", Ts: t0})
	require.NoError(t, err)

	entities, err := q.LoadEntities(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, entities, 2)

	assert.Equal(t, "T0", entities[0].ID)
	assert.Equal(t, "T1", entities[1].ID)
	assert.Equal(t, []entity.Outcome{"A", "B", "T", "A"}, entities[1].Outcomes)
	assert.True(t, entities[1].LastSeen.Equal(t0.Add(3*time.Second)))
	assert.True(t, entities[1].FirstSeen.Equal(t0))

	// history window
	entities, err = q.LoadEntities(ctx, t0.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, []entity.Outcome{"T", "A"}, entities[0].Outcomes)

	require.NoError(t, q.DeleteEntity(ctx, "T1"))
	entities, err = q.LoadEntities(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, entities, 1)
}

func TestScoreLog(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()
	q := tdb.Queries
	now := time.Now()

	insert := func(id string, v float64) {
		_, err := q.InsertScoreLog(ctx, tabledb.InsertScoreLogParams{
			Scorer: "composite", EntityID: id, Ts: now, Value: v, Composite: v, SampleCount: 10,
		})
		require.NoError(t, err)
	}
	insert("a", 10)
	insert("b", 50)
	insert("a", 70)

	scores, err := q.GetLatestScores(ctx, "composite")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "a", scores[0].EntityID)
	assert.Equal(t, 70.0, scores[0].Value)
	assert.Equal(t, "b", scores[1].EntityID)
	assert.JSONEq(t, "{}", string(scores[0].Attributes))

	other, err := q.GetLatestScores(ctx, "balance")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSelections(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()
	q := tdb.Queries

	_, err := q.GetLatestSelection(ctx)
	assert.ErrorIs(t, err, tabledb.ErrNotFound)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err = q.InsertSelection(ctx, tabledb.InsertSelectionParams{
		CycleID: "01JTEST", Seq: 1, Reason: "startup", CreatedOn: created, Entities: nil,
	})
	require.NoError(t, err)
	_, err = q.InsertSelection(ctx, tabledb.InsertSelectionParams{
		CycleID: "01JTEST2", Seq: 2, Reason: "rounds", CreatedOn: created, Entities: []string{"T1", "T3"},
	})
	require.NoError(t, err)

	sel, err := q.GetLatestSelection(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), sel.Seq)
	assert.Equal(t, []string{"T1", "T3"}, sel.Entities)
	assert.True(t, sel.CreatedOn.Equal(created))
}

func TestWithTransaction(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	ctx := context.Background()

	err := tabledb.WithTransaction(ctx, tdb.DB, func(ctx context.Context, q *tabledb.Queries) error {
		_, err := q.InsertOutcome(ctx, tabledb.InsertOutcomeParams{EntityID: "x", Outcome: "A", Ts: time.Now()})
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte("nope"), &struct{}{})
	})
	require.Error(t, err)

	entities, err := tdb.Queries.LoadEntities(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, entities, "failed transaction is rolled back")
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := tabledb.OpenDB(context.Background(), "postgres", "")
	require.Error(t, err)
	require.Error(t, tabledb.New(nil).CreateSchema(context.Background(), "postgres"))
}
