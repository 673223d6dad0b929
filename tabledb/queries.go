package tabledb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const insertOutcome = `INSERT INTO outcomes (entity_id, outcome, ts) VALUES (?, ?, ?)`

type InsertOutcomeParams struct {
	EntityID string
	Outcome  string
	Ts       time.Time
}

func (q *Queries) InsertOutcome(ctx context.Context, arg InsertOutcomeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertOutcome, arg.EntityID, arg.Outcome, toUnix(arg.Ts))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getOutcomes = `SELECT id, entity_id, outcome, ts FROM outcomes
WHERE ts >= ?
ORDER BY entity_id, id`

// GetOutcomes returns all outcomes recorded at or after since, grouped by
// entity in arrival order.
func (q *Queries) GetOutcomes(ctx context.Context, since time.Time) ([]Outcome, error) {
	rows, err := q.db.QueryContext(ctx, getOutcomes, toUnix(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Outcome
	for rows.Next() {
		var i Outcome
		var ts int64
		if err := rows.Scan(&i.ID, &i.EntityID, &i.Outcome, &ts); err != nil {
			return nil, err
		}
		i.Ts = fromUnix(ts)
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteEntityOutcomes = `DELETE FROM outcomes WHERE entity_id = ?`
const deleteEntityScores = `DELETE FROM score_log WHERE entity_id = ?`

// DeleteEntity removes the recorded history of an entity.
func (q *Queries) DeleteEntity(ctx context.Context, entityID string) error {
	if _, err := q.db.ExecContext(ctx, deleteEntityOutcomes, entityID); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, deleteEntityScores, entityID)
	return err
}

const insertScoreLog = `INSERT INTO score_log
  (scorer, entity_id, ts, value, composite, sample_count, attributes)
VALUES (?, ?, ?, ?, ?, ?, ?)`

type InsertScoreLogParams struct {
	Scorer      string
	EntityID    string
	Ts          time.Time
	Value       float64
	Composite   float64
	SampleCount int
	Attributes  []byte
}

func (q *Queries) InsertScoreLog(ctx context.Context, arg InsertScoreLogParams) (int64, error) {
	attributes := arg.Attributes
	if len(attributes) == 0 {
		attributes = []byte("{}")
	}
	result, err := q.db.ExecContext(ctx, insertScoreLog,
		arg.Scorer,
		arg.EntityID,
		toUnix(arg.Ts),
		arg.Value,
		arg.Composite,
		arg.SampleCount,
		string(attributes),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getLatestScores = `SELECT s.id, s.scorer, s.entity_id, s.ts, s.value, s.composite, s.sample_count, s.attributes
FROM score_log s
WHERE s.scorer = ?
  AND s.id = (SELECT MAX(l.id) FROM score_log l WHERE l.scorer = s.scorer AND l.entity_id = s.entity_id)
ORDER BY s.value DESC, s.entity_id`

// GetLatestScores returns the most recent logged score per entity for the
// named scorer, best first.
func (q *Queries) GetLatestScores(ctx context.Context, scorer string) ([]ScoreLog, error) {
	rows, err := q.db.QueryContext(ctx, getLatestScores, scorer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ScoreLog
	for rows.Next() {
		var i ScoreLog
		var ts int64
		var attributes string
		if err := rows.Scan(
			&i.ID,
			&i.Scorer,
			&i.EntityID,
			&ts,
			&i.Value,
			&i.Composite,
			&i.SampleCount,
			&attributes,
		); err != nil {
			return nil, err
		}
		i.Ts = fromUnix(ts)
		i.Attributes = []byte(attributes)
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertSelection = `INSERT INTO selections (cycle_id, seq, reason, created_on, entities)
VALUES (?, ?, ?, ?, ?)`

type InsertSelectionParams struct {
	CycleID   string
	Seq       uint64
	Reason    string
	CreatedOn time.Time
	Entities  []string
}

func (q *Queries) InsertSelection(ctx context.Context, arg InsertSelectionParams) (int64, error) {
	entities := arg.Entities
	if entities == nil {
		entities = []string{}
	}
	js, err := json.Marshal(entities)
	if err != nil {
		return 0, fmt.Errorf("encoding entities: %w", err)
	}
	result, err := q.db.ExecContext(ctx, insertSelection,
		arg.CycleID, int64(arg.Seq), arg.Reason, toUnix(arg.CreatedOn), string(js))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getLatestSelection = `SELECT id, cycle_id, seq, reason, created_on, entities
FROM selections ORDER BY id DESC LIMIT 1`

func (q *Queries) GetLatestSelection(ctx context.Context) (Selection, error) {
	var i Selection
	var seq, createdOn int64
	var entities string

	err := q.db.QueryRowContext(ctx, getLatestSelection).Scan(
		&i.ID, &i.CycleID, &seq, &i.Reason, &createdOn, &entities,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return i, ErrNotFound
		}
		return i, err
	}

	i.Seq = uint64(seq)
	i.CreatedOn = fromUnix(createdOn)
	if err := json.Unmarshal([]byte(entities), &i.Entities); err != nil {
		return i, fmt.Errorf("decoding entities: %w", err)
	}
	return i, nil
}
