package tabledb

import (
	"context"
	"time"

	"go.ntppool.org/tablerank/entity"
)

// LoadEntities rebuilds entity histories from the outcomes recorded since
// the given time.
func (q *Queries) LoadEntities(ctx context.Context, since time.Time) ([]entity.Entity, error) {
	rows, err := q.GetOutcomes(ctx, since)
	if err != nil {
		return nil, err
	}

	var r []entity.Entity
	for _, row := range rows {
		if len(r) == 0 || r[len(r)-1].ID != row.EntityID {
			r = append(r, entity.Entity{
				ID:        row.EntityID,
				FirstSeen: row.Ts,
			})
		}
		e := &r[len(r)-1]
		e.Outcomes = append(e.Outcomes, entity.Outcome(row.Outcome))
		if row.Ts.After(e.LastSeen) {
			e.LastSeen = row.Ts
		}
	}

	return r, nil
}
