package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/tabledb"
)

// Observer is the part of the selector a Sink feeds.
type Observer interface {
	ObserveAt(id string, outcome entity.Outcome, ts time.Time) entity.Entity
}

// Sink applies observations to the selector and, if a store is
// configured, records them for restoring the table after a restart.
type Sink struct {
	log    *slog.Logger
	obs    Observer
	db     tabledb.Querier
	source string
	now    func() time.Time
}

// NewSink returns a sink for obs. db may be nil.
func NewSink(log *slog.Logger, obs Observer, db tabledb.Querier) *Sink {
	if err := InitInstruments(); err != nil {
		log.Warn("feed metrics unavailable", "err", err)
	}
	return &Sink{
		log:    log.WithGroup("feed"),
		obs:    obs,
		db:     db,
		source: "default",
		now:    time.Now,
	}
}

// WithSource returns a copy of the sink that labels its metrics with
// name.
func (s *Sink) WithSource(name string) *Sink {
	n := *s
	n.source = name
	return &n
}

// Record validates and applies o. An observation without a timestamp is
// stamped with the current time. The observation is applied even if it
// can't be stored; the store error is returned.
func (s *Sink) Record(ctx context.Context, o Observation) error {
	if err := o.Validate(); err != nil {
		countObservation(ctx, s.source, "invalid")
		return err
	}
	if o.Ts.IsZero() {
		o.Ts = s.now()
	}

	e := s.obs.ObserveAt(o.EntityID, o.Outcome, o.Ts)
	countObservation(ctx, s.source, "ok")

	s.log.DebugContext(ctx, "observation",
		"id", o.EntityID,
		"outcome", o.Outcome,
		"count", e.Count(),
	)

	if s.db == nil {
		return nil
	}

	_, err := s.db.InsertOutcome(ctx, tabledb.InsertOutcomeParams{
		EntityID: o.EntityID,
		Outcome:  string(o.Outcome),
		Ts:       o.Ts,
	})
	if err != nil {
		countStoreError(ctx)
		return fmt.Errorf("storing outcome: %w", err)
	}
	return nil
}
