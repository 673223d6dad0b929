// Package feed delivers outcome observations to the selector. A Source
// produces observations and hands them to a Recorder, normally a Sink.
package feed

import (
	"context"
	"errors"
	"time"

	"go.ntppool.org/tablerank/entity"
)

var ErrInvalidObservation = errors.New("invalid observation")

// Observation is one new outcome for a table, in arrival order.
type Observation struct {
	EntityID string         `json:"entity_id"`
	Outcome  entity.Outcome `json:"outcome"`
	Ts       time.Time      `json:"ts,omitzero"`
}

func (o Observation) Validate() error {
	if o.EntityID == "" {
		return errors.Join(ErrInvalidObservation, errors.New("missing entity id"))
	}
	if o.Outcome == "" {
		return errors.Join(ErrInvalidObservation, errors.New("missing outcome"))
	}
	return nil
}

type Recorder interface {
	Record(ctx context.Context, o Observation) error
}

// Source runs until ctx is done or the source is exhausted.
type Source interface {
	Run(ctx context.Context, r Recorder) error
}
