package tabledb

//go:generate go tool github.com/hexdigest/gowrap/cmd/gowrap gen -t ./opentelemetry.gowrap -g -i Querier -p . -o otel.go

import (
	"context"
	"time"

	"go.ntppool.org/tablerank/entity"
)

// Querier is the store used outside of transactions. The daemon wraps it
// with tracing (NewQuerierWithTracing).
type Querier interface {
	CreateSchema(ctx context.Context, driver string) error
	DeleteEntity(ctx context.Context, entityID string) error
	GetLatestScores(ctx context.Context, scorer string) ([]ScoreLog, error)
	GetLatestSelection(ctx context.Context) (Selection, error)
	GetOutcomes(ctx context.Context, since time.Time) ([]Outcome, error)
	InsertOutcome(ctx context.Context, arg InsertOutcomeParams) (int64, error)
	InsertScoreLog(ctx context.Context, arg InsertScoreLogParams) (int64, error)
	InsertSelection(ctx context.Context, arg InsertSelectionParams) (int64, error)
	LoadEntities(ctx context.Context, since time.Time) ([]entity.Entity, error)
}

var _ Querier = (*Queries)(nil)
