package feed

import (
	"context"
	"log/slog"
	"sync"

	"go.ntppool.org/common/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	Observations metric.Int64Counter
	StoreErrors  metric.Int64Counter

	setupOnce sync.Once
	setupErr  error
)

// InitInstruments sets up the feed metric instruments. It's safe to call
// more than once.
func InitInstruments() error {
	setupOnce.Do(func() {
		setupErr = initializeInstruments()
	})
	return setupErr
}

func initializeInstruments() error {
	log := slog.Default()
	meter := metrics.GetMeter("tablerank.feed")

	var err error

	Observations, err = meter.Int64Counter("tablerank.feed.observations_total",
		metric.WithDescription("Observations received, by source and result"))
	if err != nil {
		log.ErrorContext(context.Background(), "failed to create Observations counter", "err", err)
		return err
	}

	StoreErrors, err = meter.Int64Counter("tablerank.feed.store_errors_total",
		metric.WithDescription("Observations that could not be written to the store"))
	if err != nil {
		log.ErrorContext(context.Background(), "failed to create StoreErrors counter", "err", err)
		return err
	}

	return nil
}

func countObservation(ctx context.Context, source, result string) {
	if Observations == nil {
		return
	}
	Observations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("result", result),
	))
}

func countStoreError(ctx context.Context) {
	if StoreErrors == nil {
		return
	}
	StoreErrors.Add(ctx, 1)
}
