package feed

import (
	"context"
	"log/slog"
)

// Chan is an in-process source reading from a channel.
type Chan struct {
	ch  <-chan Observation
	log *slog.Logger
}

func NewChan(log *slog.Logger, ch <-chan Observation) *Chan {
	return &Chan{ch: ch, log: log}
}

// Run records observations until the channel is closed (returning nil)
// or ctx is done. Invalid observations are logged and skipped.
func (c *Chan) Run(ctx context.Context, r Recorder) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case o, ok := <-c.ch:
			if !ok {
				return nil
			}
			if err := r.Record(ctx, o); err != nil {
				c.log.WarnContext(ctx, "could not record observation", "id", o.EntityID, "err", err)
			}
		}
	}
}
