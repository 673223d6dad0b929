package selector

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/scorer/composite"
	"go.ntppool.org/tablerank/scorer/score"
	"go.ntppool.org/tablerank/ulid"
)

// Selector owns the derived ranking state for an entity table. The table
// itself belongs to the caller.
type Selector struct {
	log     *slog.Logger
	metrics *Metrics
	table   *entity.Table
	tracer  trace.Tracer

	now  func() time.Time
	rand io.Reader

	mu        sync.Mutex
	cfg       Config
	scorer    *composite.Scorer
	cycle     SelectionCycle
	seq       uint64
	rounds    int
	acted     map[string]bool
	listeners []func(SelectionCycle)

	// notifyMu orders listener calls; delivered is the last Seq handed
	// to the listeners.
	notifyMu  sync.Mutex
	delivered uint64
}

type Option func(*Selector)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// WithRandom replaces crypto/rand as the source for Choose.
func WithRandom(r io.Reader) Option {
	return func(s *Selector) { s.rand = r }
}

// New creates a selector for table. The configuration is validated and
// an invalid one is returned as an error. metrics may be nil.
func New(cfg Config, table *entity.Table, log *slog.Logger, metrics *Metrics, opts ...Option) (*Selector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("%w: no entity table", ErrInvalidConfiguration)
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Selector{
		log:     log.WithGroup("selector"),
		metrics: metrics,
		table:   table,
		tracer:  otel.Tracer("tablerank/selector"),
		now:     time.Now,
		rand:    rand.Reader,
		cfg:     cfg,
		scorer:  cfg.scorer(),
		acted:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Config returns the active configuration.
func (s *Selector) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig validates and installs a new configuration and reselects
// with it. The old configuration stays in place on error.
func (s *Selector) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = cfg
	s.scorer = cfg.scorer()
	c, changed := s.refreshLocked(reasonConfig, s.now())
	s.mu.Unlock()

	s.log.Info("configuration updated",
		"minSamples", cfg.MinSamples,
		"maxSelected", cfg.MaxSelected,
		"alternationWeight", cfg.AlternationWeight,
		"balanceWeight", cfg.BalanceWeight,
		"staleness", cfg.StalenessWindow,
		"trigger", cfg.Trigger,
		"cycleRounds", cfg.CycleRounds,
	)

	if changed {
		s.notify(c)
	}
	return nil
}

// Listen registers fn to be called with new selection cycles in Seq
// order. A cycle that was already replaced by the time it would be
// delivered is skipped. fn is called without the selector state lock held
// but must not itself cause a reselection.
func (s *Selector) Listen(fn func(SelectionCycle)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Selector) notify(c SelectionCycle) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if c.Seq <= s.delivered {
		s.log.Debug("skipping superseded cycle", "seq", c.Seq, "delivered", s.delivered)
		return
	}
	s.delivered = c.Seq

	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(c.clone())
	}
}

// Observe records a new outcome for an entity and advances the trigger
// bookkeeping. Outcomes must be supplied in arrival order.
func (s *Selector) Observe(id string, outcome entity.Outcome) entity.Entity {
	return s.ObserveAt(id, outcome, s.now())
}

// ObserveAt is Observe with an explicit observation time.
func (s *Selector) ObserveAt(id string, outcome entity.Outcome, ts time.Time) entity.Entity {
	e := s.table.Update(id, outcome, ts)

	s.mu.Lock()
	s.metrics.observed(outcomeLabel(s.cfg.Alphabet, outcome))
	reason := ""
	if s.cfg.Trigger == TriggerFixedCycleCount && s.rounds > 0 {
		s.rounds--
		if s.rounds == 0 {
			reason = reasonRounds
		}
	}
	if reason == "" && s.cycle.Empty() && e.Count() >= s.cfg.MinSamples {
		reason = reasonEmpty
	}

	var c SelectionCycle
	var changed bool
	if reason != "" {
		c, changed = s.refreshLocked(reason, s.now())
	}
	s.mu.Unlock()

	if changed {
		s.notify(c)
	}
	return e
}

func outcomeLabel(a entity.Alphabet, o entity.Outcome) string {
	switch {
	case a.PrimaryIndex(o) >= 0:
		return string(o)
	case a.IsTie(o):
		return "tie"
	}
	return "other"
}

// Score computes the score of e with the active configuration.
func (s *Selector) Score(e entity.Entity) score.Score {
	s.mu.Lock()
	sc := s.scorer
	s.mu.Unlock()
	return sc.Score(e)
}

// Scores returns the scores of all known entities in ID order.
func (s *Selector) Scores() []score.Score {
	s.mu.Lock()
	sc := s.scorer
	s.mu.Unlock()

	entities := s.table.Snapshot()
	r := make([]score.Score, 0, len(entities))
	for _, e := range entities {
		r = append(r, sc.Score(e))
	}
	return r
}

// Reselect ranks entities and returns the cycle that would replace the
// current one without installing it.
func (s *Selector) Reselect(entities []entity.Entity, k int) SelectionCycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reselectLocked(entities, k, reasonManual, s.now())
}

func (s *Selector) reselectLocked(entities []entity.Entity, k int, reason string, now time.Time) SelectionCycle {
	start := time.Now()

	ranked := Rank(entities, s.scorer, now, s.cfg.StalenessWindow, k)

	c := SelectionCycle{
		Seq:       s.seq + 1,
		Entities:  make([]string, 0, len(ranked)),
		Scores:    ranked,
		Trigger:   s.cfg.Trigger,
		Reason:    reason,
		CreatedAt: now,
	}
	if s.cfg.Trigger == TriggerFixedCycleCount {
		c.Rounds = s.cfg.CycleRounds
	}
	for _, sc := range ranked {
		c.Entities = append(c.Entities, sc.EntityID)
	}

	if id, err := ulid.MakeULID(now); err == nil {
		c.ID = id.String()
	} else {
		s.log.Warn("could not make cycle id", "err", err)
	}

	eligible := 0
	for _, e := range entities {
		if e.Active && e.Count() >= s.cfg.MinSamples && !e.IsStale(now, s.cfg.StalenessWindow) {
			eligible++
		}
	}
	s.metrics.reselected(reason, time.Since(start), eligible, ranked)

	return c
}

// Refresh recomputes the selection from the current table and installs it.
func (s *Selector) Refresh(ctx context.Context, reason string) SelectionCycle {
	_, span := s.tracer.Start(ctx, "selector.Refresh")
	defer span.End()

	s.mu.Lock()
	c, changed := s.refreshLocked(reason, s.now())
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("reason", reason),
		attribute.Int("selected", len(c.Entities)),
		attribute.Bool("changed", changed),
	)

	if changed {
		s.notify(c)
	}
	return c.clone()
}

// refreshLocked replaces the current cycle, judging staleness as of now.
// An empty cycle isn't replaced by another empty one; changed is false
// then.
func (s *Selector) refreshLocked(reason string, now time.Time) (SelectionCycle, bool) {
	c := s.reselectLocked(s.table.Snapshot(), s.cfg.MaxSelected, reason, now)

	if c.Empty() && s.cycle.Empty() && s.seq > 0 {
		s.rounds = c.Rounds
		return s.cycle, false
	}

	s.seq = c.Seq
	s.cycle = c
	s.rounds = c.Rounds
	clear(s.acted)

	s.log.Info("new selection",
		"seq", c.Seq,
		"id", c.ID,
		"reason", reason,
		"entities", c.Entities,
	)

	return c, true
}

// Current returns the installed selection cycle.
func (s *Selector) Current() SelectionCycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle.clone()
}

// RoundsRemaining is the countdown to the next reselection with the
// fixed-cycle-count trigger.
func (s *Selector) RoundsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rounds
}

// MarkActed records that the consumer acted on id. It returns false if id
// is not part of the current selection.
func (s *Selector) MarkActed(id string) bool {
	s.mu.Lock()
	if !s.cycle.Contains(id) {
		s.mu.Unlock()
		return false
	}
	s.acted[id] = true

	var c SelectionCycle
	var changed bool
	if s.cfg.Trigger == TriggerSelectionExhausted && len(s.acted) >= len(s.cycle.Entities) {
		c, changed = s.refreshLocked(reasonExhausted, s.now())
	}
	s.mu.Unlock()

	if changed {
		s.notify(c)
	}
	return true
}

// Tick does the periodic maintenance: entities past the staleness window
// are marked inactive and the selection is replaced if it holds one of
// them, or retried while it is empty.
func (s *Selector) Tick(now time.Time) {
	s.mu.Lock()
	window := s.cfg.StalenessWindow
	s.mu.Unlock()

	expired := s.table.Expire(now, window)
	if len(expired) > 0 {
		s.log.Debug("entities went stale", "ids", expired)
		s.metrics.expired(len(expired))
	}
	s.metrics.tableSize(s.table.ActiveCount())

	s.mu.Lock()
	reason := ""
	switch {
	case s.cycle.Empty():
		reason = reasonEmpty
	case s.holdsStaleLocked(now, window):
		reason = reasonStale
	}

	var c SelectionCycle
	var changed bool
	if reason != "" {
		c, changed = s.refreshLocked(reason, now)
	}
	s.mu.Unlock()

	if changed {
		s.notify(c)
	}
}

func (s *Selector) holdsStaleLocked(now time.Time, window time.Duration) bool {
	for _, id := range s.cycle.Entities {
		e, ok := s.table.Get(id)
		if !ok || !e.Active || e.IsStale(now, window) {
			return true
		}
	}
	return false
}

// Run calls Tick every interval until ctx is cancelled.
func (s *Selector) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.DebugContext(ctx, "selector ticker started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			s.log.DebugContext(ctx, "selector ticker stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}
