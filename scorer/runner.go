// Package scorer keeps a log of entity scores over time. The ranking
// itself never reads the log; it's for status pages and offline analysis.
package scorer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/scorer/types"
	"go.ntppool.org/tablerank/tabledb"
)

// MainScorer is the scorer whose values are reported as the entity score.
const MainScorer = "composite"

type metrics struct {
	processed *prometheus.CounterVec
	logged    *prometheus.CounterVec
	errcount  prometheus.Counter
	runs      prometheus.Counter
}

type Runner struct {
	dbconn *sql.DB
	table  *entity.Table
	log    *slog.Logger
	m      *metrics

	mu       sync.Mutex
	registry map[string]*ScorerMap
}

type lastUpdate struct {
	ts    time.Time
	score float64
	count int
}

// New creates a runner logging the given scorers for the entities in
// table.
func New(log *slog.Logger, dbconn *sql.DB, table *entity.Table, scorers map[string]types.Scorer, prom prometheus.Registerer) (*Runner, error) {
	if _, ok := scorers[MainScorer]; !ok {
		return nil, fmt.Errorf("main scorer %q not configured", MainScorer)
	}

	reg := map[string]*ScorerMap{}
	for name, sc := range scorers {
		reg[name] = newScorerMap(sc)
	}

	met := &metrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scorer_processed_count",
			Help: "entities scored",
		}, []string{"scorer"}),
		logged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scorer_logged_count",
			Help: "scores written to the score log",
		}, []string{"scorer"}),
		errcount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scorer_errors",
			Help: "scorer errors",
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scorer_runs",
			Help: "scorer batches executed",
		}),
	}

	prom.MustRegister(met.processed)
	prom.MustRegister(met.logged)
	prom.MustRegister(met.errcount)
	prom.MustRegister(met.runs)

	return &Runner{
		dbconn:   dbconn,
		table:    table,
		registry: reg,
		log:      log.WithGroup("scorer"),
		m:        met,
	}, nil
}

// SetScorers swaps the scoring functions, for example after the selector
// configuration changed. The logging history of known names is kept.
func (r *Runner) SetScorers(scorers map[string]types.Scorer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, sc := range scorers {
		if sm, ok := r.registry[name]; ok {
			sm.Scorer = sc
			continue
		}
		r.registry[name] = newScorerMap(sc)
	}
}

// Names returns the registered scorer names, sorted.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Forget drops the change tracking for pruned entities.
func (r *Runner) Forget(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sm := range r.registry {
		for _, id := range ids {
			sm.Forget(id)
		}
	}
}

// Run scores every active entity with every scorer and writes the scores
// that changed to the log. It returns the number of rows written.
func (r *Runner) Run(ctx context.Context) (int, error) {
	r.m.runs.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	entities := r.table.Snapshot()

	count := 0
	err := tabledb.WithTransaction(ctx, r.dbconn, func(ctx context.Context, db *tabledb.Queries) error {
		for _, name := range sortedKeys(r.registry) {
			n, err := r.process(ctx, db, name, r.registry[name], entities)
			count += n
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.ErrorContext(ctx, "process error", "err", err)
		r.m.errcount.Add(1)

		// the transaction was rolled back, log everything again next time
		for _, sm := range r.registry {
			clear(sm.lastScore)
		}
		return 0, err
	}

	return count, nil
}

func (r *Runner) process(ctx context.Context, db *tabledb.Queries, name string, sm *ScorerMap, entities []entity.Entity) (int, error) {
	log := r.log.With("name", name)

	processed, count := 0, 0
	for _, e := range entities {
		if !e.Active || e.Count() == 0 {
			continue
		}
		processed++

		sc := sm.Scorer.Score(e)
		if !sm.IsNew(sc) {
			continue
		}

		attributes, err := json.Marshal(sc)
		if err != nil {
			return count, fmt.Errorf("scorer %q: %w", name, err)
		}

		_, err = db.InsertScoreLog(ctx, tabledb.InsertScoreLogParams{
			Scorer:      name,
			EntityID:    sc.EntityID,
			Ts:          sc.Ts,
			Value:       sc.Value,
			Composite:   sc.Composite,
			SampleCount: sc.Count,
			Attributes:  attributes,
		})
		if err != nil {
			return count, fmt.Errorf("scorer %q: %w", name, err)
		}
		count++
	}

	r.m.processed.WithLabelValues(name).Add(float64(processed))
	r.m.logged.WithLabelValues(name).Add(float64(count))

	if count > 0 {
		log.DebugContext(ctx, "logged scores", "count", count, "processed", processed)
	}

	return count, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
