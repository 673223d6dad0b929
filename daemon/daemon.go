// Package daemon wires the table, selector, store, feeds and API into one
// long running process.
package daemon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"go.ntppool.org/common/config/depenv"
	"go.ntppool.org/common/version"

	"go.ntppool.org/tablerank/config"
	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/feed"
	"go.ntppool.org/tablerank/mqttcm"
	"go.ntppool.org/tablerank/scorer"
	"go.ntppool.org/tablerank/selector"
	"go.ntppool.org/tablerank/server"
	"go.ntppool.org/tablerank/tabledb"
)

type Config struct {
	Name      string
	DeployEnv depenv.DeploymentEnvironment

	// DBDriver and DSN select the history store. Without a DSN nothing
	// is stored and the table starts empty.
	DBDriver string
	DSN      string

	// TuningFile holds the selector configuration; empty uses the
	// defaults.
	TuningFile string

	HistoryLimit int

	// RestoreWindow is how far back outcomes are reloaded at startup.
	RestoreWindow time.Duration

	// Retain is how long inactive tables are kept before they are
	// forgotten, including their stored history.
	Retain time.Duration

	TickInterval time.Duration

	// Listen is the API address; empty disables the API.
	Listen string

	// MQTT is used for observations and to publish the selection when
	// a broker is configured.
	MQTT mqttcm.Config
}

type Daemon struct {
	cfg Config
	log *slog.Logger

	table  *entity.Table
	sel    *selector.Selector
	sink   *feed.Sink
	dbconn *sql.DB
	db     tabledb.Querier
	runner *scorer.Runner
	tuning *config.Manager
	api    *server.Server
	mqtt   *feed.MQTT
	topics *mqttcm.MQTTTopics
	cycles chan selector.SelectionCycle

	// published is the last Seq stored and published; only the cycle
	// consumer touches it.
	published uint64
	sources   []feed.Source
	now       func() time.Time
}

// New sets up all components. Nothing runs until Run is called.
func New(ctx context.Context, log *slog.Logger, cfg Config, reg prometheus.Registerer, sources ...feed.Source) (*Daemon, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 10 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "tablerank"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	d := &Daemon{
		cfg:     cfg,
		log:     log,
		topics:  mqttcm.NewTopics(cfg.DeployEnv),
		cycles:  make(chan selector.SelectionCycle, 16),
		sources: sources,
		now:     time.Now,
	}

	version.RegisterMetric("tablerank", reg)

	var selCfg selector.Config
	if cfg.TuningFile != "" {
		d.tuning = config.NewManager(log, cfg.TuningFile, func(c selector.Config) error {
			return d.sel.SetConfig(c)
		})
		var err error
		selCfg, err = d.tuning.Load()
		if err != nil {
			return nil, fmt.Errorf("tuning file: %w", err)
		}
	} else {
		selCfg = selector.DefaultConfig()
	}

	d.table = entity.NewTable(cfg.HistoryLimit)

	if cfg.DSN != "" {
		if err := d.openStore(ctx); err != nil {
			return nil, err
		}
	}

	sel, err := selector.New(selCfg, d.table, log, selector.NewMetrics(reg))
	if err != nil {
		d.Close()
		return nil, err
	}
	d.sel = sel
	d.sel.Listen(d.queueCycle)

	d.sink = feed.NewSink(log, sel, d.db)

	if d.dbconn != nil {
		d.runner, err = scorer.New(log, d.dbconn, d.table, selCfg.Scorers(), reg)
		if err != nil {
			d.Close()
			return nil, err
		}
	}

	if cfg.MQTT.Broker != "" {
		d.mqtt = feed.NewMQTT(log, cfg.MQTT, d.topics, cfg.Name)
	}

	if cfg.Listen != "" {
		d.api = server.New(log, sel, d.table, d.sink.WithSource("api"), reg)
	}

	return d, nil
}

func (d *Daemon) openStore(ctx context.Context) error {
	dbconn, err := tabledb.OpenDB(ctx, d.cfg.DBDriver, d.cfg.DSN)
	if err != nil {
		return err
	}
	d.dbconn = dbconn
	d.db = tabledb.NewQuerierWithTracing(tabledb.New(dbconn), "tablerank/tabledb")

	if err := d.db.CreateSchema(ctx, d.cfg.DBDriver); err != nil {
		d.Close()
		return fmt.Errorf("schema: %w", err)
	}

	var since time.Time
	if d.cfg.RestoreWindow > 0 {
		since = time.Now().Add(-d.cfg.RestoreWindow)
	}
	entities, err := d.db.LoadEntities(ctx, since)
	if err != nil {
		d.Close()
		return fmt.Errorf("restoring tables: %w", err)
	}
	d.table.Restore(entities)
	d.log.InfoContext(ctx, "restored tables", "count", len(entities), "since", since)

	return nil
}

// Selector returns the selector, for commands that drive it directly.
func (d *Daemon) Selector() *selector.Selector {
	return d.sel
}

func (d *Daemon) Close() {
	if d.dbconn != nil {
		d.dbconn.Close()
	}
}

// queueCycle is the selector listener; it must not block.
func (d *Daemon) queueCycle(c selector.SelectionCycle) {
	select {
	case d.cycles <- c:
	default:
		d.log.Warn("selection queue full, dropping cycle", "seq", c.Seq)
	}
}

func (d *Daemon) handleCycle(ctx context.Context, c selector.SelectionCycle) {
	if c.Seq <= d.published {
		d.log.DebugContext(ctx, "skipping old selection", "seq", c.Seq, "published", d.published)
		return
	}
	d.published = c.Seq

	if d.db != nil {
		_, err := d.db.InsertSelection(ctx, tabledb.InsertSelectionParams{
			CycleID:   c.ID,
			Seq:       c.Seq,
			Reason:    c.Reason,
			CreatedOn: c.CreatedAt,
			Entities:  c.Entities,
		})
		if err != nil {
			d.log.ErrorContext(ctx, "could not store selection", "seq", c.Seq, "err", err)
		}
	}

	if d.mqtt != nil {
		err := d.mqtt.PublishJSON(ctx, d.topics.Selection(), c, true)
		if err != nil {
			d.log.WarnContext(ctx, "could not publish selection", "seq", c.Seq, "err", err)
		}
	}
}

// Run starts everything and blocks until ctx is done or a component
// fails. The store is closed on return.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.Close()

	log := d.log
	log.InfoContext(ctx, "tablerank starting", "version", version.Version(), "env", d.cfg.DeployEnv.String())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case c := <-d.cycles:
				d.handleCycle(ctx, c)
			}
		}
	})

	d.sel.Refresh(ctx, "startup")

	if d.tuning != nil {
		g.Go(func() error {
			return d.tuning.Run(ctx)
		})
	}

	g.Go(func() error {
		return ignoreCanceled(d.sel.Run(ctx, d.cfg.TickInterval))
	})

	if d.cfg.Retain > 0 {
		g.Go(func() error {
			return d.pruneLoop(ctx)
		})
	}

	if d.runner != nil {
		g.Go(func() error {
			return d.scoreLoop(ctx)
		})
	}

	if d.mqtt != nil {
		g.Go(func() error {
			return ignoreCanceled(d.mqtt.Run(ctx, d.sink.WithSource("mqtt")))
		})
	}

	for _, src := range d.sources {
		g.Go(func() error {
			return ignoreCanceled(src.Run(ctx, d.sink))
		})
	}

	if d.api != nil {
		g.Go(func() error {
			return d.api.Run(ctx, d.cfg.Listen)
		})
	}

	err := g.Wait()
	log.InfoContext(ctx, "tablerank stopped", "err", err)
	return err
}

// scoreLoop writes the score log, backing off while nothing changes.
func (d *Daemon) scoreLoop(ctx context.Context) error {
	expback := backoff.NewExponentialBackOff()
	expback.InitialInterval = time.Second * 3
	expback.MaxInterval = time.Second * 60

	lastCfg := d.sel.Config()

	for {
		if cfg := d.sel.Config(); cfg != lastCfg {
			d.runner.SetScorers(cfg.Scorers())
			lastCfg = cfg
		}

		count, err := d.runner.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.log.ErrorContext(ctx, "score log error", "err", err)
		}
		if count > 0 {
			d.log.DebugContext(ctx, "logged scores", "count", count)
		}

		var sl time.Duration
		if count == 0 {
			sl = expback.NextBackOff()
		} else {
			expback.Reset()
			sl = expback.InitialInterval
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sl):
		}
	}
}

func (d *Daemon) pruneLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.prune(ctx, d.now())
		}
	}
}

func (d *Daemon) prune(ctx context.Context, now time.Time) []string {
	removed := d.table.Prune(now, d.cfg.Retain)
	if len(removed) == 0 {
		return nil
	}
	d.log.InfoContext(ctx, "forgetting inactive tables", "ids", removed)

	if d.runner != nil {
		d.runner.Forget(removed...)
	}
	if d.db != nil {
		for _, id := range removed {
			if err := d.db.DeleteEntity(ctx, id); err != nil {
				d.log.ErrorContext(ctx, "could not delete table history", "id", id, "err", err)
			}
		}
	}
	return removed
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
