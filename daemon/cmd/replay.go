package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.ntppool.org/common/logger"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/feed"
	"go.ntppool.org/tablerank/selector"
)

type replayCmd struct {
	tuningFlags

	File   string `arg:"" optional:"" help:"CSV file with id,outcome[,timestamp] rows; - reads stdin" default:"-"`
	Cycles bool   `help:"Print every selection cycle as it is made"`
	Top    int    `default:"-1" help:"Number of tables to print (-1 for all eligible)"`
	JSON   bool   `name:"json" help:"Print JSON"`
}

func (cmd *replayCmd) Run(ctx context.Context) error {
	log := logger.Setup()
	ctx = logger.NewContext(ctx, log)

	cfg, err := cmd.load()
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if cmd.File != "-" {
		f, err := os.Open(cmd.File)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	obs, err := readObservations(in)
	if err != nil {
		return err
	}

	sel, table, err := replay(ctx, cfg, obs, func(c selector.SelectionCycle) {
		if cmd.Cycles {
			fmt.Printf("cycle %d (%s): %s\n", c.Seq, c.Reason, strings.Join(c.Entities, " "))
		}
	})
	if err != nil {
		return err
	}

	c := sel.Reselect(table.Snapshot(), cmd.Top)
	return printScores(os.Stdout, c.Scores, cmd.JSON)
}

// replay feeds obs through a fresh selector. The selector clock follows
// the observation timestamps.
func replay(ctx context.Context, cfg selector.Config, obs []feed.Observation, onCycle func(selector.SelectionCycle)) (*selector.Selector, *entity.Table, error) {
	log := logger.FromContext(ctx)

	now := time.Now()
	clock := func() time.Time { return now }

	table := entity.NewTable(0)
	sel, err := selector.New(cfg, table, log, nil, selector.WithClock(clock))
	if err != nil {
		return nil, nil, err
	}
	if onCycle != nil {
		sel.Listen(onCycle)
	}

	sink := feed.NewSink(log, sel, nil).WithSource("replay")

	for i, o := range obs {
		if o.Ts.IsZero() {
			o.Ts = now
		}
		now = o.Ts
		sel.Tick(now)
		if err := sink.Record(ctx, o); err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	return sel, table, nil
}

// readObservations parses id,outcome[,timestamp] rows. A first row
// starting with "id" is a header; lines starting with # are skipped.
func readObservations(r io.Reader) ([]feed.Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var obs []feed.Observation
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 1 && strings.EqualFold(rec[0], "id") {
			continue
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("record %d: expected id,outcome", n)
		}

		o := feed.Observation{
			EntityID: rec[0],
			Outcome:  entity.Outcome(rec[1]),
		}
		if len(rec) > 2 && rec[2] != "" {
			o.Ts, err = time.Parse(time.RFC3339Nano, rec[2])
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", n, err)
			}
		}
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		obs = append(obs, o)
	}

	return obs, nil
}
