package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"go.ntppool.org/common/logger"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/scorer/score"
	"go.ntppool.org/tablerank/selector"
	"go.ntppool.org/tablerank/tabledb"
)

type rankCmd struct {
	storeFlags
	tuningFlags
	restoreFlags

	Server string `help:"Ask a running server (its API URL) instead of reading the database"`
	Top    int    `default:"-1" help:"Number of tables to print (-1 for all eligible)"`
	JSON   bool   `name:"json" help:"Print JSON"`
}

func (cmd *rankCmd) Run(ctx context.Context) error {
	log := logger.Setup()
	ctx = logger.NewContext(ctx, log)

	var scores []score.Score
	var err error

	if cmd.Server != "" {
		scores, err = fetchSelection(ctx, cmd.Server)
	} else {
		scores, err = cmd.rankStore(ctx)
	}
	if err != nil {
		return err
	}

	if cmd.Top >= 0 && len(scores) > cmd.Top {
		scores = scores[:cmd.Top]
	}

	return printScores(os.Stdout, scores, cmd.JSON)
}

func (cmd *rankCmd) rankStore(ctx context.Context) ([]score.Score, error) {
	if cmd.DSN == "" {
		return nil, fmt.Errorf("--dsn or --server is required")
	}

	cfg, err := cmd.load()
	if err != nil {
		return nil, err
	}

	dbconn, err := tabledb.OpenDB(ctx, cmd.DBDriver, cmd.DSN)
	if err != nil {
		return nil, err
	}
	defer dbconn.Close()

	var since time.Time
	if cmd.RestoreWindow > 0 {
		since = time.Now().Add(-cmd.RestoreWindow)
	}
	entities, err := tabledb.New(dbconn).LoadEntities(ctx, since)
	if err != nil {
		return nil, err
	}

	table := entity.NewTable(cmd.HistoryLimit)
	table.Restore(entities)

	sel, err := selector.New(cfg, table, logger.FromContext(ctx), nil)
	if err != nil {
		return nil, err
	}
	return sel.Reselect(table.Snapshot(), cmd.Top).Scores, nil
}

// fetchSelection gets the current selection from a running server.
func fetchSelection(ctx context.Context, server string) ([]score.Score, error) {
	u, err := url.JoinPath(server, "selection")
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   10 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", u, resp.Status)
	}

	var c selector.SelectionCycle
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding selection: %w", err)
	}
	return c.Scores, nil
}
