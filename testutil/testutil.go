package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/tabledb"
)

var dbCounter atomic.Int64

// TestDB is an isolated in-memory database with the schema applied
type TestDB struct {
	*sql.DB
	Queries *tabledb.Queries
}

// NewTestDB opens a fresh in-memory SQLite database. It is closed when
// the test finishes.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// named shared-cache databases keep parallel tests apart
	dsn := fmt.Sprintf("file:tablerank-test-%d?mode=memory&cache=shared", dbCounter.Add(1))

	dbconn, err := tabledb.OpenDB(ctx, tabledb.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { dbconn.Close() })

	q := tabledb.New(dbconn)
	if err := q.CreateSchema(ctx, tabledb.DriverSQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return &TestDB{DB: dbconn, Queries: q}
}

// NewTestLogger returns a debug level text logger
func NewTestLogger(t *testing.T) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return slog.New(handler).With("test", t.Name())
}

// Outcomes turns "ABTA" into a slice of single letter outcomes
func Outcomes(s string) []entity.Outcome {
	r := make([]entity.Outcome, 0, len(s))
	for _, c := range strings.Split(s, "") {
		if c == "" {
			continue
		}
		r = append(r, entity.Outcome(c))
	}
	return r
}

// Entity builds an active entity last seen at ts
func Entity(id, outcomes string, ts time.Time) entity.Entity {
	return entity.Entity{
		ID:        id,
		Outcomes:  Outcomes(outcomes),
		FirstSeen: ts,
		LastSeen:  ts,
		Active:    true,
	}
}

// FillTable records each outcome string for its entity ID at ts
func FillTable(tbl *entity.Table, ts time.Time, histories map[string]string) {
	for id, s := range histories {
		for _, o := range Outcomes(s) {
			tbl.Update(id, o, ts)
		}
	}
}
