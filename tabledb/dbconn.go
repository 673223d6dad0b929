package tabledb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/go-sql-driver/mysql"
	"go.ntppool.org/common/logger"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// OpenDB opens the database and waits (with exponential backoff) for it
// to answer a ping. The schema is not created; see CreateSchema.
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	log := logger.FromContext(ctx)

	switch driver {
	case DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	dbconn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// one writer; an in-memory database also lives per connection
		dbconn.SetMaxOpenConns(1)
	} else {
		dbconn.SetConnMaxLifetime(3 * time.Minute)
		dbconn.SetMaxOpenConns(10)
		dbconn.SetMaxIdleConns(5)
	}

	expback := backoff.NewExponentialBackOff()
	expback.InitialInterval = time.Second
	expback.MaxInterval = 15 * time.Second

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := dbconn.PingContext(ctx)
		if err != nil {
			log.WarnContext(ctx, "database not ready", "driver", driver, "err", err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(expback),
		backoff.WithMaxElapsedTime(2*time.Minute),
	)
	if err != nil {
		dbconn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return dbconn, nil
}

// WithTransaction runs fn in a transaction, committing if fn returns nil.
func WithTransaction(ctx context.Context, dbconn *sql.DB, fn func(ctx context.Context, q *Queries) error) error {
	tx, err := dbconn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, New(dbconn).WithTx(tx)); err != nil {
		return err
	}

	return tx.Commit()
}
