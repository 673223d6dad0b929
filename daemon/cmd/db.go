package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.ntppool.org/common/logger"

	"go.ntppool.org/tablerank/tabledb"
)

type dbCmd struct {
	Setup  dbSetupCmd  `cmd:"" help:"Create the database tables"`
	Status dbStatusCmd `cmd:"" help:"Show the latest stored selection"`
}

type dbSetupCmd struct {
	storeFlags
}

func (cmd *dbSetupCmd) Run(ctx context.Context) error {
	log := logger.Setup()
	ctx = logger.NewContext(ctx, log)

	if cmd.DSN == "" {
		return errors.New("--dsn is required")
	}

	dbconn, err := tabledb.OpenDB(ctx, cmd.DBDriver, cmd.DSN)
	if err != nil {
		return err
	}
	defer dbconn.Close()

	if err := tabledb.New(dbconn).CreateSchema(ctx, cmd.DBDriver); err != nil {
		return err
	}
	log.Info("database schema ready", "driver", cmd.DBDriver)
	return nil
}

type dbStatusCmd struct {
	storeFlags
}

func (cmd *dbStatusCmd) Run(ctx context.Context) error {
	log := logger.Setup()
	ctx = logger.NewContext(ctx, log)

	if cmd.DSN == "" {
		return errors.New("--dsn is required")
	}

	dbconn, err := tabledb.OpenDB(ctx, cmd.DBDriver, cmd.DSN)
	if err != nil {
		return err
	}
	defer dbconn.Close()

	sel, err := tabledb.New(dbconn).GetLatestSelection(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, tabledb.ErrNotFound) {
			fmt.Println("No selection stored")
			return nil
		}
		return err
	}

	fmt.Printf("%-5d %-26s %-10s %s  %s\n",
		sel.Seq, sel.CycleID, sel.Reason, sel.CreatedOn.Format("2006-01-02 15:04:05"),
		strings.Join(sel.Entities, " "),
	)
	return nil
}
