// Package cmd has the tablerank command line interface.
package cmd

import (
	"errors"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/alecthomas/kong"

	"go.ntppool.org/common/config/depenv"

	"go.ntppool.org/tablerank/config"
	"go.ntppool.org/tablerank/selector"
)

// TablerankCmd is the root command.
type TablerankCmd struct {
	DeployEnv   string           `name:"deploy-env" env:"DEPLOYMENT_MODE" default:"devel" help:"Deployment environment (prod, test or devel)"`
	VersionFlag kong.VersionFlag `name:"version" help:"Print version and exit"`

	Server  serverCmd  `cmd:"" help:"Run the selection daemon"`
	Replay  replayCmd  `cmd:"" help:"Replay recorded outcomes and print the ranking"`
	Rank    rankCmd    `cmd:"" help:"Print the current ranking"`
	DB      dbCmd      `cmd:"" name:"db" help:"Database commands"`
	Tuning  tuningCmd  `cmd:"" help:"Tuning file commands"`
	Version versionCmd `cmd:"" help:"Show version"`
}

// Description is the long help text.
var Description = heredoc.Doc(`
	tablerank watches a feed of outcomes for many tables and keeps a small
	set of the tables whose outcomes alternate most evenly.

	Outcomes arrive over MQTT or the HTTP API. The current selection is
	available from the API and is published on MQTT when a broker is
	configured. The side to take for a selected table is a fair coin flip.
`)

func (cmd *TablerankCmd) deployEnv() (depenv.DeploymentEnvironment, error) {
	env := depenv.DeploymentEnvironmentFromString(cmd.DeployEnv)
	if env == depenv.DeployUndefined {
		return env, errors.New("unknown deployment environment " + cmd.DeployEnv)
	}
	return env, nil
}

type storeFlags struct {
	DBDriver string `name:"db-driver" env:"TABLERANK_DB_DRIVER" default:"sqlite" enum:"sqlite,mysql" help:"Database driver (${enum})"`
	DSN      string `name:"dsn" env:"TABLERANK_DSN" help:"Database DSN; no history is kept without one"`
}

type tuningFlags struct {
	TuningFile string `name:"tuning" env:"TABLERANK_TUNING" type:"path" help:"Selector tuning file (JSON)"`
}

// load returns the selector configuration; a missing file gives the
// defaults.
func (f tuningFlags) load() (selector.Config, error) {
	if f.TuningFile == "" {
		return selector.DefaultConfig(), nil
	}
	cfg, err := config.Load(f.TuningFile)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	return cfg, err
}

type restoreFlags struct {
	RestoreWindow time.Duration `name:"restore-window" env:"TABLERANK_RESTORE_WINDOW" default:"24h" help:"How much stored history to load at startup (0 loads everything)"`
	HistoryLimit  int           `name:"history-limit" env:"TABLERANK_HISTORY_LIMIT" default:"0" help:"Outcomes kept per table (0 keeps everything)"`
}
