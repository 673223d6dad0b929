package cmd

import (
	"context"
	"fmt"
	"os"

	"go.ntppool.org/tablerank/config"
	"go.ntppool.org/tablerank/selector"
)

type tuningCmd struct {
	Init  tuningInitCmd  `cmd:"" help:"Write a tuning file with the default settings"`
	Check tuningCheckCmd `cmd:"" help:"Validate a tuning file"`
}

type tuningInitCmd struct {
	File  string `arg:"" help:"Tuning file to write"`
	Force bool   `help:"Overwrite an existing file"`
}

func (cmd *tuningInitCmd) Run(ctx context.Context) error {
	if !cmd.Force {
		if _, err := os.Stat(cmd.File); err == nil {
			return fmt.Errorf("%s exists, use --force to overwrite", cmd.File)
		}
	}
	return config.Save(cmd.File, selector.DefaultConfig())
}

type tuningCheckCmd struct {
	File string `arg:"" type:"existingfile" help:"Tuning file to check"`
}

func (cmd *tuningCheckCmd) Run(ctx context.Context) error {
	cfg, err := config.Load(cmd.File)
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok (min samples %d, max selected %d, trigger %s)\n",
		cmd.File, cfg.MinSamples, cfg.MaxSelected, cfg.Trigger)
	return nil
}
