// Package config loads the selector tuning file and reloads it when it
// changes.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/selector"
)

// Duration is a time.Duration written as "5m" in JSON. Plain numbers are
// read as seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var secs float64
		if err := json.Unmarshal(b, &secs); err != nil {
			return fmt.Errorf("duration must be a string or seconds: %s", b)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(n * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Tuning is the on-disk form of selector.Config. Keys missing from the
// file keep their default.
type Tuning struct {
	MinSamples         int              `json:"min_samples"`
	MaxSelected        int              `json:"max_selected"`
	AlternationWeight  float64          `json:"alternation_weight"`
	BalanceWeight      float64          `json:"balance_weight"`
	StalenessWindow    Duration         `json:"staleness_window"`
	Trigger            selector.Trigger `json:"trigger"`
	CycleRounds        int              `json:"cycle_rounds"`
	ReliabilityHorizon float64          `json:"reliability_horizon"`
	Alphabet           entity.Alphabet  `json:"alphabet"`
}

func FromConfig(c selector.Config) Tuning {
	return Tuning{
		MinSamples:         c.MinSamples,
		MaxSelected:        c.MaxSelected,
		AlternationWeight:  c.AlternationWeight,
		BalanceWeight:      c.BalanceWeight,
		StalenessWindow:    Duration(c.StalenessWindow),
		Trigger:            c.Trigger,
		CycleRounds:        c.CycleRounds,
		ReliabilityHorizon: c.ReliabilityHorizon,
		Alphabet:           c.Alphabet,
	}
}

func (t Tuning) Config() selector.Config {
	return selector.Config{
		MinSamples:         t.MinSamples,
		MaxSelected:        t.MaxSelected,
		AlternationWeight:  t.AlternationWeight,
		BalanceWeight:      t.BalanceWeight,
		StalenessWindow:    time.Duration(t.StalenessWindow),
		Trigger:            t.Trigger,
		CycleRounds:        t.CycleRounds,
		ReliabilityHorizon: t.ReliabilityHorizon,
		Alphabet:           t.Alphabet,
	}
}

// Parse reads a tuning file on top of the defaults and validates the
// result.
func Parse(b []byte) (selector.Config, error) {
	t := FromConfig(selector.DefaultConfig())
	if err := json.Unmarshal(b, &t); err != nil {
		return selector.Config{}, fmt.Errorf("%w: %w", selector.ErrInvalidConfiguration, err)
	}
	cfg := t.Config()
	if err := cfg.Validate(); err != nil {
		return selector.Config{}, err
	}
	return cfg, nil
}

// Load reads the tuning file at path. A missing file gives the defaults
// and an error matching os.ErrNotExist.
func Load(path string) (selector.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return selector.DefaultConfig(), err
	}
	return Parse(b)
}

// Save writes cfg to path, replacing the file atomically.
func Save(path string, cfg selector.Config) error {
	b, err := json.MarshalIndent(FromConfig(cfg), "", "  ")
	if err != nil {
		return err
	}
	return replaceFile(path, append(b, '\n'))
}

func replaceFile(path string, b []byte) error {
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	n, err := f.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	if err1 := f.Close(); err == nil {
		err = err1
	}
	if err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
