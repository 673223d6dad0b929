package selector

import (
	"errors"
	"fmt"
	"time"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/scorer/alternation"
	"go.ntppool.org/tablerank/scorer/balance"
	"go.ntppool.org/tablerank/scorer/composite"
	"go.ntppool.org/tablerank/scorer/types"
)

// ErrInvalidConfiguration is wrapped by every configuration error.
var ErrInvalidConfiguration = errors.New("invalid configuration")

type Config struct {
	MinSamples  int
	MaxSelected int

	// The weights are not required to add up to 1.
	AlternationWeight float64
	BalanceWeight     float64

	// StalenessWindow is how long an entity may go without an update
	// before it can't be selected. Zero disables staleness.
	StalenessWindow time.Duration

	Trigger Trigger

	// CycleRounds is the number of observations (across all entities)
	// a cycle lasts with the fixed-cycle-count trigger.
	CycleRounds int

	// ReliabilityHorizon is the sample count at which alternation is
	// fully trusted.
	ReliabilityHorizon float64

	Alphabet entity.Alphabet
}

func DefaultConfig() Config {
	return Config{
		MinSamples:         6,
		MaxSelected:        3,
		AlternationWeight:  composite.DefaultAlternationWeight,
		BalanceWeight:      composite.DefaultBalanceWeight,
		StalenessWindow:    5 * time.Minute,
		Trigger:            TriggerFixedCycleCount,
		CycleRounds:        10,
		ReliabilityHorizon: alternation.DefaultHorizon,
		Alphabet:           entity.DefaultAlphabet,
	}
}

// Validate reports every problem with the configuration. Values are never
// clamped.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfiguration}, args...)...))
	}

	if c.MinSamples < 1 {
		invalid("min samples must be at least 1 (got %d)", c.MinSamples)
	}
	if c.MaxSelected < 1 {
		invalid("max selected must be at least 1 (got %d)", c.MaxSelected)
	}
	if c.AlternationWeight < 0 {
		invalid("alternation weight is negative (%v)", c.AlternationWeight)
	}
	if c.BalanceWeight < 0 {
		invalid("balance weight is negative (%v)", c.BalanceWeight)
	}
	if c.StalenessWindow < 0 {
		invalid("staleness window is negative (%s)", c.StalenessWindow)
	}
	switch c.Trigger {
	case TriggerFixedCycleCount:
		if c.CycleRounds < 1 {
			invalid("cycle rounds must be at least 1 with %s (got %d)", c.Trigger, c.CycleRounds)
		}
	case TriggerSelectionExhausted:
	default:
		invalid("unknown trigger %s", c.Trigger)
	}
	if c.ReliabilityHorizon <= 0 {
		invalid("reliability horizon must be positive (got %v)", c.ReliabilityHorizon)
	}
	if c.Alphabet.Primary[0] == "" || c.Alphabet.Primary[1] == "" {
		invalid("both primary outcome symbols must be set")
	} else if c.Alphabet.Primary[0] == c.Alphabet.Primary[1] {
		invalid("primary outcome symbols must differ (%q)", c.Alphabet.Primary[0])
	}
	if c.Alphabet.Tie != "" && c.Alphabet.PrimaryIndex(c.Alphabet.Tie) >= 0 {
		invalid("tie symbol %q is also a primary symbol", c.Alphabet.Tie)
	}

	return errors.Join(errs...)
}

func (c Config) scorer() *composite.Scorer {
	return composite.New(
		c.MinSamples,
		composite.Weights{Alternation: c.AlternationWeight, Balance: c.BalanceWeight},
		c.Alphabet,
		c.ReliabilityHorizon,
	)
}

// Scorers returns the named scorers for this configuration, as used by
// the score log runner.
func (c Config) Scorers() map[string]types.Scorer {
	return map[string]types.Scorer{
		"composite":   c.scorer(),
		"alternation": alternation.New(c.Alphabet, c.ReliabilityHorizon),
		"balance":     balance.New(c.Alphabet),
	}
}
