package selector

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ntppool.org/tablerank/entity"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"min samples zero", func(c *Config) { c.MinSamples = 0 }},
		{"max selected zero", func(c *Config) { c.MaxSelected = 0 }},
		{"max selected negative", func(c *Config) { c.MaxSelected = -2 }},
		{"negative alternation weight", func(c *Config) { c.AlternationWeight = -0.1 }},
		{"negative balance weight", func(c *Config) { c.BalanceWeight = -1 }},
		{"negative staleness", func(c *Config) { c.StalenessWindow = -1 }},
		{"unknown trigger", func(c *Config) { c.Trigger = TriggerUnknown }},
		{"no cycle rounds", func(c *Config) { c.CycleRounds = 0 }},
		{"no horizon", func(c *Config) { c.ReliabilityHorizon = 0 }},
		{"same primaries", func(c *Config) { c.Alphabet.Primary = [2]entity.Outcome{"A", "A"} }},
		{"missing primary", func(c *Config) { c.Alphabet.Primary[1] = "" }},
		{"tie is primary", func(c *Config) { c.Alphabet.Tie = "A" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration), "error should wrap ErrInvalidConfiguration: %v", err)

			_, err = New(cfg, entity.NewTable(0), testLogger(), nil)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestConfigValidateAcceptable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trigger = TriggerSelectionExhausted
	cfg.CycleRounds = 0 // not used by this trigger
	cfg.StalenessWindow = 0
	cfg.AlternationWeight = 2 // weights don't need to add up to 1
	cfg.BalanceWeight = 0
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateReportsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 0
	cfg.MaxSelected = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min samples")
	assert.Contains(t, err.Error(), "max selected")
}

func TestNewRequiresTable(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestTriggerText(t *testing.T) {
	for _, tr := range []Trigger{TriggerFixedCycleCount, TriggerSelectionExhausted} {
		b, err := tr.MarshalText()
		require.NoError(t, err)

		var got Trigger
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, tr, got)
	}

	_, err := TriggerString("whenever")
	assert.Error(t, err)

	tr, err := TriggerString("Fixed-Cycle-Count")
	require.NoError(t, err)
	assert.Equal(t, TriggerFixedCycleCount, tr)

	// the zero value encodes, Validate is what rejects it
	b, err := TriggerUnknown.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "unknown", string(b))
	assert.Equal(t, "Trigger(7)", Trigger(7).String())
	assert.False(t, Trigger(7).IsATrigger())

	var holder struct {
		Trigger Trigger `json:"trigger"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"trigger":"selection-exhausted"}`), &holder))
	assert.Equal(t, TriggerSelectionExhausted, holder.Trigger)
}
