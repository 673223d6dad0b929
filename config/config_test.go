package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/selector"
	"go.ntppool.org/tablerank/testutil"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, selector.DefaultConfig(), cfg)

	cfg, err = Parse([]byte(`{
		"min_samples": 10,
		"staleness_window": "90s",
		"trigger": "selection-exhausted",
		"alphabet": {"primary": ["P", "B"], "tie": "T"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MinSamples)
	assert.Equal(t, 90*time.Second, cfg.StalenessWindow)
	assert.Equal(t, selector.TriggerSelectionExhausted, cfg.Trigger)
	assert.Equal(t, entity.Outcome("P"), cfg.Alphabet.Primary[0])
	assert.Equal(t, 3, cfg.MaxSelected, "defaults kept")

	cfg, err = Parse([]byte(`{"staleness_window": 30}`))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.StalenessWindow)

	for _, bad := range []string{
		`{"max_selected": 0}`,
		`{"trigger": "sometimes"}`,
		`{"trigger": "unknown"}`,
		`{"balance_weight": -1}`,
		`{"staleness_window": "soon"}`,
		`not json`,
	} {
		_, err := Parse([]byte(bad))
		assert.ErrorIs(t, err, selector.ErrInvalidConfiguration, bad)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")

	cfg, err := Load(path)
	assert.True(t, isNotExist(err))
	assert.Equal(t, selector.DefaultConfig(), cfg)

	want := selector.DefaultConfig()
	want.MaxSelected = 5
	want.StalenessWindow = 2 * time.Minute
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"staleness_window": "2m0s"`)
	assert.Contains(t, string(b), `"trigger": "fixed-cycle-count"`)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

type applied struct {
	mu      sync.Mutex
	configs []selector.Config
}

func (a *applied) apply(cfg selector.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configs = append(a.configs, cfg)
	return nil
}

func (a *applied) last() (selector.Config, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.configs) == 0 {
		return selector.Config{}, 0
	}
	return a.configs[len(a.configs)-1], len(a.configs)
}

func TestManagerReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_selected": 2}`), 0o644))

	a := &applied{}
	m := NewManager(testutil.NewTestLogger(t), path, a.apply)
	m.reloadInterval = 50 * time.Millisecond
	m.retryInterval = 50 * time.Millisecond

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxSelected)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte(`{"max_selected": 4}`), 0o644))
	require.Eventually(t, func() bool {
		cfg, _ := a.last()
		return cfg.MaxSelected == 4
	}, 5*time.Second, 20*time.Millisecond)

	// a broken file leaves the configuration alone
	require.NoError(t, os.WriteFile(path, []byte(`{"max_selected": 0}`), 0o644))
	time.Sleep(300 * time.Millisecond)
	_, n := a.last()
	assert.Equal(t, 1, n)
	assert.Equal(t, 4, m.Current().MaxSelected)

	// so does removing it
	require.NoError(t, os.Remove(path))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 4, m.Current().MaxSelected)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}
}

func TestManagerMissingFile(t *testing.T) {
	a := &applied{}
	m := NewManager(testutil.NewTestLogger(t), filepath.Join(t.TempDir(), "none.json"), a.apply)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, selector.DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = NewManager(testutil.NewTestLogger(t), path, a.apply).Load()
	assert.Error(t, err)
}
