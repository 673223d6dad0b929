package selector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/testutil"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestSelector(t *testing.T, cfg Config, opts ...Option) (*Selector, *entity.Table, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	tbl := entity.NewTable(0)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := New(cfg, tbl, testutil.NewTestLogger(t), nil, opts...)
	require.NoError(t, err)
	return s, tbl, clock
}

func observe(s *Selector, id, outcomes string) {
	for _, o := range testutil.Outcomes(outcomes) {
		s.Observe(id, o)
	}
}

func TestObserveCreatesSelection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 4
	cfg.MaxSelected = 1
	cfg.CycleRounds = 3

	s, tbl, _ := newTestSelector(t, cfg)
	assert.True(t, s.Current().Empty())

	observe(s, "T1", "ABA")
	assert.True(t, s.Current().Empty(), "not enough samples yet")
	assert.Equal(t, 1, tbl.Len())

	e := s.Observe("T1", entity.OutcomeB)
	assert.Equal(t, 4, e.Count())

	c := s.Current()
	assert.Equal(t, []string{"T1"}, c.Entities)
	assert.Equal(t, uint64(1), c.Seq)
	assert.Equal(t, reasonEmpty, c.Reason)
	assert.Equal(t, 3, c.Rounds)
	assert.NotEmpty(t, c.ID)
	require.Len(t, c.Scores, 1)
	assert.True(t, c.Scores[0].Eligible)
}

func TestFixedCycleCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 2
	cfg.MaxSelected = 2
	cfg.CycleRounds = 3

	s, _, _ := newTestSelector(t, cfg)
	observe(s, "T1", "AB")
	require.Equal(t, uint64(1), s.Current().Seq)
	assert.Equal(t, 3, s.RoundsRemaining())

	observe(s, "T2", "A")
	assert.Equal(t, 2, s.RoundsRemaining())
	observe(s, "T2", "B")
	assert.Equal(t, 1, s.RoundsRemaining())
	assert.Equal(t, uint64(1), s.Current().Seq)

	observe(s, "T1", "A")
	c := s.Current()
	assert.Equal(t, uint64(2), c.Seq)
	assert.Equal(t, reasonRounds, c.Reason)
	assert.Equal(t, []string{"T2", "T1"}, c.Entities)
	assert.Equal(t, 3, s.RoundsRemaining())
}

func TestSelectionExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trigger = TriggerSelectionExhausted
	cfg.MinSamples = 4
	cfg.MaxSelected = 2

	s, tbl, clock := newTestSelector(t, cfg)
	testutil.FillTable(tbl, clock.Now(), map[string]string{
		"T1": "ABABAB",
		"T2": "AABBAB",
		"T3": "AAAAAA",
	})

	c := s.Refresh(context.Background(), reasonStartup)
	require.Equal(t, []string{"T1", "T2"}, c.Entities)
	assert.Zero(t, c.Rounds)
	assert.Zero(t, s.RoundsRemaining())

	// observations don't count down with this trigger
	observe(s, "T3", "AAAAAAAAAA")
	assert.Equal(t, uint64(1), s.Current().Seq)

	assert.False(t, s.MarkActed("T3"))
	assert.False(t, s.MarkActed("unknown"))

	assert.True(t, s.MarkActed("T1"))
	assert.True(t, s.MarkActed("T1"), "acting twice is fine")
	assert.Equal(t, uint64(1), s.Current().Seq)

	assert.True(t, s.MarkActed("T2"))
	c = s.Current()
	assert.Equal(t, uint64(2), c.Seq)
	assert.Equal(t, reasonExhausted, c.Reason)

	// the acted set starts over
	assert.True(t, s.MarkActed("T1"))
	assert.Equal(t, uint64(2), s.Current().Seq)
}

func TestMarkActedFixedTrigger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 2
	cfg.MaxSelected = 1

	s, _, _ := newTestSelector(t, cfg)
	observe(s, "T1", "AB")
	require.Equal(t, []string{"T1"}, s.Current().Entities)

	assert.True(t, s.MarkActed("T1"))
	assert.Equal(t, uint64(1), s.Current().Seq, "fixed trigger ignores acted entities")
}

func TestReselectScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 4

	s, _, clock := newTestSelector(t, cfg)
	entities := []entity.Entity{
		testutil.Entity("T1", "ABABABABAB", clock.Now()),
		testutil.Entity("T2", "AAAAAAAAAA", clock.Now()),
	}

	c := s.Reselect(entities, 1)
	assert.Equal(t, []string{"T1"}, c.Entities)
	assert.InDelta(t, 76.67, c.Scores[0].Composite, 0.01)

	assert.True(t, s.Current().Empty(), "Reselect doesn't install the cycle")

	assert.Empty(t, s.Reselect(entities, 0).Entities)
	assert.Empty(t, s.Reselect(nil, 3).Entities)
}

func TestScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 4

	s, tbl, clock := newTestSelector(t, cfg)
	sc := s.Score(testutil.Entity("T1", "ABABABABAB", clock.Now()))
	assert.InDelta(t, 76.67, sc.Composite, 0.01)
	assert.True(t, sc.Eligible)

	testutil.FillTable(tbl, clock.Now(), map[string]string{"b": "AB", "a": "ABAB"})
	scores := s.Scores()
	require.Len(t, scores, 2)
	assert.Equal(t, "a", scores[0].EntityID)
	assert.False(t, scores[1].Eligible)
}

func TestEmptyCycleNotReplaced(t *testing.T) {
	s, _, _ := newTestSelector(t, DefaultConfig())

	var got []SelectionCycle
	s.Listen(func(c SelectionCycle) { got = append(got, c) })

	c := s.Refresh(context.Background(), reasonStartup)
	assert.True(t, c.Empty())
	assert.Equal(t, uint64(1), c.Seq)

	c = s.Refresh(context.Background(), reasonManual)
	assert.Equal(t, uint64(1), c.Seq)
	s.Tick(time.Now())

	assert.Len(t, got, 1)
}

func TestTickReplacesStale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 4
	cfg.MaxSelected = 2
	cfg.StalenessWindow = 5 * time.Minute

	s, tbl, clock := newTestSelector(t, cfg)
	t0 := clock.Now()
	testutil.FillTable(tbl, t0, map[string]string{
		"T1": "ABABAB",
		"T2": "AABBAB",
	})
	testutil.FillTable(tbl, t0.Add(4*time.Minute), map[string]string{
		"T3": "AABBAB",
	})

	c := s.Refresh(context.Background(), reasonStartup)
	require.Equal(t, []string{"T1", "T2"}, c.Entities)

	// nothing stale yet
	s.Tick(t0.Add(4 * time.Minute))
	assert.Equal(t, uint64(1), s.Current().Seq)

	clock.Advance(6 * time.Minute)
	s.Tick(clock.Now())

	c = s.Current()
	assert.Equal(t, uint64(2), c.Seq)
	assert.Equal(t, reasonStale, c.Reason)
	assert.Equal(t, []string{"T3"}, c.Entities)

	e, _ := tbl.Get("T1")
	assert.False(t, e.Active)

	// a fresh observation brings T1 back on the next reselection
	observe(s, "T1", "A")
	e, _ = tbl.Get("T1")
	assert.True(t, e.Active)
}

func TestTickRetriesEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 2

	s, tbl, clock := newTestSelector(t, cfg)
	s.Tick(clock.Now())
	require.True(t, s.Current().Empty())

	// filled behind the selector's back
	testutil.FillTable(tbl, clock.Now(), map[string]string{"T1": "ABAB"})
	s.Tick(clock.Now())
	assert.Equal(t, []string{"T1"}, s.Current().Entities)
}

func TestListeners(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 2
	cfg.CycleRounds = 2

	s, _, _ := newTestSelector(t, cfg)

	var mu sync.Mutex
	var seqs []uint64
	s.Listen(func(c SelectionCycle) {
		mu.Lock()
		defer mu.Unlock()
		seqs = append(seqs, c.Seq)

		// listeners may call back into the selector
		_ = s.Current()
		c.Entities[0] = "mangled"
	})

	observe(s, "T1", "ABAB")

	mu.Lock()
	assert.Equal(t, []uint64{1, 2}, seqs)
	mu.Unlock()
	assert.Equal(t, []string{"T1"}, s.Current().Entities)
}

func TestSetConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 4
	cfg.MaxSelected = 1

	s, tbl, clock := newTestSelector(t, cfg)
	testutil.FillTable(tbl, clock.Now(), map[string]string{
		"T1": "ABABAB",
		"T2": "AABBAB",
	})
	s.Refresh(context.Background(), reasonStartup)

	bad := cfg
	bad.MaxSelected = 0
	err := s.SetConfig(bad)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, 1, s.Config().MaxSelected)
	assert.Equal(t, uint64(1), s.Current().Seq)

	good := cfg
	good.MaxSelected = 3
	require.NoError(t, s.SetConfig(good))
	c := s.Current()
	assert.Equal(t, reasonConfig, c.Reason)
	assert.Equal(t, []string{"T1", "T2"}, c.Entities)
}

func TestRunStops(t *testing.T) {
	s, _, _ := newTestSelector(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestChoose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 2
	cfg.MaxSelected = 1

	s, _, _ := newTestSelector(t, cfg, WithRandom(bytes.NewReader([]byte{0, 1, 2, 255})))
	observe(s, "T1", "AB")
	observe(s, "T2", "A")

	a, err := s.Choose("T2")
	require.NoError(t, err)
	assert.False(t, a.Selected)
	assert.Empty(t, a.Side)
	assert.Equal(t, uint64(1), a.CycleSeq)

	var sides []entity.Outcome
	for i := 0; i < 4; i++ {
		a, err := s.Choose("T1")
		require.NoError(t, err)
		assert.True(t, a.Selected)
		sides = append(sides, a.Side)
	}
	assert.Equal(t, []entity.Outcome{"A", "B", "A", "B"}, sides)

	// the reader is used up
	_, err = s.Choose("T1")
	assert.Error(t, err)
}

func TestChooseRandomError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 1

	boom := errors.New("boom")
	s, _, _ := newTestSelector(t, cfg, WithRandom(iotest.ErrReader(boom)))
	observe(s, "T1", "A")

	_, err := s.Choose("T1")
	assert.ErrorIs(t, err, boom)

	// unselected IDs don't touch the random source
	_, err = s.Choose("T9")
	assert.NoError(t, err)
}

func TestChooseIsFair(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 2
	cfg.Alphabet = entity.Alphabet{Primary: [2]entity.Outcome{"red", "black"}, Tie: "green"}

	s, _, _ := newTestSelector(t, cfg)
	s.Observe("T1", "red")
	s.Observe("T1", "red")
	require.Equal(t, []string{"T1"}, s.Current().Entities)

	const n = 20000
	counts := map[entity.Outcome]float64{}
	for i := 0; i < n; i++ {
		a, err := s.Choose("T1")
		require.NoError(t, err)
		counts[a.Side]++
	}
	require.Len(t, counts, 2)

	expected := float64(n) / 2
	chi2 := 0.0
	for _, side := range []entity.Outcome{"red", "black"} {
		d := counts[side] - expected
		chi2 += d * d / expected
	}

	// fails one run in ten thousand with a fair source
	limit := distuv.ChiSquared{K: 1}.Quantile(0.9999)
	assert.Less(t, chi2, limit, "red=%v black=%v", counts["red"], counts["black"])
}

func TestSelectorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	cfg := DefaultConfig()
	cfg.MinSamples = 2
	cfg.StalenessWindow = time.Minute

	clock := newFakeClock()
	tbl := entity.NewTable(0)
	s, err := New(cfg, tbl, testLogger(), m,
		WithClock(clock.Now),
		WithRandom(bytes.NewReader([]byte{1})),
	)
	require.NoError(t, err)

	observe(s, "T1", "ATBx")
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Observations.WithLabelValues("A")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Observations.WithLabelValues("tie")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Observations.WithLabelValues("other")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Reselections.WithLabelValues(reasonEmpty)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.SelectedEntities))
	assert.Greater(t, promtestutil.ToFloat64(m.BestScore), 0.0)

	_, err = s.Choose("T1")
	require.NoError(t, err)
	_, err = s.Choose("nope")
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Choices.WithLabelValues("B")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Choices.WithLabelValues("not_selected")))

	clock.Advance(2 * time.Minute)
	s.Tick(clock.Now())
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Expired))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(m.ActiveEntities))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(m.SelectedEntities))
}

func TestListenersInSeqOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 2

	s, _, _ := newTestSelector(t, cfg)
	observe(s, "T1", "AB")
	require.Equal(t, uint64(1), s.Current().Seq)

	var mu sync.Mutex
	var seqs []uint64
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.Listen(func(c SelectionCycle) {
		once.Do(func() {
			close(entered)
			<-release
		})
		mu.Lock()
		defer mu.Unlock()
		seqs = append(seqs, c.Seq)
	})

	ctx := t.Context()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Refresh(ctx, reasonManual)
	}()
	<-entered

	// the second refresh installs its cycle while the first one is
	// still being delivered
	go func() {
		defer wg.Done()
		s.Refresh(ctx, reasonManual)
	}()
	require.Eventually(t, func() bool {
		return s.Current().Seq == 3
	}, 5*time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	mu.Lock()
	assert.Equal(t, []uint64{2, 3}, seqs)
	mu.Unlock()

	// a cycle replaced before it got delivered is dropped
	s.notify(SelectionCycle{Seq: 2, Entities: []string{"T1"}})

	mu.Lock()
	assert.Equal(t, []uint64{2, 3}, seqs)
	mu.Unlock()
}

func TestTickUsesGivenTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 4
	cfg.StalenessWindow = 5 * time.Minute

	s, tbl, clock := newTestSelector(t, cfg)
	t0 := clock.Now()
	testutil.FillTable(tbl, t0, map[string]string{"T1": "ABAB"})
	testutil.FillTable(tbl, t0.Add(8*time.Minute), map[string]string{"T2": "ABAB"})

	c := s.Refresh(t.Context(), reasonStartup)
	require.Equal(t, []string{"T1", "T2"}, c.Entities)

	// the selector clock stays at t0; the tick time decides staleness
	tick := t0.Add(10 * time.Minute)
	s.Tick(tick)

	c = s.Current()
	assert.Equal(t, reasonStale, c.Reason)
	assert.Equal(t, []string{"T2"}, c.Entities)
	assert.Equal(t, tick, c.CreatedAt)
}

func TestZeroCycleEncodes(t *testing.T) {
	b, err := json.Marshal(SelectionCycle{})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"trigger":"unknown"`)

	s, _, _ := newTestSelector(t, DefaultConfig())
	_, err = json.Marshal(s.Current())
	require.NoError(t, err)
}

func TestConcurrentUse(t *testing.T) {
	for _, trigger := range []Trigger{TriggerFixedCycleCount, TriggerSelectionExhausted} {
		t.Run(trigger.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MinSamples = 4
			cfg.MaxSelected = 3
			cfg.CycleRounds = 5
			cfg.StalenessWindow = 5 * time.Minute
			cfg.Trigger = trigger

			s, _, clock := newTestSelector(t, cfg)

			var mu sync.Mutex
			var cycles []SelectionCycle
			s.Listen(func(c SelectionCycle) {
				mu.Lock()
				defer mu.Unlock()
				cycles = append(cycles, c)
			})

			ctx := t.Context()
			var wg sync.WaitGroup

			for w := range 4 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					outcomes := []entity.Outcome{entity.OutcomeA, entity.OutcomeB, entity.OutcomeTie}
					for i := range 300 {
						id := fmt.Sprintf("T%d", (w+i)%8)
						s.Observe(id, outcomes[(w+i)%len(outcomes)])
					}
				}()
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 200 {
					for _, id := range s.Current().Entities {
						_, err := s.Choose(id)
						assert.NoError(t, err)
						s.MarkActed(id)
					}
				}
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 100 {
					clock.Advance(time.Millisecond)
					s.Tick(clock.Now())
				}
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					s.Refresh(ctx, reasonManual)
				}
			}()

			wg.Wait()

			mu.Lock()
			defer mu.Unlock()

			require.NotEmpty(t, cycles)
			for i, c := range cycles {
				if i > 0 {
					assert.Greater(t, c.Seq, cycles[i-1].Seq, "listener order")
				}
				assert.LessOrEqual(t, len(c.Entities), cfg.MaxSelected)
				for _, sc := range c.Scores {
					assert.True(t, sc.Eligible, "cycle %d: %s", c.Seq, sc.EntityID)
					assert.GreaterOrEqual(t, sc.Count, cfg.MinSamples)
					assert.LessOrEqual(t, c.CreatedAt.Sub(sc.Ts), cfg.StalenessWindow)
				}
			}
			assert.Equal(t, s.Current().Seq, cycles[len(cycles)-1].Seq)
		})
	}
}
