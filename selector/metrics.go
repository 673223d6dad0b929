package selector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go.ntppool.org/tablerank/scorer/score"
)

// Metrics contains the prometheus metrics for the selector. All methods
// are safe to call on a nil *Metrics.
type Metrics struct {
	Observations *prometheus.CounterVec
	Reselections *prometheus.CounterVec
	Choices      *prometheus.CounterVec
	Expired      prometheus.Counter

	ReselectDuration prometheus.Histogram

	ActiveEntities   prometheus.Gauge
	EligibleEntities prometheus.Gauge
	SelectedEntities prometheus.Gauge
	BestScore        prometheus.Gauge
}

// NewMetrics creates and registers all selector metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selector_observations_total",
				Help: "Outcomes observed, by primary symbol, tie or other",
			},
			[]string{"outcome"},
		),
		Reselections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selector_reselections_total",
				Help: "Selection cycles computed, by reason",
			},
			[]string{"reason"},
		),
		Choices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selector_choices_total",
				Help: "Side choices made, by result",
			},
			[]string{"result"},
		),
		Expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "selector_expired_entities_total",
			Help: "Entities marked inactive after the staleness window",
		}),
		ReselectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "selector_reselect_duration_seconds",
			Help:    "Time spent ranking entities",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		ActiveEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selector_active_entities",
			Help: "Entities currently considered active",
		}),
		EligibleEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selector_eligible_entities",
			Help: "Entities eligible for selection at the last reselection",
		}),
		SelectedEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selector_selected_entities",
			Help: "Entities in the last computed selection",
		}),
		BestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selector_best_composite_score",
			Help: "Composite score of the best ranked entity",
		}),
	}

	reg.MustRegister(
		m.Observations,
		m.Reselections,
		m.Choices,
		m.Expired,
		m.ReselectDuration,
		m.ActiveEntities,
		m.EligibleEntities,
		m.SelectedEntities,
		m.BestScore,
	)

	return m
}

func (m *Metrics) observed(label string) {
	if m == nil {
		return
	}
	m.Observations.WithLabelValues(label).Inc()
}

func (m *Metrics) reselected(reason string, d time.Duration, eligible int, ranked []score.Score) {
	if m == nil {
		return
	}
	m.Reselections.WithLabelValues(reason).Inc()
	m.ReselectDuration.Observe(d.Seconds())
	m.EligibleEntities.Set(float64(eligible))
	m.SelectedEntities.Set(float64(len(ranked)))
	if len(ranked) > 0 {
		m.BestScore.Set(ranked[0].Composite)
	} else {
		m.BestScore.Set(0)
	}
}

func (m *Metrics) chose(result string) {
	if m == nil {
		return
	}
	m.Choices.WithLabelValues(result).Inc()
}

func (m *Metrics) expired(n int) {
	if m == nil {
		return
	}
	m.Expired.Add(float64(n))
}

func (m *Metrics) tableSize(active int) {
	if m == nil {
		return
	}
	m.ActiveEntities.Set(float64(active))
}
