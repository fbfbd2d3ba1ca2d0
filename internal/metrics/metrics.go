// Package metrics holds the Prometheus collectors for reminder delivery.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sweep outcomes used as the result label of nudge_sweeps_total.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultConflict = "in_progress"
)

// Metrics holds the delivery collectors.
//
// Metrics:
//   - nudge_sweeps_total{result} - sweeps by outcome
//   - nudge_reminders_sent_total - notifications accepted by the provider
//   - nudge_delivery_failures_total - notifications the provider rejected
//   - nudge_sweep_duration_seconds - wall time of completed sweeps
//   - nudge_reminders_pending - pending reminders after the last sweep
type Metrics struct {
	SweepsTotal      *prometheus.CounterVec
	SentTotal        prometheus.Counter
	FailuresTotal    prometheus.Counter
	SweepDuration    prometheus.Histogram
	RemindersPending prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass a fresh prometheus.NewRegistry
// in tests to avoid duplicate registration panics.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SweepsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nudge_sweeps_total",
				Help: "Total number of sweeps by result",
			},
			[]string{"result"},
		),
		SentTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "nudge_reminders_sent_total",
			Help: "Total number of reminder notifications sent",
		}),
		FailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "nudge_delivery_failures_total",
			Help: "Total number of failed reminder deliveries",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nudge_sweep_duration_seconds",
			Help:    "Duration of sweeps in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}),
		RemindersPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "nudge_reminders_pending",
			Help: "Pending reminders after the most recent sweep",
		}),
		gatherer: reg,
	}
}

// ObserveSweep records one sweep. A nil receiver is a no-op.
func (m *Metrics) ObserveSweep(result string, d time.Duration, sent, failed, pending int) {
	if m == nil {
		return
	}
	m.SweepsTotal.WithLabelValues(result).Inc()
	if result != ResultOK {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
	m.SentTotal.Add(float64(sent))
	m.FailuresTotal.Add(float64(failed))
	m.RemindersPending.Set(float64(pending))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
