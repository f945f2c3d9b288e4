package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Retry causes.
const (
	CauseInvalidSession = "invalid_session"
	CauseMalformed      = "malformed_response"
)

// Metrics holds the Prometheus metrics of a Zuora client. A nil *Metrics
// records nothing.
type Metrics struct {
	Calls    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Logins   *prometheus.CounterVec
	Retries  *prometheus.CounterVec
}

// New creates a Metrics instance with all metrics registered on registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zuora_calls_total",
				Help: "Total number of Zuora SOAP calls by outcome",
			},
			[]string{"operation", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zuora_call_duration_seconds",
				Help:    "Zuora SOAP call duration in seconds, retries included",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0},
			},
			[]string{"operation"},
		),
		Logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zuora_logins_total",
				Help: "Total number of session logins by outcome",
			},
			[]string{"outcome"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zuora_retries_total",
				Help: "Total number of retried Zuora calls by cause",
			},
			[]string{"operation", "cause"},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveCall records the outcome and duration of a dispatched call.
func (m *Metrics) ObserveCall(operation string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(operation, outcome(err)).Inc()
	m.Duration.WithLabelValues(operation).Observe(took.Seconds())
}

// ObserveLogin records a login attempt.
func (m *Metrics) ObserveLogin(err error) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome(err)).Inc()
}

// ObserveRetry records a retry triggered by cause.
func (m *Metrics) ObserveRetry(operation, cause string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(operation, cause).Inc()
}
