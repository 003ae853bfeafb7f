package metrics

import (
	"sync"
	"time"

	"github.com/go-authgate/credgate/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements core.Recorder at compile time
var _ core.Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the verification engine
type Metrics struct {
	AuthAttemptsTotal      *prometheus.CounterVec
	AuthDuration           *prometheus.HistogramVec
	SecretResolutionsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics on the default registerer
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) core.Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credgate_auth_attempts_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"backend", "verdict"}, // verdict: valid, invalid_user, invalid_password
		),
		AuthDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "credgate_auth_duration_seconds",
				Help: "Time taken to verify a credential",
				// bcrypt dominates the upper buckets
				Buckets: []float64{
					0.0001,
					0.0005,
					0.001,
					0.005,
					0.010,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
				},
			},
			[]string{"backend"},
		),
		SecretResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credgate_secret_resolutions_total",
				Help: "Total number of static identity secret lookups by source",
			},
			[]string{"identity", "source"}, // source: file, env, none
		),
	}
}

// RecordAuthAttempt records one authentication attempt
func (m *Metrics) RecordAuthAttempt(backend string, verdict core.Verdict, duration time.Duration) {
	m.AuthAttemptsTotal.WithLabelValues(backend, verdict.String()).Inc()
	m.AuthDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordSecretSource records where a secret was resolved from
func (m *Metrics) RecordSecretSource(identity, source string) {
	m.SecretResolutionsTotal.WithLabelValues(identity, source).Inc()
}
