package core

import "time"

// Recorder defines the interface for recording verification metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// RecordAuthAttempt records one Authenticate call on a backend.
	RecordAuthAttempt(backend string, verdict Verdict, duration time.Duration)

	// RecordSecretSource records where a static identity's secret came from
	// ("file", "env" or "none").
	RecordSecretSource(identity, source string)
}
