package metrics

import (
	"time"

	"github.com/go-authgate/credgate/internal/core"
)

// NoopMetrics is a no-operation implementation of core.Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements core.Recorder at compile time
var _ core.Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() core.Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthAttempt(backend string, verdict core.Verdict, duration time.Duration) {
}

func (n *NoopMetrics) RecordSecretSource(identity, source string) {}

// OrNoop returns r, or a NoopMetrics when r is nil.
func OrNoop(r core.Recorder) core.Recorder {
	if r == nil {
		return NewNoopMetrics()
	}
	return r
}
