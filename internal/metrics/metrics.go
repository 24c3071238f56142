package metrics

import "time"

// Recorder collects ledger and HTTP metrics. Implementations export them to a backend.
type Recorder interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordTransactionCreated(description string, amount float64)
	RecordTransactionRejected(reason string)
	RecordStateChange(from, to string)
	RecordEventPublish(success bool)
	RecordCircuitState(name string, state CircuitState)
	RecordRateLimited(route string)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpRecorder discards everything. It is the default when metrics are not wired.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordRequest(string, string, int, time.Duration) {}
func (NoOpRecorder) RecordTransactionCreated(string, float64)         {}
func (NoOpRecorder) RecordTransactionRejected(string)                 {}
func (NoOpRecorder) RecordStateChange(string, string)                 {}
func (NoOpRecorder) RecordEventPublish(bool)                          {}
func (NoOpRecorder) RecordCircuitState(string, CircuitState)          {}
func (NoOpRecorder) RecordRateLimited(string)                         {}
