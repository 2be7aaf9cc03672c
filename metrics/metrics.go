// Package metrics defines the recording surface for payment pipeline
// observability. The noop recorder is the default.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Event names recorded by the pipeline.
const (
	EventPaymentInitiated = "payment_initiated"
	EventPaymentVerified  = "payment_verified"
	EventPaymentFailed    = "payment_failed"
	EventRetry            = "payment_retry"
)
