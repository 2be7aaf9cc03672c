package arcadepay

import (
	"time"

	"github.com/thisyearnofear/writersarcade-sub002/logger"
	"github.com/thisyearnofear/writersarcade-sub002/metrics"
)

type Option func(*ArcadePay)

func WithLogger(l logger.Logger) Option {
	return func(a *ArcadePay) {
		if l != nil {
			a.log = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(a *ArcadePay) {
		if r != nil {
			a.metrics = r
		}
	}
}

// WithTimeout bounds a single Pay call end to end.
func WithTimeout(t time.Duration) Option {
	return func(a *ArcadePay) {
		if t > 0 {
			a.timeout = t
		}
	}
}

// WithRetry tunes the bounded retry loop for retryable failures.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(a *ArcadePay) {
		a.maxRetries = maxRetries
		a.baseDelay = baseDelay
	}
}
