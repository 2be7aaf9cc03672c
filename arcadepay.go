// Package arcadepay is the client-side entry point for arcade payments.
// It bundles wallet detection, the payment orchestrator, and the server
// API client behind one handle: construct it with the server URL and the
// signing backends you have, then call Pay.
package arcadepay

import (
	"context"
	"time"

	"github.com/thisyearnofear/writersarcade-sub002/logger"
	"github.com/thisyearnofear/writersarcade-sub002/metrics"
	"github.com/thisyearnofear/writersarcade-sub002/orchestrator"
	"github.com/thisyearnofear/writersarcade-sub002/types"
	"github.com/thisyearnofear/writersarcade-sub002/wallet"
)

// ArcadePay is the main handle for running payments against an arcade
// payment server.
type ArcadePay struct {
	flow   *orchestrator.Orchestrator
	server orchestrator.ServerClient

	log        logger.Logger
	metrics    metrics.Recorder
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
}

// New builds an ArcadePay client. Providers are tried in order during
// wallet detection, so list the embedded signer before the external one.
func New(serverURL string, providers []wallet.Provider, opts ...Option) *ArcadePay {
	a := &ArcadePay{
		server:     orchestrator.NewHTTPServerClient(serverURL),
		log:        logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
		timeout:    60 * time.Second,
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.flow = orchestrator.New(a.server, providers,
		orchestrator.WithLogger(a.log),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithRetry(a.maxRetries, a.baseDelay),
	)
	return a
}

// Pay runs the full payment flow for one action and returns once the
// payment is submitted and registered for verification. The configured
// timeout bounds the whole flow.
func (a *ArcadePay) Pay(ctx context.Context, tokenID string, action types.PaymentAction) (orchestrator.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.flow.Pay(ctx, tokenID, action)
}

// PayAndWait runs Pay and then polls until the server settles the
// payment or ctx expires. pollEvery <= 0 uses the server's recommended
// five second interval.
func (a *ArcadePay) PayAndWait(ctx context.Context, tokenID string, action types.PaymentAction, pollEvery time.Duration) (*types.VerificationStatus, error) {
	outcome, err := a.Pay(ctx, tokenID, action)
	if err != nil {
		return nil, err
	}
	return a.flow.AwaitSettlement(ctx, outcome.PaymentID, pollEvery)
}

// Status asks the server for the current state of a registered payment.
func (a *ArcadePay) Status(ctx context.Context, paymentID string) (*types.VerificationStatus, error) {
	return a.server.PollStatus(ctx, paymentID)
}
