// Package orchestrator drives one payment attempt end to end on the
// client side: resolve the signer address, fetch the authoritative price,
// approve, pay, and register the transaction for server verification.
// Each attempt is strictly sequential; only the server's idempotent
// record creation deduplicates concurrent attempts.
package orchestrator

import (
	"context"
	"time"

	"github.com/thisyearnofear/writersarcade-sub002/logger"
	"github.com/thisyearnofear/writersarcade-sub002/metrics"
	"github.com/thisyearnofear/writersarcade-sub002/txcodec"
	"github.com/thisyearnofear/writersarcade-sub002/types"
	"github.com/thisyearnofear/writersarcade-sub002/wallet"
)

// State names the position of a payment attempt in the pipeline.
type State string

const (
	StateIdle             State = "idle"
	StateResolvingAddress State = "resolving-address"
	StateInitiating       State = "initiating"
	StateApproving        State = "approving"
	StatePaying           State = "paying"
	StateVerifying        State = "verifying"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
)

// Outcome reports where an attempt ended up.
type Outcome struct {
	State     State
	TxHash    string
	PaymentID string
	// FailedStep is the pipeline state a failed attempt died in.
	FailedStep State
	// Message is the user-facing text for failed outcomes.
	Message string
}

// Orchestrator sequences payment attempts.
type Orchestrator struct {
	providers []wallet.Provider
	server    ServerClient
	log       logger.Logger
	metrics   metrics.Recorder

	maxRetries int
	baseDelay  time.Duration
}

// New builds an orchestrator. Providers are tried in order by wallet
// detection, so the embedded signer goes first.
func New(server ServerClient, providers []wallet.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers:  providers,
		server:     server,
		log:        logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.metrics = r
		}
	}
}

func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(o *Orchestrator) {
		o.maxRetries = maxRetries
		o.baseDelay = baseDelay
	}
}

// Pay runs one payment attempt. The returned Outcome always describes
// the final state; err is non-nil whenever the outcome is failed.
func (o *Orchestrator) Pay(ctx context.Context, tokenID string, action types.PaymentAction) (Outcome, error) {
	labels := map[string]string{"token": tokenID, "action": action.String()}
	started := time.Now()
	defer func() {
		o.metrics.ObserveLatency("payment_attempt", time.Since(started), labels)
	}()

	// Resolve the signer before anything else: with no wallet there is
	// nothing to retry and no network call to make.
	provider, payer, err := o.resolveAddress(ctx)
	if err != nil {
		cat := Classify(err)
		return o.fail(StateResolvingAddress, cat, labels), err
	}

	// Steps 2-5 share one bounded retry loop. A payment hash obtained in
	// an earlier try is kept so a transient verification failure never
	// resubmits the payment itself.
	var (
		paidHash  string
		paymentID string
		lastState = StateInitiating
		lastCat   Category
	)

	for attempt := 0; ; attempt++ {
		state, cat, err := o.runAttempt(ctx, provider, payer, tokenID, action, &paidHash, &paymentID)
		if err == nil {
			o.metrics.IncCounter(metrics.EventPaymentVerified, labels)
			return Outcome{State: StateSucceeded, TxHash: paidHash, PaymentID: paymentID}, nil
		}

		lastState, lastCat = state, cat
		if !cat.Retryable || attempt >= o.maxRetries {
			return o.fail(lastState, lastCat, labels), err
		}

		delay := o.baseDelay << uint(attempt)
		o.log.Warn("payment step failed, retrying", map[string]any{
			"state":   string(state),
			"attempt": attempt + 1,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		o.metrics.IncCounter(metrics.EventRetry, labels)

		select {
		case <-ctx.Done():
			return o.fail(lastState, catTimeout, labels), ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (o *Orchestrator) resolveAddress(ctx context.Context) (wallet.Provider, string, error) {
	provider, err := wallet.Detect(ctx, o.providers...)
	if err != nil {
		return nil, "", err
	}
	payer, err := provider.Address(ctx)
	if err != nil {
		return nil, "", err
	}
	o.log.Debug("wallet resolved", map[string]any{
		"provider": provider.Name(),
		"address":  payer,
	})
	return provider, payer, nil
}

// runAttempt executes steps 2-5 once. paidHash and paymentID persist
// across retries so completed steps are not repeated.
func (o *Orchestrator) runAttempt(
	ctx context.Context,
	provider wallet.Provider,
	payer, tokenID string,
	action types.PaymentAction,
	paidHash *string,
	paymentID *string,
) (State, Category, error) {
	if *paidHash == "" {
		// Step 2: the server owns the price.
		quote, err := o.server.InitiatePayment(ctx, tokenID, action)
		if err != nil {
			return StateInitiating, Classify(err), err
		}

		// Step 3: best-effort approval. Sufficient allowance may already
		// exist; a genuine shortfall reverts the payment step with a
		// specific diagnostic.
		o.approve(ctx, provider, quote)

		// Step 4: the payment itself.
		hash, cat, err := o.pay(ctx, provider, payer, quote, action)
		if err != nil {
			return StatePaying, cat, err
		}
		*paidHash = hash
	}

	// Step 5: register for verification. Failures here are transient;
	// the payment hash is kept so retries skip straight to this step.
	id, err := o.server.RegisterVerification(ctx, *paidHash, tokenID, action)
	if err != nil {
		return StateVerifying, Classify(err), err
	}
	*paymentID = id
	return StateSucceeded, Category{}, nil
}

func (o *Orchestrator) approve(ctx context.Context, provider wallet.Provider, quote *types.InitiateQuote) {
	data, err := txcodec.EncodeApproval(quote.ContractAddress, quote.Amount)
	if err != nil {
		o.log.Warn("approval encode failed", map[string]any{"error": err.Error()})
		return
	}
	res := provider.SendTransaction(ctx, types.TransactionRequest{
		To:      quote.TokenAddress,
		Data:    data,
		ChainID: quote.ChainID,
	})
	if !res.Success {
		o.log.Warn("approval failed, continuing", map[string]any{"error": res.Error})
	}
}

func (o *Orchestrator) pay(
	ctx context.Context,
	provider wallet.Provider,
	payer string,
	quote *types.InitiateQuote,
	action types.PaymentAction,
) (string, Category, error) {
	data, err := txcodec.EncodePayment(quote.TokenAddress, payer, action)
	if err != nil {
		return "", Classify(err), err
	}

	res := provider.SendTransaction(ctx, types.TransactionRequest{
		To:      quote.ContractAddress,
		Data:    data,
		ChainID: quote.ChainID,
	})
	if !res.Success {
		cat := ClassifyMessage(res.Error)
		return "", cat, types.NewArcadeError(cat.Code, res.Error)
	}
	return res.TxHash, Category{}, nil
}

func (o *Orchestrator) fail(state State, cat Category, labels map[string]string) Outcome {
	o.metrics.IncCounter(metrics.EventPaymentFailed, labels)
	return Outcome{State: StateFailed, FailedStep: state, Message: cat.Message}
}

// AwaitSettlement polls the server until the payment reaches a terminal
// status or the context expires.
func (o *Orchestrator) AwaitSettlement(ctx context.Context, paymentID string, pollEvery time.Duration) (*types.VerificationStatus, error) {
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		status, err := o.server.PollStatus(ctx, paymentID)
		if err == nil && status.Status.Terminal() {
			return status, nil
		}
		if err != nil && !Classify(err).Retryable {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
