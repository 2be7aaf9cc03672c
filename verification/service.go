// Package verification owns the server-side payment lifecycle: it records
// a payment when initiated, answers status polls from the store, and runs
// the background confirmer that settles pending records against the chain.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thisyearnofear/writersarcade-sub002/logger"
	"github.com/thisyearnofear/writersarcade-sub002/metrics"
	"github.com/thisyearnofear/writersarcade-sub002/pricing"
	"github.com/thisyearnofear/writersarcade-sub002/store"
	"github.com/thisyearnofear/writersarcade-sub002/types"
	"github.com/thisyearnofear/writersarcade-sub002/utils"
)

// Service registers payments and answers status polls. Polling never
// touches the chain; only the confirmer does.
type Service struct {
	records store.Store
	calc    *pricing.Calculator
	log     logger.Logger
	metrics metrics.Recorder
}

func NewService(records store.Store, calc *pricing.Calculator, log logger.Logger, recorder metrics.Recorder) *Service {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Service{records: records, calc: calc, log: log, metrics: recorder}
}

// InitiateResult is returned when a payment is registered for
// verification.
type InitiateResult struct {
	PaymentID       string              `json:"paymentId"`
	TransactionHash string              `json:"transactionHash"`
	Status          types.PaymentStatus `json:"status"`
	StatusCheckURL  string              `json:"statusCheckUrl"`
}

// Initiate records a submitted transaction for asynchronous confirmation.
// The hash is validated before the store is touched, and registration is
// idempotent by hash: repeating the call returns the existing record.
func (s *Service) Initiate(ctx context.Context, txHash, tokenID string, action types.PaymentAction) (*InitiateResult, error) {
	if err := utils.ValidateTransactionHash(txHash); err != nil {
		return nil, types.NewArcadeError(types.ErrVerification, err.Error())
	}
	if !action.Valid() {
		return nil, types.NewArcadeError(types.ErrConfig, fmt.Sprintf("unknown action %q", action))
	}

	cost, err := s.calc.Cost(tokenID, action)
	if err != nil {
		return nil, err
	}

	if existing, err := s.records.FindByHash(ctx, txHash); err == nil {
		return s.initiateResult(existing), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	record := &store.PaymentRecord{
		TxHash:  txHash,
		TokenID: tokenID,
		Action:  action,
		Status:  types.StatusPending,
		Amount:  cost.Amount.String(),
	}
	if err := s.records.Create(ctx, record); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost a race with a concurrent initiate for the same hash.
			existing, ferr := s.records.FindByHash(ctx, txHash)
			if ferr != nil {
				return nil, ferr
			}
			return s.initiateResult(existing), nil
		}
		return nil, err
	}

	s.metrics.IncCounter(metrics.EventPaymentInitiated, map[string]string{
		"token": tokenID, "action": action.String(),
	})
	s.log.Info("payment registered", map[string]any{
		"paymentId": record.ID,
		"txHash":    txHash,
		"token":     tokenID,
		"action":    action.String(),
	})

	return s.initiateResult(record), nil
}

func (s *Service) initiateResult(record *store.PaymentRecord) *InitiateResult {
	return &InitiateResult{
		PaymentID:       record.ID,
		TransactionHash: record.TxHash,
		Status:          record.Status,
		StatusCheckURL:  "/payments/verify?paymentId=" + record.ID,
	}
}

// Status answers a poll by payment id or transaction hash. Terminal
// records are served straight from the store; unknown references are a
// not-found error, never a pending answer.
func (s *Service) Status(ctx context.Context, paymentID, txHash string) (*types.VerificationStatus, error) {
	var (
		record *store.PaymentRecord
		err    error
	)
	switch {
	case paymentID != "":
		record, err = s.records.FindByID(ctx, paymentID)
	case txHash != "":
		record, err = s.records.FindByHash(ctx, txHash)
	default:
		return nil, types.NewArcadeError(types.ErrVerification, "paymentId or transactionHash required")
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, types.NewArcadeError(types.ErrRecordNotFound, "no payment record for the given reference")
	}
	if err != nil {
		return nil, err
	}

	return &types.VerificationStatus{
		PaymentID:       record.ID,
		TransactionHash: record.TxHash,
		Status:          record.Status,
		VerifiedAt:      record.VerifiedAt,
	}, nil
}

// Quote computes the authoritative price and split for an initiate call.
// The server, not the client, owns the price.
func (s *Service) Quote(ctx context.Context, tokenID string, action types.PaymentAction, contractAddress string, chainID int64) (*types.InitiateQuote, error) {
	token, err := s.calc.Token(tokenID)
	if err != nil {
		return nil, err
	}
	cost, err := s.calc.Cost(tokenID, action)
	if err != nil {
		return nil, err
	}
	dist, err := s.calc.Distribution(ctx, tokenID, action)
	if err != nil {
		return nil, err
	}
	return &types.InitiateQuote{
		ContractAddress: contractAddress,
		TokenAddress:    token.Address,
		Amount:          cost.Amount,
		AmountFormatted: cost.Formatted,
		Distribution:    dist,
		ChainID:         chainID,
	}, nil
}

// markTerminal is the single writer of status transitions after creation.
func (s *Service) markTerminal(ctx context.Context, record *store.PaymentRecord, status types.PaymentStatus) error {
	updated, err := s.records.UpdateStatus(ctx, record.ID, status, time.Now().UTC())
	if err != nil {
		return err
	}

	event := metrics.EventPaymentVerified
	if status == types.StatusFailed {
		event = metrics.EventPaymentFailed
	}
	s.metrics.IncCounter(event, map[string]string{
		"token": record.TokenID, "action": record.Action.String(),
	})
	s.log.Info("payment settled", map[string]any{
		"paymentId": record.ID,
		"txHash":    record.TxHash,
		"status":    string(updated.Status),
	})
	return nil
}
