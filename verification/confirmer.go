package verification

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/thisyearnofear/writersarcade-sub002/store"
	"github.com/thisyearnofear/writersarcade-sub002/types"
)

// ChainReader fetches mined transactions and their receipts.
// *ethclient.Client satisfies it; geth reports a transaction that has not
// been mined yet as ethereum.NotFound.
type ChainReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Transaction, bool, error)
}

// Confirmer is the background process that resolves pending records. It
// is the only status writer after creation; re-invoking it on a record
// already in flight is safe because the store's transition is guarded.
type Confirmer struct {
	service  *Service
	chain    ChainReader
	contract string
	interval time.Duration
	workers  int
	batch    int
}

func NewConfirmer(service *Service, chain ChainReader, contractAddress string, interval time.Duration, workers int) *Confirmer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if workers <= 0 {
		workers = 4
	}
	return &Confirmer{
		service:  service,
		chain:    chain,
		contract: strings.ToLower(contractAddress),
		interval: interval,
		workers:  workers,
		batch:    100,
	}
}

// Run polls the store until the context is cancelled.
func (c *Confirmer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep evaluates one batch of pending records concurrently.
func (c *Confirmer) Sweep(ctx context.Context) {
	pending, err := c.service.records.ListPending(ctx, c.batch)
	if err != nil {
		c.service.log.Error("list pending payments", map[string]any{"error": err.Error()})
		return
	}
	if len(pending) == 0 {
		return
	}

	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	for i := range pending {
		record := pending[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			c.confirm(ctx, &record)
		}()
	}
	wg.Wait()
}

// confirm reads the receipt for one record and applies the terminal
// transition. A missing receipt leaves the record pending for the next
// sweep.
func (c *Confirmer) confirm(ctx context.Context, record *store.PaymentRecord) {
	receipt, err := c.chain.TransactionReceipt(ctx, common.HexToHash(record.TxHash))
	if err != nil || receipt == nil {
		// Not mined yet, or a transient RPC failure: try again later.
		return
	}

	status := types.StatusVerified
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		status = types.StatusFailed
	} else if c.contract != "" {
		matches, ok := c.recipientMatches(ctx, record.TxHash)
		if !ok {
			// Transient lookup failure: keep pending.
			return
		}
		if !matches {
			// Mined successfully but paid a different contract.
			status = types.StatusFailed
		}
	}

	if err := c.service.markTerminal(ctx, record, status); err != nil {
		c.service.log.Error("record status transition", map[string]any{
			"paymentId": record.ID,
			"error":     err.Error(),
		})
	}
}

func (c *Confirmer) recipientMatches(ctx context.Context, txHash string) (matches, ok bool) {
	tx, isPending, err := c.chain.TransactionByHash(ctx, common.HexToHash(txHash))
	if err != nil || isPending || tx == nil || tx.To() == nil {
		return false, err == nil && !isPending
	}
	return strings.ToLower(tx.To().Hex()) == c.contract, true
}
