// Package chainwatch polls the chain for transfers to the pool wallet and
// feeds them to the deposit reconciler as asset-transfer events. Delivery
// is at-least-once: a restart rescans recent blocks and replays events the
// reconciler has already credited.
package chainwatch

import (
	"context"
	"time"

	"bankroll/models"
	"bankroll/service"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v4"
	chainjson "github.com/decred/dcrd/rpc/jsonrpc/types/v4"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ChainRPC is the slice of the dcrd RPC surface the watcher needs.
type ChainRPC interface {
	GetBestBlock(ctx context.Context) (*chainhash.Hash, int64, error)
	GetBlockHash(ctx context.Context, blockHeight int64) (*chainhash.Hash, error)
	GetBlockVerbose(ctx context.Context, blockHash *chainhash.Hash, verboseTx bool) (*chainjson.GetBlockVerboseResult, error)
	GetRawTransactionVerbose(ctx context.Context, txHash *chainhash.Hash) (*chainjson.TxRawResult, error)
}

// Watcher scans confirmed blocks for outputs paying the pool address.
type Watcher struct {
	rpc           ChainRPC
	deposits      service.DepositService
	poolAddress   string
	confirmations int64
	interval      time.Duration

	lastScanned int64
}

// New creates a watcher that scans for deposits to poolAddress, crediting
// them once they are confirmations blocks deep.
func New(rpc ChainRPC, deposits service.DepositService, poolAddress string, confirmations int64, interval time.Duration) *Watcher {
	if confirmations < 1 {
		confirmations = 1
	}
	return &Watcher{
		rpc:           rpc,
		deposits:      deposits,
		poolAddress:   poolAddress,
		confirmations: confirmations,
		interval:      interval,
		lastScanned:   -1,
	}
}

// Run polls until the context is cancelled
func (w *Watcher) Run(ctx context.Context) {
	log.WithFields(log.Fields{
		"poolAddress":   w.poolAddress,
		"confirmations": w.confirmations,
		"interval":      w.interval,
	}).Info("Chain watcher started")
	defer log.Info("Chain watcher stopped")

	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.pollOnce(ctx)
		}
	}
}

// pollOnce scans every newly confirmed block since the last tick. Scan
// errors leave lastScanned untouched so the failed range is retried; the
// reconciler's idempotency absorbs any resulting replays.
func (w *Watcher) pollOnce(ctx context.Context) {
	_, tip, err := w.rpc.GetBestBlock(ctx)
	if err != nil {
		log.WithError(err).Debug("Failed to get best block")
		return
	}

	// Only blocks buried confirmations deep are credited.
	confirmed := tip - w.confirmations + 1
	if confirmed < 0 {
		return
	}

	start := w.lastScanned + 1
	if w.lastScanned == -1 {
		// First run: start at the current confirmed height rather than
		// replaying the whole chain.
		start = confirmed
	}

	for height := start; height <= confirmed; height++ {
		if err := w.scanBlock(ctx, height); err != nil {
			log.WithError(err).WithField("height", height).Warn("Failed to scan block, will retry")
			return
		}
		w.lastScanned = height
	}
}

func (w *Watcher) scanBlock(ctx context.Context, height int64) error {
	hash, err := w.rpc.GetBlockHash(ctx, height)
	if err != nil {
		return err
	}
	block, err := w.rpc.GetBlockVerbose(ctx, hash, true)
	if err != nil {
		return err
	}

	for i := range block.RawTx {
		tx := &block.RawTx[i]
		for _, vout := range tx.Vout {
			if !lo.Contains(vout.ScriptPubKey.Addresses, w.poolAddress) {
				continue
			}

			sender, err := w.resolveSender(ctx, tx)
			if err != nil {
				log.WithError(err).WithFields(log.Fields{
					"txHash": tx.Txid,
					"vout":   vout.N,
				}).Warn("Failed to resolve deposit sender, skipping output")
				continue
			}
			if sender == "" {
				// Coinbase or non-standard input; nothing to match on.
				continue
			}

			// The RPC reports the value as a JSON float; round it to whole
			// atoms before it enters the ledger.
			amount, err := dcrutil.NewAmount(vout.Value)
			if err != nil {
				log.WithError(err).WithFields(log.Fields{
					"txHash": tx.Txid,
					"vout":   vout.N,
				}).Warn("Invalid deposit amount, skipping output")
				continue
			}

			event := &models.DepositEvent{
				FromAddress: sender,
				Asset:       models.AssetNative,
				Amount:      decimal.New(int64(amount), -8),
				TxHash:      tx.Txid,
				TxVout:      vout.N,
				BlockHeight: height,
			}
			if _, err := w.deposits.ProcessDeposit(ctx, event); err != nil {
				log.WithError(err).WithFields(log.Fields{
					"txHash": tx.Txid,
					"vout":   vout.N,
				}).Error("Failed to process deposit event")
			}
		}
	}
	return nil
}

// resolveSender returns the address that funded the transaction's first
// resolvable input. Deposits are matched to accounts by sender address, so
// users must fund deposits from their registered wallet.
func (w *Watcher) resolveSender(ctx context.Context, tx *chainjson.TxRawResult) (string, error) {
	for _, vin := range tx.Vin {
		if vin.Txid == "" {
			continue
		}
		prevHash, err := chainhash.NewHashFromStr(vin.Txid)
		if err != nil {
			return "", err
		}
		prev, err := w.rpc.GetRawTransactionVerbose(ctx, prevHash)
		if err != nil {
			return "", err
		}
		if int(vin.Vout) >= len(prev.Vout) {
			continue
		}
		addrs := prev.Vout[vin.Vout].ScriptPubKey.Addresses
		if len(addrs) > 0 {
			return addrs[0], nil
		}
	}
	return "", nil
}
