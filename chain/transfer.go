package chain

import (
	"context"
	"fmt"

	"bankroll/models"
	"bankroll/service"

	"decred.org/dcrwallet/v4/rpc/client/dcrwallet"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/chaincfg/v3"
	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/decred/dcrd/rpcclient/v8"
	"github.com/decred/dcrd/txscript/v4/stdaddr"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// walletRPC is the slice of the dcrwallet RPC surface the sender needs.
type walletRPC interface {
	SendToAddress(ctx context.Context, address stdaddr.Address, amount dcrutil.Amount) (*chainhash.Hash, error)
}

// WalletSender dispatches transfers through a dcrwallet JSON-RPC
// connection. Only the native asset moves on this chain; stable balances
// settle through a separate rail.
type WalletSender struct {
	rpc    walletRPC
	params *chaincfg.Params
}

// NewWalletSender creates a TransferClient backed by a dcrwallet RPC client
func NewWalletSender(client *rpcclient.Client, params *chaincfg.Params) service.TransferClient {
	return &WalletSender{
		rpc:    dcrwallet.NewClient(dcrwallet.RawRequestCaller(client), params),
		params: params,
	}
}

// disabledSender refuses every transfer. Used when no wallet RPC is
// configured.
type disabledSender struct{}

// NewDisabledSender creates a TransferClient that rejects all transfers
func NewDisabledSender() service.TransferClient {
	return disabledSender{}
}

func (disabledSender) Send(ctx context.Context, asset models.Asset, toAddress string, amount decimal.Decimal) (string, error) {
	return "", fmt.Errorf("no wallet RPC configured")
}

// Send dispatches an on-chain transfer and returns the transaction hash.
// An error here does not guarantee the transfer never left the wallet;
// callers must treat dispatch failures as needing reconciliation.
func (s *WalletSender) Send(ctx context.Context, asset models.Asset, toAddress string, amount decimal.Decimal) (string, error) {
	if asset != models.AssetNative {
		return "", fmt.Errorf("asset %q cannot be transferred on this chain", asset)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("transfer amount must be positive")
	}

	addr, err := stdaddr.DecodeAddress(toAddress, s.params)
	if err != nil {
		return "", fmt.Errorf("invalid address %s: %w", toAddress, err)
	}

	dcrAmount, err := dcrutil.NewAmount(amount.InexactFloat64())
	if err != nil {
		return "", fmt.Errorf("invalid transfer amount %s: %w", amount, err)
	}

	hash, err := s.rpc.SendToAddress(ctx, addr, dcrAmount)
	if err != nil {
		return "", fmt.Errorf("failed to send %s to %s: %w", amount, toAddress, err)
	}

	log.WithFields(log.Fields{
		"toAddress": toAddress,
		"amount":    amount,
		"txHash":    hash.String(),
	}).Info("Dispatched on-chain transfer")

	return hash.String(), nil
}
