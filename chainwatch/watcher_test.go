package chainwatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bankroll/models"

	"github.com/decred/dcrd/chaincfg/chainhash"
	chainjson "github.com/decred/dcrd/rpc/jsonrpc/types/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	poolAddr   = "DsPoolAddr"
	senderAddr = "DsSenderAddr"

	prevTxID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func blockHash(t *testing.T, height int64) *chainhash.Hash {
	t.Helper()
	hash, err := chainhash.NewHashFromStr(fmt.Sprintf("%064x", height+1))
	require.NoError(t, err)
	return hash
}

// fakeChainRPC serves a canned chain keyed by height.
type fakeChainRPC struct {
	t       *testing.T
	tip     int64
	blocks  map[int64]*chainjson.GetBlockVerboseResult
	prevTxs map[string]*chainjson.TxRawResult
	failAt  map[int64]bool
}

func newFakeChainRPC(t *testing.T, tip int64) *fakeChainRPC {
	return &fakeChainRPC{
		t:       t,
		tip:     tip,
		blocks:  make(map[int64]*chainjson.GetBlockVerboseResult),
		prevTxs: make(map[string]*chainjson.TxRawResult),
		failAt:  make(map[int64]bool),
	}
}

func (f *fakeChainRPC) GetBestBlock(ctx context.Context) (*chainhash.Hash, int64, error) {
	return blockHash(f.t, f.tip), f.tip, nil
}

func (f *fakeChainRPC) GetBlockHash(ctx context.Context, height int64) (*chainhash.Hash, error) {
	if f.failAt[height] {
		return nil, errors.New("rpc timeout")
	}
	return blockHash(f.t, height), nil
}

func (f *fakeChainRPC) GetBlockVerbose(ctx context.Context, hash *chainhash.Hash, verboseTx bool) (*chainjson.GetBlockVerboseResult, error) {
	for height, block := range f.blocks {
		if blockHash(f.t, height).IsEqual(hash) {
			return block, nil
		}
	}
	// Heights without a staged block are empty.
	return &chainjson.GetBlockVerboseResult{}, nil
}

func (f *fakeChainRPC) GetRawTransactionVerbose(ctx context.Context, txHash *chainhash.Hash) (*chainjson.TxRawResult, error) {
	if tx, ok := f.prevTxs[txHash.String()]; ok {
		return tx, nil
	}
	return nil, errors.New("transaction not found")
}

// stageDeposit places a transaction paying amount to the pool address in the
// block at height, funded from senderAddr.
func (f *fakeChainRPC) stageDeposit(height int64, txid string, amount float64) {
	f.prevTxs[prevTxID] = &chainjson.TxRawResult{
		Txid: prevTxID,
		Vout: []chainjson.Vout{
			{N: 0, ScriptPubKey: chainjson.ScriptPubKeyResult{Addresses: []string{senderAddr}}},
		},
	}
	f.blocks[height] = &chainjson.GetBlockVerboseResult{
		RawTx: []chainjson.TxRawResult{
			{
				Txid: txid,
				Vin:  []chainjson.Vin{{Txid: prevTxID, Vout: 0}},
				Vout: []chainjson.Vout{
					{N: 0, Value: amount, ScriptPubKey: chainjson.ScriptPubKeyResult{Addresses: []string{poolAddr}}},
					{N: 1, Value: 3.5, ScriptPubKey: chainjson.ScriptPubKeyResult{Addresses: []string{senderAddr}}},
				},
			},
		},
	}
}

// depositRecorder collects the events the watcher hands to the reconciler.
type depositRecorder struct {
	events []*models.DepositEvent
	err    error
}

func (r *depositRecorder) ProcessDeposit(ctx context.Context, event *models.DepositEvent) (*models.DepositResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.events = append(r.events, event)
	return &models.DepositResult{Matched: true, Credited: true}, nil
}

func TestWatcher_CreditsConfirmedDeposit(t *testing.T) {
	ctx := context.Background()
	rpc := newFakeChainRPC(t, 100)
	recorder := &depositRecorder{}

	// With 2 confirmations and tip 100, block 99 is the newest confirmed one.
	rpc.stageDeposit(99, "bb11", 25.0)

	watcher := New(rpc, recorder, poolAddr, 2, time.Second)
	watcher.pollOnce(ctx)

	require.Len(t, recorder.events, 1)
	event := recorder.events[0]
	assert.Equal(t, senderAddr, event.FromAddress)
	assert.Equal(t, models.AssetNative, event.Asset)
	assert.True(t, event.Amount.Equal(decimal.NewFromInt(25)), "amount is %s", event.Amount)
	assert.Equal(t, "bb11", event.TxHash)
	assert.Equal(t, uint32(0), event.TxVout)
	assert.Equal(t, int64(99), event.BlockHeight)
}

func TestWatcher_RoundsAmountToWholeAtoms(t *testing.T) {
	ctx := context.Background()
	rpc := newFakeChainRPC(t, 100)
	recorder := &depositRecorder{}

	// The RPC reports values as JSON floats, which can carry more apparent
	// precision than the chain's 8 decimal places. The ledger must see the
	// whole-atom amount, never float dust.
	rpc.stageDeposit(99, "ab99", 25.123456789)

	watcher := New(rpc, recorder, poolAddr, 2, time.Second)
	watcher.pollOnce(ctx)

	require.Len(t, recorder.events, 1)
	event := recorder.events[0]
	assert.True(t, event.Amount.Equal(decimal.RequireFromString("25.12345679")),
		"amount is %s", event.Amount)
	assert.GreaterOrEqual(t, event.Amount.Exponent(), int32(-8))
}

func TestWatcher_WaitsForConfirmations(t *testing.T) {
	ctx := context.Background()
	rpc := newFakeChainRPC(t, 100)
	recorder := &depositRecorder{}

	// The deposit sits at the tip; only one block deep with 2 required.
	rpc.stageDeposit(100, "cc22", 10.0)

	watcher := New(rpc, recorder, poolAddr, 2, time.Second)
	watcher.pollOnce(ctx)
	assert.Empty(t, recorder.events)

	// One more block on top and it clears the confirmation bar.
	rpc.tip = 101
	watcher.pollOnce(ctx)

	require.Len(t, recorder.events, 1)
	assert.Equal(t, int64(100), recorder.events[0].BlockHeight)
}

func TestWatcher_FirstRunSkipsHistory(t *testing.T) {
	ctx := context.Background()
	rpc := newFakeChainRPC(t, 100)
	recorder := &depositRecorder{}

	// An old deposit well below the starting height must not be replayed.
	rpc.stageDeposit(50, "dd33", 5.0)

	watcher := New(rpc, recorder, poolAddr, 2, time.Second)
	watcher.pollOnce(ctx)

	assert.Empty(t, recorder.events)
	assert.Equal(t, int64(99), watcher.lastScanned)
}

func TestWatcher_RetriesFailedBlock(t *testing.T) {
	ctx := context.Background()
	rpc := newFakeChainRPC(t, 100)
	recorder := &depositRecorder{}

	watcher := New(rpc, recorder, poolAddr, 2, time.Second)
	watcher.pollOnce(ctx) // lastScanned = 99

	rpc.tip = 101
	rpc.stageDeposit(100, "ee44", 7.0)
	rpc.failAt[100] = true

	watcher.pollOnce(ctx)
	assert.Empty(t, recorder.events)
	assert.Equal(t, int64(99), watcher.lastScanned, "a failed scan must not advance the cursor")

	rpc.failAt[100] = false
	watcher.pollOnce(ctx)

	require.Len(t, recorder.events, 1)
	assert.Equal(t, "ee44", recorder.events[0].TxHash)
	assert.Equal(t, int64(100), watcher.lastScanned)
}

func TestWatcher_ReconcilerErrorDoesNotStall(t *testing.T) {
	ctx := context.Background()
	rpc := newFakeChainRPC(t, 100)
	recorder := &depositRecorder{err: errors.New("database down")}

	rpc.stageDeposit(99, "ff55", 12.0)

	watcher := New(rpc, recorder, poolAddr, 2, time.Second)
	watcher.pollOnce(ctx)

	// Event delivery failures are logged, not retried at the block level.
	assert.Equal(t, int64(99), watcher.lastScanned)
}

func TestWatcher_SkipsCoinbase(t *testing.T) {
	ctx := context.Background()
	rpc := newFakeChainRPC(t, 100)
	recorder := &depositRecorder{}

	rpc.blocks[99] = &chainjson.GetBlockVerboseResult{
		RawTx: []chainjson.TxRawResult{
			{
				Txid: "coinbase00",
				Vin:  []chainjson.Vin{{Coinbase: "deadbeef"}},
				Vout: []chainjson.Vout{
					{N: 0, Value: 50.0, ScriptPubKey: chainjson.ScriptPubKeyResult{Addresses: []string{poolAddr}}},
				},
			},
		},
	}

	watcher := New(rpc, recorder, poolAddr, 2, time.Second)
	watcher.pollOnce(ctx)

	assert.Empty(t, recorder.events)
	assert.Equal(t, int64(99), watcher.lastScanned)
}
