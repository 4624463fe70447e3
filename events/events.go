package events

import (
	"context"
	"sync"

	"bankroll/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeDepositCredited          EventType = "deposit_credited"
	EventTypeDepositUnmatched         EventType = "deposit_unmatched"
	EventTypeWagerSettled             EventType = "wager_settled"
	EventTypeJackpotWon               EventType = "jackpot_won"
	EventTypeJackpotUnfunded          EventType = "jackpot_unfunded"
	EventTypeLeveledUp                EventType = "leveled_up"
	EventTypePoolShortfall            EventType = "pool_shortfall"
	EventTypeWithdrawalSettled        EventType = "withdrawal_settled"
	EventTypeWithdrawalDispatchFailed EventType = "withdrawal_dispatch_failed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// DepositCreditedEvent is published when an on-chain deposit is credited
// to an account balance.
type DepositCreditedEvent struct {
	UserID     int64
	Asset      models.Asset
	Amount     decimal.Decimal
	TxHash     string
	NewBalance decimal.Decimal
}

func (e DepositCreditedEvent) Type() EventType { return EventTypeDepositCredited }

// DepositUnmatchedEvent is published when a deposit event matches no
// registered address. Operational alert: funds sit uncredited in the pool
// wallet.
type DepositUnmatchedEvent struct {
	FromAddress string
	Asset       models.Asset
	Amount      decimal.Decimal
	TxHash      string
}

func (e DepositUnmatchedEvent) Type() EventType { return EventTypeDepositUnmatched }

// WagerSettledEvent is published after a wager resolves.
type WagerSettledEvent struct {
	UserID     int64
	Stake      decimal.Decimal
	Won        bool
	Payout     decimal.Decimal
	NewBalance decimal.Decimal
	NewPool    decimal.Decimal
}

func (e WagerSettledEvent) Type() EventType { return EventTypeWagerSettled }

// JackpotWonEvent is published when a jackpot play pays out the pool.
type JackpotWonEvent struct {
	UserID int64
	Payout decimal.Decimal
}

func (e JackpotWonEvent) Type() EventType { return EventTypeJackpotWon }

// JackpotUnfundedEvent is published when a jackpot draw won against an
// empty pool. The stake stays debited; no payout was made.
type JackpotUnfundedEvent struct {
	UserID int64
	Stake  decimal.Decimal
}

func (e JackpotUnfundedEvent) Type() EventType { return EventTypeJackpotUnfunded }

// LeveledUpEvent is published once per level gained.
type LeveledUpEvent struct {
	UserID   int64
	NewLevel int
	Reward   decimal.Decimal
	// RewardSkipped is set when the pool could not fund the level reward.
	RewardSkipped bool
}

func (e LeveledUpEvent) Type() EventType { return EventTypeLeveledUp }

// PoolShortfallEvent is published when a payout had to be capped because
// the pool could not cover it. Operational alert, not a user-facing error.
type PoolShortfallEvent struct {
	UserID    int64
	Requested decimal.Decimal
	Paid      decimal.Decimal
}

func (e PoolShortfallEvent) Type() EventType { return EventTypePoolShortfall }

// WithdrawalSettledEvent is published after both withdrawal transfers were
// dispatched.
type WithdrawalSettledEvent struct {
	UserID       int64
	WithdrawalID int64
	Asset        models.Asset
	Amount       decimal.Decimal
	Payout       decimal.Decimal
	Reference    string
}

func (e WithdrawalSettledEvent) Type() EventType { return EventTypeWithdrawalSettled }

// WithdrawalDispatchFailedEvent is published when a transfer failed after
// the debit committed. Manual reconciliation required.
type WithdrawalDispatchFailedEvent struct {
	UserID       int64
	WithdrawalID int64
	Reason       string
}

func (e WithdrawalDispatchFailedEvent) Type() EventType {
	return EventTypeWithdrawalDispatchFailed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType": event.Type(),
						"panic":     r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

// TransactionalBus holds pending events coupled to a unit of work and
// flushes them to the underlying bus only after a successful commit.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits all pending events. Called after a successful DB commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Events are processed independently of the transaction lifecycle, so
	// a background context avoids issues with expired transaction contexts.
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events. Called after rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
