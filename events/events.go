package events

import (
	"context"
	"sync"

	"roombot/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange      EventType = "balance_change"
	EventTypeLevelUp            EventType = "level_up"
	EventTypeMilestoneReached   EventType = "milestone_reached"
	EventTypeInviteActivated    EventType = "invite_activated"
	EventTypeWagerCreated       EventType = "wager_created"
	EventTypeWagerSettled       EventType = "wager_settled"
	EventTypeWagerClosed        EventType = "wager_closed"
	EventTypeAccountBlacklisted EventType = "account_blacklisted"
)

// AllEventTypes lists every event the engine emits
var AllEventTypes = []EventType{
	EventTypeBalanceChange,
	EventTypeLevelUp,
	EventTypeMilestoneReached,
	EventTypeInviteActivated,
	EventTypeWagerCreated,
	EventTypeWagerSettled,
	EventTypeWagerClosed,
	EventTypeAccountBlacklisted,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	AccountID       string
	OldBalance      decimal.Decimal
	NewBalance      decimal.Decimal
	TransactionType models.TransactionType
	ChangeAmount    decimal.Decimal
	Reason          string
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// LevelUpEvent is emitted once per XP gain that crossed at least one threshold
type LevelUpEvent struct {
	AccountID string
	OldLevel  int
	NewLevel  int
}

func (e LevelUpEvent) Type() EventType {
	return EventTypeLevelUp
}

// MilestoneReachedEvent is emitted exactly once per account and threshold
type MilestoneReachedEvent struct {
	AccountID         string
	Threshold         int
	InvitesSuccessful int
}

func (e MilestoneReachedEvent) Type() EventType {
	return EventTypeMilestoneReached
}

// InviteActivatedEvent is emitted when an invited account joins and the cascade ran
type InviteActivatedEvent struct {
	ChildID      string
	InviterID    string
	GroupID      string
	TotalAwarded decimal.Decimal
	Hops         int
}

func (e InviteActivatedEvent) Type() EventType {
	return EventTypeInviteActivated
}

// WagerCreatedEvent represents a newly opened duel
type WagerCreatedEvent struct {
	WagerID      string
	ChallengerID string
	Stake        decimal.Decimal
}

func (e WagerCreatedEvent) Type() EventType {
	return EventTypeWagerCreated
}

// WagerSettledEvent represents a duel that was accepted and paid out
type WagerSettledEvent struct {
	WagerID  string
	WinnerID string
	LoserID  string
	Stake    decimal.Decimal
}

func (e WagerSettledEvent) Type() EventType {
	return EventTypeWagerSettled
}

// WagerClosedEvent represents a duel that ended without settlement
type WagerClosedEvent struct {
	WagerID      string
	ChallengerID string
	State        models.WagerState
	Refund       decimal.Decimal
}

func (e WagerClosedEvent) Type() EventType {
	return EventTypeWagerClosed
}

// AccountBlacklistedEvent is emitted after too many failed verification attempts
type AccountBlacklistedEvent struct {
	AccountID string
	Until     string
}

func (e AccountBlacklistedEvent) Type() EventType {
	return EventTypeAccountBlacklisted
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Emitter delivers events to subscribers
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

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
	}).Debug("Subscribed handler to event type on main event bus")
}

// SubscribeAll adds the handler for every engine event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds pending events coupled to a unit of work and
// flushes them to the underlying emitter once the work commits.
type TransactionalBus struct {
	mu      sync.Mutex
	real    Emitter
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real Emitter) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Pending returns a copy of the events waiting for Flush
func (b *TransactionalBus) Pending() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.pending...)
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	log.WithFields(log.Fields{
		"pendingEventCount": len(pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Events are processed independently of the request lifecycle
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range pending {
		b.real.Emit(eventCtx, ev)
	}
	return nil
}

// Discard is called after a rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}
