package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WagerState represents the state of a duel
type WagerState string

const (
	WagerStateOpen      WagerState = "open"
	WagerStateAccepted  WagerState = "accepted"
	WagerStateSettled   WagerState = "settled"
	WagerStateCancelled WagerState = "cancelled"
	WagerStateExpired   WagerState = "expired"
)

// IsTerminal reports whether no further transition is possible
func (s WagerState) IsTerminal() bool {
	return s == WagerStateSettled || s == WagerStateCancelled || s == WagerStateExpired
}

// Wager is an open duel: the challenger's stake is held in escrow until
// someone accepts, the challenger cancels, or it expires.
type Wager struct {
	ID           string          `db:"id"`
	ChallengerID string          `db:"challenger_id"`
	Stake        decimal.Decimal `db:"stake"`
	State        WagerState      `db:"state"`
	AcceptorID   *string         `db:"acceptor_id"`
	WinnerID     *string         `db:"winner_id"`
	CreatedAt    time.Time       `db:"created_at"`
	ExpiresAt    time.Time       `db:"expires_at"`
	AcceptedAt   *time.Time      `db:"accepted_at"`
	ResolvedAt   *time.Time      `db:"resolved_at"`
}

// IsExpired reports whether the acceptance window has passed
func (w *Wager) IsExpired(now time.Time) bool {
	return now.After(w.ExpiresAt)
}

// IsOpen reports whether the wager can still be accepted, cancelled or expired
func (w *Wager) IsOpen() bool {
	return w.State == WagerStateOpen
}

// Clone returns a copy of the wager
func (w *Wager) Clone() *Wager {
	if w == nil {
		return nil
	}
	c := *w
	if w.AcceptorID != nil {
		v := *w.AcceptorID
		c.AcceptorID = &v
	}
	if w.WinnerID != nil {
		v := *w.WinnerID
		c.WinnerID = &v
	}
	c.AcceptedAt = cloneTime(w.AcceptedAt)
	c.ResolvedAt = cloneTime(w.ResolvedAt)
	return &c
}

// WagerTransition is a compare-and-set request on a wager's state
type WagerTransition struct {
	WagerID    string
	From       WagerState
	To         WagerState
	At         time.Time
	AcceptorID *string
	WinnerID   *string
}
