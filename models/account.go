package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a participant in the referral network.
// It is the single source of truth for balance, XP and activity counters.
type Account struct {
	ID      string          `db:"id"`
	Balance decimal.Decimal `db:"balance"`
	XP      int64           `db:"xp"`
	Level   int             `db:"level"`

	// Activity
	MessagesSent    int64      `db:"messages_sent"`
	DaysActive      int        `db:"days_active"`
	LastActiveAt    time.Time  `db:"last_active_at"`
	LastActiveDay   string     `db:"last_active_day"` // YYYY-MM-DD of the last counted active day
	LastMessageXPAt *time.Time `db:"last_message_xp_at"`

	// Invites
	LastInviteSuccessAt *time.Time `db:"last_invite_success_at"`
	InviteStreak        int        `db:"invite_streak"`
	InvitesSent         int        `db:"invites_sent"`
	InvitesSuccessful   int        `db:"invites_successful"`
	MilestonesReached   []int      `db:"milestones_reached"`

	// Duels and totals
	WagersWon   int             `db:"wagers_won"`
	WagersLost  int             `db:"wagers_lost"`
	TotalEarned decimal.Decimal `db:"total_earned"`
	TotalSpent  decimal.Decimal `db:"total_spent"`

	LastDailyBonusAt *time.Time `db:"last_daily_bonus_at"`
	BlacklistedUntil *time.Time `db:"blacklisted_until"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewAccount returns a fresh level 1 account with zero balance.
func NewAccount(id string, now time.Time) *Account {
	return &Account{
		ID:           id,
		Balance:      decimal.Zero,
		Level:        1,
		LastActiveAt: now,
		TotalEarned:  decimal.Zero,
		TotalSpent:   decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsBlacklisted reports whether the account is blocked at the given time
func (a *Account) IsBlacklisted(now time.Time) bool {
	return a.BlacklistedUntil != nil && now.Before(*a.BlacklistedUntil)
}

// HasMilestone reports whether the threshold was already recorded
func (a *Account) HasMilestone(threshold int) bool {
	return slices.Contains(a.MilestonesReached, threshold)
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.MilestonesReached = slices.Clone(a.MilestonesReached)
	c.LastMessageXPAt = cloneTime(a.LastMessageXPAt)
	c.LastInviteSuccessAt = cloneTime(a.LastInviteSuccessAt)
	c.LastDailyBonusAt = cloneTime(a.LastDailyBonusAt)
	c.BlacklistedUntil = cloneTime(a.BlacklistedUntil)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// RoundMoney rounds an amount to the 2 decimal places used for stakes and gifts
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
