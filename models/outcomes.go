package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LevelUp is the result of an XP gain
type LevelUp struct {
	AccountID string
	XPGained  int64
	OldLevel  int
	NewLevel  int
	LeveledUp bool
}

// CascadeHop is one credit made while walking up the referral chain
type CascadeHop struct {
	AccountID string
	Depth     int
	Amount    decimal.Decimal
}

// RedeemOutcome is returned when a candidate presents an invite code
type RedeemOutcome struct {
	InviteCode string
	OwnerID    string
	Prompt     string
	ExpiresAt  time.Time
}

// VerificationOutcome is the result of answering a verification challenge
type VerificationOutcome struct {
	Verified          bool
	InviteCode        string
	OwnerID           string
	GroupID           string
	AttemptsRemaining int
	Blacklisted       bool
	BlacklistedUntil  *time.Time
}

// ActivationOutcome is returned when an invited account joins the group
type ActivationOutcome struct {
	Activated    bool
	InviterID    string
	InviteStreak int
	Hops         []CascadeHop
	TotalAwarded decimal.Decimal
	Milestones   []int
	InviterHeat  float64
}

// ActivityOutcome is returned for every message an account sends
type ActivityOutcome struct {
	Counted bool
	LevelUp *LevelUp
}

// WagerOutcome is returned when a duel is created, cancelled or expired
type WagerOutcome struct {
	Wager   *Wager
	Balance decimal.Decimal
}

// SettlementOutcome is the full result of an accepted duel
type SettlementOutcome struct {
	Wager           *Wager
	WinnerID        string
	LoserID         string
	Stake           decimal.Decimal
	Payout          decimal.Decimal
	ChallengerXP    int64
	AcceptorXP      int64
	ChallengerLevel *LevelUp
	AcceptorLevel   *LevelUp
}

// DailyBonusOutcome is the breakdown of a claimed daily bonus
type DailyBonusOutcome struct {
	Base       decimal.Decimal
	LevelBonus decimal.Decimal
	Streak     decimal.Decimal
	Total      decimal.Decimal
	XP         int64
	LevelUp    *LevelUp
	NextClaim  time.Time
}

// GiftOutcome is the result of a transfer between accounts
type GiftOutcome struct {
	FromID      string
	ToID        string
	Amount      decimal.Decimal
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// LeaveOutcome is returned when an invited account leaves the group
type LeaveOutcome struct {
	Penalized bool
	InviterID string
	Penalty   decimal.Decimal
}

// SweepOutcome counts what a periodic sweep cleaned up
type SweepOutcome struct {
	WagersExpired     int
	ChallengesExpired int
	BlacklistsCleared int
}

// Profile is an account with its computed scores
type Profile struct {
	Account        *Account
	Loveliness     float64
	Heat           float64
	XPForNextLevel int64
}

// LeaderboardEntry is one ranked row
type LeaderboardEntry struct {
	Rank      int
	AccountID string
	Balance   decimal.Decimal
	Level     int
	XP        int64
	Score     float64
}

// Leaderboards groups the rankings shown together
type Leaderboards struct {
	Points     []LeaderboardEntry
	Levels     []LeaderboardEntry
	Loveliness []LeaderboardEntry
	Heat       []LeaderboardEntry
}

// NetworkStats aggregates totals across all accounts
type NetworkStats struct {
	TotalAccounts     int
	TotalInvites      int
	SuccessfulInvites int
	TotalBalance      decimal.Decimal
	TotalMessages     int64
	OpenWagers        int
}
