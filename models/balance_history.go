package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeCascadeReward TransactionType = "cascade_reward"
	TransactionTypeDailyBonus    TransactionType = "daily_bonus"
	TransactionTypeGiftSent      TransactionType = "gift_sent"
	TransactionTypeGiftReceived  TransactionType = "gift_received"
	TransactionTypeWagerEscrow   TransactionType = "wager_escrow"
	TransactionTypeWagerRefund   TransactionType = "wager_refund"
	TransactionTypeWagerPayout   TransactionType = "wager_payout"
	TransactionTypeLeavePenalty  TransactionType = "leave_penalty"
)

// CountsAsEarned reports whether a credit of this type adds to TotalEarned
func (t TransactionType) CountsAsEarned() bool {
	switch t {
	case TransactionTypeCascadeReward, TransactionTypeDailyBonus, TransactionTypeGiftReceived:
		return true
	}
	return false
}

// CountsAsSpent reports whether a debit of this type adds to TotalSpent
func (t TransactionType) CountsAsSpent() bool {
	return t == TransactionTypeGiftSent
}

// BalanceChange describes one mutation applied through the ledger.
type BalanceChange struct {
	Delta     decimal.Decimal // signed
	Type      TransactionType
	Reason    string
	Earned    decimal.Decimal // added to TotalEarned
	Spent     decimal.Decimal // added to TotalSpent
	Floor     bool            // clamp at zero instead of failing with insufficient funds
	RelatedID string
}

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID              int64           `db:"id"`
	AccountID       string          `db:"account_id"`
	BalanceBefore   decimal.Decimal `db:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after"`
	ChangeAmount    decimal.Decimal `db:"change_amount"`
	TransactionType TransactionType `db:"transaction_type"`
	Reason          string          `db:"reason"`
	RelatedID       *string         `db:"related_id"`
	CreatedAt       time.Time       `db:"created_at"`
}
