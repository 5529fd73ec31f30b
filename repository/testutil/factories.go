package testutil

import (
	"time"

	"roombot/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTestAccount creates a level 1 account with the given balance
func CreateTestAccount(id string, balance int64) *models.Account {
	account := models.NewAccount(id, time.Now().UTC().Truncate(time.Microsecond))
	account.Balance = decimal.NewFromInt(balance)
	return account
}

// CreateTestInvite creates an active invite link with a unique code
func CreateTestInvite(ownerID, groupID string) *models.InviteLink {
	return &models.InviteLink{
		Code:      "TEST" + uuid.NewString()[:8],
		OwnerID:   ownerID,
		GroupID:   groupID,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Active:    true,
	}
}

// CreateTestWager creates an open wager that expires after ttl
func CreateTestWager(challengerID string, stake decimal.Decimal, ttl time.Duration) *models.Wager {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Wager{
		ID:           uuid.NewString(),
		ChallengerID: challengerID,
		Stake:        stake,
		State:        models.WagerStateOpen,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

// CreateTestChallenge creates a challenge for an account
func CreateTestChallenge(accountID, inviteCode string, ttl time.Duration) *models.VerificationChallenge {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.VerificationChallenge{
		AccountID:  accountID,
		Symbols:    []string{"🍎", "🐱", "🚗", "🌙", "🎵"},
		InviteCode: inviteCode,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
}
