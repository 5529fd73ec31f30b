package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"roombot/config"
	"roombot/events"
	"roombot/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var ledgerNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type ledgerFixture struct {
	uow       *MockUnitOfWork
	accounts  *MockAccountRepository
	history   *MockBalanceHistoryRepository
	publisher *MockEventPublisher
	service   LedgerService
}

func newLedgerFixture(accounts ...*models.Account) *ledgerFixture {
	f := &ledgerFixture{
		uow:       new(MockUnitOfWork),
		accounts:  new(MockAccountRepository),
		history:   new(MockBalanceHistoryRepository),
		publisher: new(MockEventPublisher),
	}
	for _, account := range accounts {
		f.accounts.SetAccount(account)
	}
	f.uow.SetRepositories(f.accounts, f.history, nil, nil, nil, nil, f.publisher)

	economy := config.DefaultEconomy()
	f.service = NewLedgerService(economy, NewScorer(economy))
	return f
}

func accountWithBalance(id string, balance int64) *models.Account {
	account := models.NewAccount(id, ledgerNow.Add(-time.Hour))
	account.Balance = decimal.NewFromInt(balance)
	return account
}

func TestLedgerService_Credit(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(accountWithBalance("alice", 100))

	f.accounts.On("Update", ctx, "alice").Return(nil)
	f.history.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.AccountID == "alice" &&
			h.BalanceBefore.Equal(decimal.NewFromInt(100)) &&
			h.BalanceAfter.Equal(decimal.NewFromInt(125)) &&
			h.ChangeAmount.Equal(decimal.NewFromInt(25)) &&
			h.TransactionType == models.TransactionTypeCascadeReward &&
			h.Reason == "cascade depth 0"
	})).Return(nil)
	f.publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		bce, ok := e.(events.BalanceChangeEvent)
		return ok && bce.AccountID == "alice" && bce.NewBalance.Equal(decimal.NewFromInt(125))
	})).Return()

	account, err := f.service.Credit(ctx, f.uow, "alice", decimal.NewFromInt(25), models.TransactionTypeCascadeReward, "cascade depth 0")

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(125).Equal(account.Balance))
	assert.True(t, decimal.NewFromInt(25).Equal(account.TotalEarned))
	f.accounts.AssertExpectations(t)
	f.history.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestLedgerService_Debit(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient funds leaves balance untouched", func(t *testing.T) {
		f := newLedgerFixture(accountWithBalance("alice", 10))
		f.accounts.On("Update", ctx, "alice").Return(nil)

		_, err := f.service.Debit(ctx, f.uow, "alice", decimal.NewFromInt(11), models.TransactionTypeGiftSent, "gift")

		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, KindInsufficientFunds, KindOf(err))
		assert.True(t, decimal.NewFromInt(10).Equal(f.accounts.Account("alice").Balance))
		f.history.AssertNotCalled(t, "Record")
		f.publisher.AssertNotCalled(t, "Publish")
	})

	t.Run("spending type counts towards total spent", func(t *testing.T) {
		f := newLedgerFixture(accountWithBalance("alice", 10))
		f.accounts.On("Update", ctx, "alice").Return(nil)
		f.history.On("Record", ctx, mock.Anything).Return(nil)
		f.publisher.On("Publish", mock.Anything).Return()

		account, err := f.service.Debit(ctx, f.uow, "alice", decimal.NewFromInt(10), models.TransactionTypeGiftSent, "gift")

		require.NoError(t, err)
		assert.True(t, account.Balance.IsZero())
		assert.True(t, decimal.NewFromInt(10).Equal(account.TotalSpent))
	})

	t.Run("escrow does not count as spent", func(t *testing.T) {
		f := newLedgerFixture(accountWithBalance("alice", 10))
		f.accounts.On("Update", ctx, "alice").Return(nil)
		f.history.On("Record", ctx, mock.Anything).Return(nil)
		f.publisher.On("Publish", mock.Anything).Return()

		account, err := f.service.Debit(ctx, f.uow, "alice", decimal.NewFromInt(4), models.TransactionTypeWagerEscrow, "duel escrow")

		require.NoError(t, err)
		assert.True(t, account.TotalSpent.IsZero())
	})

	t.Run("non positive amount", func(t *testing.T) {
		f := newLedgerFixture(accountWithBalance("alice", 10))

		_, err := f.service.Debit(ctx, f.uow, "alice", decimal.Zero, models.TransactionTypeGiftSent, "gift")

		assert.ErrorIs(t, err, ErrInvalidAmount)
		f.accounts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestLedgerService_Apply_Floor(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(accountWithBalance("alice", 0))

	f.accounts.On("Update", ctx, "alice").Return(nil)
	f.history.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.ChangeAmount.IsZero() && h.BalanceAfter.IsZero()
	})).Return(nil)
	f.publisher.On("Publish", mock.Anything).Return()

	account, err := f.service.Apply(ctx, f.uow, "alice", models.BalanceChange{
		Delta: decimal.RequireFromString("-0.5"),
		Type:  models.TransactionTypeLeavePenalty,
		Floor: true,
	})

	require.NoError(t, err)
	assert.True(t, account.Balance.IsZero())
}

func TestLedgerService_Apply_HistoryError(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(accountWithBalance("alice", 5))

	f.accounts.On("Update", ctx, "alice").Return(nil)
	f.history.On("Record", ctx, mock.Anything).Return(errors.New("disk full"))

	_, err := f.service.Credit(ctx, f.uow, "alice", decimal.NewFromInt(1), models.TransactionTypeDailyBonus, "daily bonus")

	require.Error(t, err)
	assert.False(t, IsDomainError(err))
	f.publisher.AssertNotCalled(t, "Publish")
}

func TestLedgerService_GainXP(t *testing.T) {
	ctx := context.Background()

	t.Run("level up publishes event", func(t *testing.T) {
		account := accountWithBalance("alice", 0)
		account.XP = 90
		f := newLedgerFixture(account)
		f.accounts.On("Update", ctx, "alice").Return(nil)
		f.publisher.On("Publish", events.LevelUpEvent{AccountID: "alice", OldLevel: 1, NewLevel: 2}).Return()

		result, err := f.service.GainXP(ctx, f.uow, "alice", 15)

		require.NoError(t, err)
		assert.True(t, result.LeveledUp)
		assert.Equal(t, 2, result.NewLevel)
		assert.Equal(t, int64(5), f.accounts.Account("alice").XP)
		f.publisher.AssertExpectations(t)
	})

	t.Run("no level up", func(t *testing.T) {
		f := newLedgerFixture(accountWithBalance("alice", 0))
		f.accounts.On("Update", ctx, "alice").Return(nil)

		result, err := f.service.GainXP(ctx, f.uow, "alice", 15)

		require.NoError(t, err)
		assert.False(t, result.LeveledUp)
		f.publisher.AssertNotCalled(t, "Publish")
	})

	t.Run("negative amount", func(t *testing.T) {
		f := newLedgerFixture(accountWithBalance("alice", 0))

		_, err := f.service.GainXP(ctx, f.uow, "alice", -1)

		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestLedgerService_MarkActivity(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(accountWithBalance("alice", 0))
	f.accounts.On("Update", ctx, "alice").Return(nil)

	outcome, err := f.service.MarkActivity(ctx, f.uow, "alice", ledgerNow)
	require.NoError(t, err)
	assert.True(t, outcome.Counted)

	// Within the cooldown
	outcome, err = f.service.MarkActivity(ctx, f.uow, "alice", ledgerNow.Add(10*time.Second))
	require.NoError(t, err)
	assert.False(t, outcome.Counted)

	// Same day, cooldown elapsed
	outcome, err = f.service.MarkActivity(ctx, f.uow, "alice", ledgerNow.Add(31*time.Second))
	require.NoError(t, err)
	assert.True(t, outcome.Counted)

	// Next day
	outcome, err = f.service.MarkActivity(ctx, f.uow, "alice", ledgerNow.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, outcome.Counted)

	account := f.accounts.Account("alice")
	assert.Equal(t, int64(3), account.MessagesSent)
	assert.Equal(t, 2, account.DaysActive)
	assert.Equal(t, int64(3), account.XP)
	assert.Equal(t, CalendarDay(ledgerNow.Add(24*time.Hour)), account.LastActiveDay)
}
