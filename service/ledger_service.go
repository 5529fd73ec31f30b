package service

import (
	"context"
	"fmt"
	"time"

	"roombot/config"
	"roombot/events"
	"roombot/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type ledgerService struct {
	economy config.Economy
	scorer  *Scorer
}

// NewLedgerService creates a new ledger service
func NewLedgerService(economy config.Economy, scorer *Scorer) LedgerService {
	return &ledgerService{
		economy: economy,
		scorer:  scorer,
	}
}

// EnsureAccount returns the account, creating it on first interaction
func (s *ledgerService) EnsureAccount(ctx context.Context, uow UnitOfWork, accountID string, now time.Time) (*models.Account, error) {
	if accountID == "" {
		return nil, ErrAccountNotFound.Withf("account id is empty")
	}
	account, err := uow.AccountRepository().GetOrCreate(ctx, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create account %s: %w", accountID, err)
	}
	return account, nil
}

// Apply performs one balance mutation under the account's lock
func (s *ledgerService) Apply(ctx context.Context, uow UnitOfWork, accountID string, change models.BalanceChange) (*models.Account, error) {
	var before, after decimal.Decimal
	account, err := uow.AccountRepository().Update(ctx, accountID, func(a *models.Account) error {
		before = a.Balance
		after = a.Balance.Add(change.Delta)
		if after.IsNegative() {
			if !change.Floor {
				return ErrInsufficientFunds.Withf("insufficient funds: have %s, need %s", a.Balance.StringFixed(2), change.Delta.Neg().StringFixed(2))
			}
			after = decimal.Zero
		}
		a.Balance = after
		a.TotalEarned = a.TotalEarned.Add(change.Earned)
		a.TotalSpent = a.TotalSpent.Add(change.Spent)
		return nil
	})
	if err != nil {
		return nil, err
	}

	history := &models.BalanceHistory{
		AccountID:       accountID,
		BalanceBefore:   before,
		BalanceAfter:    after,
		ChangeAmount:    after.Sub(before),
		TransactionType: change.Type,
		Reason:          change.Reason,
	}
	if change.RelatedID != "" {
		related := change.RelatedID
		history.RelatedID = &related
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account": accountID,
		"type":    change.Type,
		"change":  history.ChangeAmount.String(),
		"balance": after.String(),
		"reason":  change.Reason,
	}).Info("Balance changed")

	return account, nil
}

// Credit adds a positive amount; earning types count towards TotalEarned
func (s *ledgerService) Credit(ctx context.Context, uow UnitOfWork, accountID string, amount decimal.Decimal, txType models.TransactionType, reason string) (*models.Account, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount.Withf("credit amount must be positive, got %s", amount)
	}
	change := models.BalanceChange{Delta: amount, Type: txType, Reason: reason}
	if txType.CountsAsEarned() {
		change.Earned = amount
	}
	return s.Apply(ctx, uow, accountID, change)
}

// Debit removes a positive amount; spending types count towards TotalSpent
func (s *ledgerService) Debit(ctx context.Context, uow UnitOfWork, accountID string, amount decimal.Decimal, txType models.TransactionType, reason string) (*models.Account, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount.Withf("debit amount must be positive, got %s", amount)
	}
	change := models.BalanceChange{Delta: amount.Neg(), Type: txType, Reason: reason}
	if txType.CountsAsSpent() {
		change.Spent = amount
	}
	return s.Apply(ctx, uow, accountID, change)
}

// GainXP adds XP and evaluates level-ups in the same atomic update
func (s *ledgerService) GainXP(ctx context.Context, uow UnitOfWork, accountID string, amount int64) (*models.LevelUp, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount.Withf("xp gain must not be negative, got %d", amount)
	}

	result := &models.LevelUp{AccountID: accountID, XPGained: amount}
	_, err := uow.AccountRepository().Update(ctx, accountID, func(a *models.Account) error {
		result.OldLevel = a.Level
		a.XP += amount
		s.scorer.CheckLevelUp(a)
		result.NewLevel = a.Level
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.LeveledUp = result.NewLevel > result.OldLevel
	if result.LeveledUp {
		uow.EventBus().Publish(events.LevelUpEvent{
			AccountID: accountID,
			OldLevel:  result.OldLevel,
			NewLevel:  result.NewLevel,
		})
		log.WithFields(log.Fields{
			"account":  accountID,
			"oldLevel": result.OldLevel,
			"newLevel": result.NewLevel,
		}).Info("Account leveled up")
	}
	return result, nil
}

// MarkActivity counts one message if the cooldown elapsed: XP, message
// counter, and the active-day counter at most once per calendar day.
func (s *ledgerService) MarkActivity(ctx context.Context, uow UnitOfWork, accountID string, now time.Time) (*models.ActivityOutcome, error) {
	outcome := &models.ActivityOutcome{}
	levelUp := &models.LevelUp{AccountID: accountID}

	_, err := uow.AccountRepository().Update(ctx, accountID, func(a *models.Account) error {
		outcome.Counted = false
		if a.LastMessageXPAt != nil && now.Sub(*a.LastMessageXPAt) < s.economy.MessageCooldown {
			return nil
		}

		outcome.Counted = true
		a.MessagesSent++
		a.LastMessageXPAt = &now
		a.LastActiveAt = now
		if day := CalendarDay(now); a.LastActiveDay != day {
			a.DaysActive++
			a.LastActiveDay = day
		}

		levelUp.OldLevel = a.Level
		levelUp.XPGained = s.economy.MessageXP
		a.XP += s.economy.MessageXP
		s.scorer.CheckLevelUp(a)
		levelUp.NewLevel = a.Level
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Counted {
		levelUp.LeveledUp = levelUp.NewLevel > levelUp.OldLevel
		outcome.LevelUp = levelUp
		if levelUp.LeveledUp {
			uow.EventBus().Publish(events.LevelUpEvent{
				AccountID: accountID,
				OldLevel:  levelUp.OldLevel,
				NewLevel:  levelUp.NewLevel,
			})
		}
	}
	return outcome, nil
}
