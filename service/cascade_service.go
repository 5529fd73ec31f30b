package service

import (
	"context"
	"fmt"
	"time"

	"roombot/config"
	"roombot/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// CascadeResult describes one distribution up the referral chain
type CascadeResult struct {
	Hops   []models.CascadeHop
	Streak int
	Total  decimal.Decimal
}

type cascadeService struct {
	economy  config.Economy
	scorer   *Scorer
	ledger   LedgerService
	referral ReferralService
}

// NewCascadeService creates a new cascade reward service
func NewCascadeService(economy config.Economy, scorer *Scorer, ledger LedgerService, referral ReferralService) CascadeService {
	return &cascadeService{
		economy:  economy,
		scorer:   scorer,
		ledger:   ledger,
		referral: referral,
	}
}

// Distribute updates the direct inviter's streak, then walks the parent chain
// crediting a halving reward. The streak multiplier applies to the first hop only.
// The walk stops at a root, below the reward floor, or at the depth cap.
func (s *cascadeService) Distribute(ctx context.Context, uow UnitOfWork, directInviterID string, baseReward decimal.Decimal, now time.Time) (*CascadeResult, error) {
	if !baseReward.IsPositive() {
		return nil, ErrInvalidAmount.Withf("cascade reward must be positive, got %s", baseReward)
	}

	result := &CascadeResult{Total: decimal.Zero}
	_, err := uow.AccountRepository().Update(ctx, directInviterID, func(a *models.Account) error {
		if a.LastInviteSuccessAt != nil && now.Sub(*a.LastInviteSuccessAt) < s.economy.StreakWindow {
			a.InviteStreak++
		} else {
			a.InviteStreak = 1
		}
		a.LastInviteSuccessAt = &now
		result.Streak = a.InviteStreak
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update invite streak: %w", err)
	}

	amount := baseReward.Mul(s.scorer.StreakMultiplier(result.Streak))
	current := directInviterID
	two := decimal.NewFromInt(2)
	visited := make(map[string]bool)

	for depth := 0; depth < s.economy.CascadeMaxDepth; depth++ {
		if amount.LessThan(s.economy.CascadeFloor) || visited[current] {
			break
		}
		visited[current] = true

		if _, err := s.ledger.Credit(ctx, uow, current, amount, models.TransactionTypeCascadeReward, fmt.Sprintf("cascade depth %d", depth)); err != nil {
			return nil, fmt.Errorf("failed to credit cascade hop %d: %w", depth, err)
		}
		result.Hops = append(result.Hops, models.CascadeHop{AccountID: current, Depth: depth, Amount: amount})
		result.Total = result.Total.Add(amount)

		parent, err := s.referral.ParentOf(ctx, uow, current)
		if err != nil {
			return nil, err
		}
		if parent == "" {
			break
		}
		current = parent
		amount = amount.Div(two)
	}

	log.WithFields(log.Fields{
		"inviter": directInviterID,
		"streak":  result.Streak,
		"hops":    len(result.Hops),
		"total":   result.Total.String(),
	}).Info("Cascade reward distributed")

	return result, nil
}
