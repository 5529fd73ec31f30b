package service

import (
	"context"
	"fmt"
	"time"

	"roombot/config"
	"roombot/events"
	"roombot/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type duelService struct {
	economy config.Economy
	scorer  *Scorer
	ledger  LedgerService
	rnd     RandomSource
}

// NewDuelService creates a new duel service
func NewDuelService(economy config.Economy, scorer *Scorer, ledger LedgerService, rnd RandomSource) DuelService {
	return &duelService{
		economy: economy,
		scorer:  scorer,
		ledger:  ledger,
		rnd:     rnd,
	}
}

// Create validates the stake, escrows it from the challenger and opens the duel
func (s *duelService) Create(ctx context.Context, uow UnitOfWork, challengerID string, stake decimal.Decimal, now time.Time) (*models.WagerOutcome, error) {
	stake = models.RoundMoney(stake)
	if !stake.IsPositive() || stake.GreaterThan(s.economy.MaxStake) {
		return nil, ErrInvalidStake.Withf("stake must be between 0.01 and %s", s.economy.MaxStake.StringFixed(2))
	}

	wager := &models.Wager{
		ID:           uuid.NewString(),
		ChallengerID: challengerID,
		Stake:        stake,
		State:        models.WagerStateOpen,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.economy.WagerTTL),
	}

	account, err := s.ledger.Apply(ctx, uow, challengerID, models.BalanceChange{
		Delta:     stake.Neg(),
		Type:      models.TransactionTypeWagerEscrow,
		Reason:    "duel escrow",
		RelatedID: wager.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := uow.WagerRepository().Create(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to create wager: %w", err)
	}

	uow.EventBus().Publish(events.WagerCreatedEvent{
		WagerID:      wager.ID,
		ChallengerID: challengerID,
		Stake:        stake,
	})

	log.WithFields(log.Fields{
		"wagerID":    wager.ID,
		"challenger": challengerID,
		"stake":      stake.String(),
		"expiresAt":  wager.ExpiresAt,
	}).Info("Duel created")

	return &models.WagerOutcome{Wager: wager, Balance: account.Balance}, nil
}

// Accept escrows the acceptor's stake, wins the open->accepted transition and
// settles synchronously. Losing the transition refunds the acceptor.
func (s *duelService) Accept(ctx context.Context, uow UnitOfWork, wagerID, acceptorID string, now time.Time) (*models.SettlementOutcome, error) {
	wagers := uow.WagerRepository()

	wager, err := wagers.GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, ErrWagerNotFound
	}
	if wager.ChallengerID == acceptorID {
		return nil, ErrSelfAccept
	}
	if wager.IsOpen() && wager.IsExpired(now) {
		if _, err := s.Expire(ctx, uow, wagerID, now); err != nil {
			return nil, err
		}
		return nil, ErrWagerExpired
	}
	if err := closedStateError(wager.State); err != nil {
		return nil, err
	}

	if _, err := s.ledger.EnsureAccount(ctx, uow, acceptorID, now); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Apply(ctx, uow, acceptorID, models.BalanceChange{
		Delta:     wager.Stake.Neg(),
		Type:      models.TransactionTypeWagerEscrow,
		Reason:    "duel escrow",
		RelatedID: wagerID,
	}); err != nil {
		return nil, err
	}

	acceptor := acceptorID
	won, err := wagers.TransitionState(ctx, models.WagerTransition{
		WagerID:    wagerID,
		From:       models.WagerStateOpen,
		To:         models.WagerStateAccepted,
		At:         now,
		AcceptorID: &acceptor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to accept wager: %w", err)
	}
	if !won {
		if _, err := s.ledger.Apply(ctx, uow, acceptorID, models.BalanceChange{
			Delta:     wager.Stake,
			Type:      models.TransactionTypeWagerRefund,
			Reason:    "duel already taken",
			RelatedID: wagerID,
		}); err != nil {
			return nil, err
		}
		return nil, ErrWagerAlreadyAccepted
	}

	wager.State = models.WagerStateAccepted
	wager.AcceptorID = &acceptor
	wager.AcceptedAt = &now
	return s.settle(ctx, uow, wager, now)
}

// settle awards XP to both sides, flips the coin and pays the winner both stakes
func (s *duelService) settle(ctx context.Context, uow UnitOfWork, wager *models.Wager, now time.Time) (*models.SettlementOutcome, error) {
	accounts := uow.AccountRepository()
	challengerID := wager.ChallengerID
	acceptorID := *wager.AcceptorID

	challenger, err := accounts.GetByID(ctx, challengerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenger: %w", err)
	}
	acceptor, err := accounts.GetByID(ctx, acceptorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get acceptor: %w", err)
	}
	if challenger == nil || acceptor == nil {
		return nil, ErrAccountNotFound
	}

	outcome := &models.SettlementOutcome{
		Wager:        wager,
		Stake:        wager.Stake,
		Payout:       wager.Stake.Mul(decimal.NewFromInt(2)),
		ChallengerXP: s.scorer.WagerXP(wager.Stake, s.scorer.Loveliness(challenger, now)),
		AcceptorXP:   s.scorer.WagerXP(wager.Stake, s.scorer.Loveliness(acceptor, now)),
	}

	if outcome.ChallengerLevel, err = s.ledger.GainXP(ctx, uow, challengerID, outcome.ChallengerXP); err != nil {
		return nil, err
	}
	if outcome.AcceptorLevel, err = s.ledger.GainXP(ctx, uow, acceptorID, outcome.AcceptorXP); err != nil {
		return nil, err
	}

	if s.rnd.IntN(2) == 0 {
		outcome.WinnerID, outcome.LoserID = challengerID, acceptorID
	} else {
		outcome.WinnerID, outcome.LoserID = acceptorID, challengerID
	}

	if _, err := s.ledger.Apply(ctx, uow, outcome.WinnerID, models.BalanceChange{
		Delta:     outcome.Payout,
		Type:      models.TransactionTypeWagerPayout,
		Reason:    "duel won",
		Earned:    wager.Stake,
		RelatedID: wager.ID,
	}); err != nil {
		return nil, err
	}
	if _, err := accounts.Update(ctx, outcome.WinnerID, func(a *models.Account) error {
		a.WagersWon++
		return nil
	}); err != nil {
		return nil, err
	}
	if _, err := accounts.Update(ctx, outcome.LoserID, func(a *models.Account) error {
		a.WagersLost++
		a.TotalSpent = a.TotalSpent.Add(wager.Stake)
		return nil
	}); err != nil {
		return nil, err
	}

	winner := outcome.WinnerID
	settled, err := uow.WagerRepository().TransitionState(ctx, models.WagerTransition{
		WagerID:  wager.ID,
		From:     models.WagerStateAccepted,
		To:       models.WagerStateSettled,
		At:       now,
		WinnerID: &winner,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle wager: %w", err)
	}
	if !settled {
		return nil, fmt.Errorf("wager %s left the accepted state during settlement", wager.ID)
	}
	wager.State = models.WagerStateSettled
	wager.WinnerID = &winner
	wager.ResolvedAt = &now

	uow.EventBus().Publish(events.WagerSettledEvent{
		WagerID:  wager.ID,
		WinnerID: outcome.WinnerID,
		LoserID:  outcome.LoserID,
		Stake:    wager.Stake,
	})

	log.WithFields(log.Fields{
		"wagerID": wager.ID,
		"winner":  outcome.WinnerID,
		"loser":   outcome.LoserID,
		"stake":   wager.Stake.String(),
	}).Info("Duel settled")

	return outcome, nil
}

// Cancel closes an open duel on the challenger's request and refunds the stake
func (s *duelService) Cancel(ctx context.Context, uow UnitOfWork, wagerID, requesterID string, now time.Time) (*models.WagerOutcome, error) {
	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, ErrWagerNotFound
	}
	if wager.ChallengerID != requesterID {
		return nil, ErrNotChallenger
	}
	if wager.IsOpen() && wager.IsExpired(now) {
		if _, err := s.Expire(ctx, uow, wagerID, now); err != nil {
			return nil, err
		}
		return nil, ErrWagerExpired
	}
	if err := closedStateError(wager.State); err != nil {
		return nil, err
	}

	outcome, err := s.close(ctx, uow, wager, models.WagerStateCancelled, "duel cancelled", now)
	if err != nil {
		return nil, err
	}
	if outcome == nil {
		// Someone else moved the wager out of open first
		return nil, ErrWagerAlreadyAccepted
	}
	return outcome, nil
}

// Expire refunds an open duel whose window passed. Returns a nil outcome
// when the wager is gone, no longer open or not yet expired.
func (s *duelService) Expire(ctx context.Context, uow UnitOfWork, wagerID string, now time.Time) (*models.WagerOutcome, error) {
	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil || !wager.IsOpen() || !wager.IsExpired(now) {
		return nil, nil
	}
	return s.close(ctx, uow, wager, models.WagerStateExpired, "duel expired", now)
}

// close moves an open wager to a terminal state and refunds the challenger exactly once
func (s *duelService) close(ctx context.Context, uow UnitOfWork, wager *models.Wager, to models.WagerState, reason string, now time.Time) (*models.WagerOutcome, error) {
	closed, err := uow.WagerRepository().TransitionState(ctx, models.WagerTransition{
		WagerID: wager.ID,
		From:    models.WagerStateOpen,
		To:      to,
		At:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to close wager: %w", err)
	}
	if !closed {
		return nil, nil
	}

	account, err := s.ledger.Apply(ctx, uow, wager.ChallengerID, models.BalanceChange{
		Delta:     wager.Stake,
		Type:      models.TransactionTypeWagerRefund,
		Reason:    reason,
		RelatedID: wager.ID,
	})
	if err != nil {
		return nil, err
	}

	wager.State = to
	wager.ResolvedAt = &now

	uow.EventBus().Publish(events.WagerClosedEvent{
		WagerID:      wager.ID,
		ChallengerID: wager.ChallengerID,
		State:        to,
		Refund:       wager.Stake,
	})

	log.WithFields(log.Fields{
		"wagerID":    wager.ID,
		"challenger": wager.ChallengerID,
		"state":      to,
	}).Info("Duel closed and refunded")

	return &models.WagerOutcome{Wager: wager, Balance: account.Balance}, nil
}

// closedStateError maps a non-open state to the error reported to the caller
func closedStateError(state models.WagerState) error {
	switch state {
	case models.WagerStateOpen:
		return nil
	case models.WagerStateAccepted, models.WagerStateSettled:
		return ErrWagerAlreadyAccepted
	case models.WagerStateExpired:
		return ErrWagerExpired
	default:
		return ErrWagerClosed
	}
}
