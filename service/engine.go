package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roombot/config"
	"roombot/events"
	"roombot/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// closedWagerRetention is how long settled, cancelled and expired duels stay
// queryable before the sweep purges them
const closedWagerRetention = time.Hour

// engine implements the Engine interface. Each inbound event runs in its own
// unit of work; events published during it are delivered after commit.
type engine struct {
	uowFactory UnitOfWorkFactory
	economy    config.Economy
	clock      Clock

	scorer       *Scorer
	ledger       LedgerService
	referral     ReferralService
	cascade      CascadeService
	verification VerificationService
	duels        DuelService
	milestones   MilestoneService
	stats        StatsService
}

// EngineOption customizes an engine
type EngineOption func(*engineOptions)

type engineOptions struct {
	clock Clock
	rnd   RandomSource
}

// WithClock sets the time source
func WithClock(clock Clock) EngineOption {
	return func(o *engineOptions) { o.clock = clock }
}

// WithRandom sets the randomness used for coin flips and challenges
func WithRandom(rnd RandomSource) EngineOption {
	return func(o *engineOptions) { o.rnd = rnd }
}

// NewEngine wires the engine components over a unit of work factory
func NewEngine(uowFactory UnitOfWorkFactory, economy config.Economy, opts ...EngineOption) Engine {
	o := &engineOptions{
		clock: SystemClock(),
		rnd:   DefaultRandom(),
	}
	for _, opt := range opts {
		opt(o)
	}

	scorer := NewScorer(economy)
	ledger := NewLedgerService(economy, scorer)
	referral := NewReferralService()

	return &engine{
		uowFactory:   uowFactory,
		economy:      economy,
		clock:        o.clock,
		scorer:       scorer,
		ledger:       ledger,
		referral:     referral,
		cascade:      NewCascadeService(economy, scorer, ledger, referral),
		verification: NewVerificationService(economy, o.rnd),
		duels:        NewDuelService(economy, scorer, ledger, o.rnd),
		milestones:   NewMilestoneService(economy.Milestones),
		stats:        NewStatsService(scorer),
	}
}

// inUnitOfWork runs fn in a fresh unit of work and commits on success.
// Errors listed in commitOn are returned after committing, so compensating
// side effects such as refunds persist.
func (e *engine) inUnitOfWork(ctx context.Context, fn func(uow UnitOfWork) error, commitOn ...error) error {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	fnErr := fn(uow)
	if fnErr != nil && !matchesAny(fnErr, commitOn) {
		return fnErr
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return fnErr
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// CurrentInvite returns the owner's active link in the group, issuing one if needed
func (e *engine) CurrentInvite(ctx context.Context, ownerID, groupID string) (*models.InviteLink, error) {
	now := e.clock.Now()
	var link *models.InviteLink
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		if _, err := e.ledger.EnsureAccount(ctx, uow, ownerID, now); err != nil {
			return err
		}
		var err error
		link, err = e.referral.GetOrIssueInvite(ctx, uow, ownerID, groupID, now)
		return err
	})
	return link, err
}

// IssueInvite replaces the owner's active link in the group
func (e *engine) IssueInvite(ctx context.Context, ownerID, groupID string) (*models.InviteLink, error) {
	now := e.clock.Now()
	var link *models.InviteLink
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		if _, err := e.ledger.EnsureAccount(ctx, uow, ownerID, now); err != nil {
			return err
		}
		var err error
		link, err = e.referral.IssueInvite(ctx, uow, ownerID, groupID, now)
		return err
	})
	return link, err
}

// RedeemInvite validates the code and starts the verification challenge.
// The referral edge is only recorded once the challenge is answered.
func (e *engine) RedeemInvite(ctx context.Context, code, accountID string) (*models.RedeemOutcome, error) {
	now := e.clock.Now()
	var outcome *models.RedeemOutcome
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		if _, err := e.ledger.EnsureAccount(ctx, uow, accountID, now); err != nil {
			return err
		}
		link, err := e.referral.ValidateRedemption(ctx, uow, code, accountID)
		if err != nil {
			return err
		}
		challenge, err := e.verification.Issue(ctx, uow, accountID, link.Code, now)
		if err != nil {
			return err
		}
		outcome = &models.RedeemOutcome{
			InviteCode: link.Code,
			OwnerID:    link.OwnerID,
			Prompt:     challenge.Prompt(),
			ExpiresAt:  challenge.ExpiresAt,
		}
		return nil
	})
	return outcome, err
}

// SubmitVerificationAnswer checks the answer and, once verified, records the referral edge
func (e *engine) SubmitVerificationAnswer(ctx context.Context, accountID, text string) (*models.VerificationOutcome, error) {
	now := e.clock.Now()
	var outcome *models.VerificationOutcome
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		if _, err := e.ledger.EnsureAccount(ctx, uow, accountID, now); err != nil {
			return err
		}
		var err error
		outcome, err = e.verification.Submit(ctx, uow, accountID, text, now)
		if err != nil {
			return err
		}
		if !outcome.Verified {
			return nil
		}

		link, err := e.referral.Redeem(ctx, uow, outcome.InviteCode, accountID, now)
		if err != nil {
			return err
		}
		outcome.OwnerID = link.OwnerID
		outcome.GroupID = link.GroupID
		return nil
	}, ErrChallengeExpired, ErrInviteNotFound, ErrInviteInactive, ErrAlreadyLinked, ErrReferralCycle)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// InvitedAccountJoinedGroup activates the referral edge once and pays the cascade
func (e *engine) InvitedAccountJoinedGroup(ctx context.Context, accountID, groupID string) (*models.ActivationOutcome, error) {
	now := e.clock.Now()
	var outcome *models.ActivationOutcome
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		rel, err := uow.RelationshipRepository().GetByChild(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to get relationship: %w", err)
		}
		if rel == nil || rel.GroupID != groupID {
			return ErrNotInvited
		}

		outcome = &models.ActivationOutcome{InviterID: rel.ParentID, TotalAwarded: decimal.Zero}
		activated, err := uow.RelationshipRepository().MarkActivated(ctx, accountID, now)
		if err != nil {
			return fmt.Errorf("failed to activate relationship: %w", err)
		}
		if !activated {
			return nil
		}
		outcome.Activated = true

		if _, err := e.ledger.EnsureAccount(ctx, uow, accountID, now); err != nil {
			return err
		}
		if _, err := e.ledger.EnsureAccount(ctx, uow, rel.ParentID, now); err != nil {
			return err
		}

		result, err := e.cascade.Distribute(ctx, uow, rel.ParentID, e.economy.InviteBaseReward, now)
		if err != nil {
			return err
		}
		outcome.InviteStreak = result.Streak
		outcome.Hops = result.Hops
		outcome.TotalAwarded = result.Total

		inviter, err := uow.AccountRepository().Update(ctx, rel.ParentID, func(a *models.Account) error {
			a.InvitesSuccessful++
			return nil
		})
		if err != nil {
			return err
		}
		outcome.InviterHeat = e.scorer.Heat(inviter, now)

		if outcome.Milestones, err = e.milestones.CheckMilestones(ctx, uow, rel.ParentID); err != nil {
			return err
		}

		uow.EventBus().Publish(events.InviteActivatedEvent{
			ChildID:      accountID,
			InviterID:    rel.ParentID,
			GroupID:      groupID,
			TotalAwarded: result.Total,
			Hops:         len(result.Hops),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// AccountLeftGroup penalises the inviter of an activated account that left
func (e *engine) AccountLeftGroup(ctx context.Context, accountID, groupID string) (*models.LeaveOutcome, error) {
	var outcome *models.LeaveOutcome
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		outcome = &models.LeaveOutcome{Penalty: decimal.Zero}
		rel, err := uow.RelationshipRepository().GetByChild(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to get relationship: %w", err)
		}
		if rel == nil || !rel.IsActivated() || rel.GroupID != groupID {
			return nil
		}

		before, err := uow.AccountRepository().GetByID(ctx, rel.ParentID)
		if err != nil {
			return fmt.Errorf("failed to get inviter: %w", err)
		}
		if before == nil {
			return nil
		}
		after, err := e.ledger.Apply(ctx, uow, rel.ParentID, models.BalanceChange{
			Delta:     e.economy.LeavePenalty().Neg(),
			Type:      models.TransactionTypeLeavePenalty,
			Reason:    "invited member left",
			Floor:     true,
			RelatedID: accountID,
		})
		if err != nil {
			return err
		}
		outcome.Penalized = true
		outcome.InviterID = rel.ParentID
		outcome.Penalty = before.Balance.Sub(after.Balance)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// AccountMessaged counts a message towards activity, XP and active days
func (e *engine) AccountMessaged(ctx context.Context, accountID string) (*models.ActivityOutcome, error) {
	now := e.clock.Now()
	var outcome *models.ActivityOutcome
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		if _, err := e.ledger.EnsureAccount(ctx, uow, accountID, now); err != nil {
			return err
		}
		var err error
		outcome, err = e.ledger.MarkActivity(ctx, uow, accountID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ClaimDailyBonus credits base + level and active day bonuses once per cooldown
func (e *engine) ClaimDailyBonus(ctx context.Context, accountID string) (*models.DailyBonusOutcome, error) {
	now := e.clock.Now()
	var outcome *models.DailyBonusOutcome
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		if _, err := e.ledger.EnsureAccount(ctx, uow, accountID, now); err != nil {
			return err
		}

		var level, daysActive int
		_, err := uow.AccountRepository().Update(ctx, accountID, func(a *models.Account) error {
			if a.LastDailyBonusAt != nil {
				next := a.LastDailyBonusAt.Add(e.economy.DailyBonusCooldown)
				if now.Before(next) {
					return ErrDailyBonusCooldown.Withf("daily bonus available in %s", next.Sub(now).Round(time.Minute))
				}
			}
			a.LastDailyBonusAt = &now
			level = a.Level
			daysActive = a.DaysActive
			return nil
		})
		if err != nil {
			return err
		}

		outcome = &models.DailyBonusOutcome{
			Base:       e.economy.DailyBonusBase,
			LevelBonus: e.economy.DailyBonusPerLevel.Mul(decimal.NewFromInt(int64(level))),
			Streak:     decimal.NewFromInt(int64(min(daysActive, e.economy.DailyBonusMaxStreak))),
			XP:         e.economy.DailyBonusXP,
			NextClaim:  now.Add(e.economy.DailyBonusCooldown),
		}
		outcome.Total = outcome.Base.Add(outcome.LevelBonus).Add(outcome.Streak)

		if _, err := e.ledger.Credit(ctx, uow, accountID, outcome.Total, models.TransactionTypeDailyBonus, "daily bonus"); err != nil {
			return err
		}
		outcome.LevelUp, err = e.ledger.GainXP(ctx, uow, accountID, outcome.XP)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Gift moves currency between two accounts
func (e *engine) Gift(ctx context.Context, fromID, toID string, amount decimal.Decimal) (*models.GiftOutcome, error) {
	amount = models.RoundMoney(amount)
	if !amount.IsPositive() || amount.GreaterThan(e.economy.MaxGift) {
		return nil, ErrInvalidGift.Withf("gift must be between 0.01 and %s", e.economy.MaxGift.StringFixed(2))
	}
	if fromID == toID {
		return nil, ErrSelfGift
	}

	now := e.clock.Now()
	var outcome *models.GiftOutcome
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		if _, err := e.ledger.EnsureAccount(ctx, uow, fromID, now); err != nil {
			return err
		}
		if _, err := e.ledger.EnsureAccount(ctx, uow, toID, now); err != nil {
			return err
		}

		from, err := e.ledger.Debit(ctx, uow, fromID, amount, models.TransactionTypeGiftSent, "gift to "+toID)
		if err != nil {
			return err
		}
		to, err := e.ledger.Credit(ctx, uow, toID, amount, models.TransactionTypeGiftReceived, "gift from "+fromID)
		if err != nil {
			return err
		}

		outcome = &models.GiftOutcome{
			FromID:      fromID,
			ToID:        toID,
			Amount:      amount,
			FromBalance: from.Balance,
			ToBalance:   to.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// CreateWager opens a duel with the stake held in escrow
func (e *engine) CreateWager(ctx context.Context, accountID string, stake decimal.Decimal) (*models.WagerOutcome, error) {
	now := e.clock.Now()
	var outcome *models.WagerOutcome
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		if _, err := e.ledger.EnsureAccount(ctx, uow, accountID, now); err != nil {
			return err
		}
		var err error
		outcome, err = e.duels.Create(ctx, uow, accountID, stake, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// AcceptWager takes and settles a duel
func (e *engine) AcceptWager(ctx context.Context, wagerID, accountID string) (*models.SettlementOutcome, error) {
	now := e.clock.Now()
	var outcome *models.SettlementOutcome
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		outcome, err = e.duels.Accept(ctx, uow, wagerID, accountID, now)
		return err
	}, ErrWagerExpired)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// CancelWager closes the challenger's open duel and refunds the stake
func (e *engine) CancelWager(ctx context.Context, wagerID, accountID string) (*models.WagerOutcome, error) {
	now := e.clock.Now()
	var outcome *models.WagerOutcome
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		outcome, err = e.duels.Cancel(ctx, uow, wagerID, accountID, now)
		return err
	}, ErrWagerExpired)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Profile returns an account with its computed scores
func (e *engine) Profile(ctx context.Context, accountID string) (*models.Profile, error) {
	var profile *models.Profile
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		profile, err = e.stats.Profile(ctx, uow, accountID, e.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Leaderboards returns the current rankings
func (e *engine) Leaderboards(ctx context.Context) (*models.Leaderboards, error) {
	var boards *models.Leaderboards
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		boards, err = e.stats.Leaderboards(ctx, uow, e.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return boards, nil
}

// NetworkStats returns totals across the network
func (e *engine) NetworkStats(ctx context.Context) (*models.NetworkStats, error) {
	var stats *models.NetworkStats
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		stats, err = e.stats.NetworkStats(ctx, uow)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// BalanceHistory returns the most recent balance changes of an account
func (e *engine) BalanceHistory(ctx context.Context, accountID string, limit int) ([]*models.BalanceHistory, error) {
	var history []*models.BalanceHistory
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		history, err = uow.BalanceHistoryRepository().GetByAccount(ctx, accountID, limit)
		if err != nil {
			return fmt.Errorf("failed to get balance history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// PeriodicSweep expires overdue duels (refunding each once), discards expired
// challenges, clears elapsed blacklists and purges old closed duels.
// Each duel expires in its own unit of work so one failure does not block the rest.
func (e *engine) PeriodicSweep(ctx context.Context, now time.Time) (*models.SweepOutcome, error) {
	outcome := &models.SweepOutcome{}

	var expired []*models.Wager
	err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		expired, err = uow.WagerRepository().GetExpiredOpen(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to get expired wagers: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var sweepErr error
	for _, wager := range expired {
		err := e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
			result, err := e.duels.Expire(ctx, uow, wager.ID, now)
			if err != nil {
				return err
			}
			if result != nil {
				outcome.WagersExpired++
			}
			return nil
		})
		if err != nil {
			log.WithFields(log.Fields{
				"wagerID": wager.ID,
				"error":   err,
			}).Error("Failed to expire wager")
			sweepErr = errors.Join(sweepErr, err)
		}
	}

	err = e.inUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		if outcome.ChallengesExpired, err = e.verification.SweepExpired(ctx, uow, now); err != nil {
			return err
		}
		if outcome.BlacklistsCleared, err = uow.AccountRepository().ClearExpiredBlacklists(ctx, now); err != nil {
			return fmt.Errorf("failed to clear blacklists: %w", err)
		}
		if _, err := uow.WagerRepository().PurgeClosed(ctx, now.Add(-closedWagerRetention)); err != nil {
			return fmt.Errorf("failed to purge closed wagers: %w", err)
		}
		return nil
	})
	if err != nil {
		sweepErr = errors.Join(sweepErr, err)
	}

	if outcome.WagersExpired+outcome.ChallengesExpired+outcome.BlacklistsCleared > 0 {
		log.WithFields(log.Fields{
			"wagersExpired":     outcome.WagersExpired,
			"challengesExpired": outcome.ChallengesExpired,
			"blacklistsCleared": outcome.BlacklistsCleared,
		}).Info("Periodic sweep completed")
	}
	return outcome, sweepErr
}
