package service

import (
	"context"
	"errors"
	"time"

	"roombot/events"
	"roombot/models"

	"github.com/shopspring/decimal"
)

// ErrDuplicateInviteCode is returned by InviteRepository.Create when the code is taken
var ErrDuplicateInviteCode = errors.New("invite code already exists")

// AccountRepository defines the interface for account data access.
// Lookups return nil, nil when the account does not exist.
type AccountRepository interface {
	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// GetOrCreate returns the account, creating a fresh one on first interaction
	GetOrCreate(ctx context.Context, id string, now time.Time) (*models.Account, error)

	// Update atomically reads, modifies and writes one account. fn receives a
	// private copy; if it returns an error nothing is written and the error is
	// returned unchanged. Returns ErrAccountNotFound for unknown ids.
	Update(ctx context.Context, id string, fn func(account *models.Account) error) (*models.Account, error)

	// GetAll returns all accounts
	GetAll(ctx context.Context) ([]*models.Account, error)

	// ClearExpiredBlacklists resets blacklisted_until that lies before now
	ClearExpiredBlacklists(ctx context.Context, now time.Time) (int, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByAccount returns the most recent history for an account, newest first
	GetByAccount(ctx context.Context, accountID string, limit int) ([]*models.BalanceHistory, error)
}

// InviteRepository stores invite links
type InviteRepository interface {
	// Create stores a new link, returning ErrDuplicateInviteCode if the code exists
	Create(ctx context.Context, link *models.InviteLink) error

	// GetByCode retrieves a link by code
	GetByCode(ctx context.Context, code string) (*models.InviteLink, error)

	// GetActive returns the active link for an owner in a group
	GetActive(ctx context.Context, ownerID, groupID string) (*models.InviteLink, error)

	// DeactivateActive deactivates every active link of the owner in the group
	DeactivateActive(ctx context.Context, ownerID, groupID string) (int, error)

	// RecordUse increments the use counter and appends the redeemer
	RecordUse(ctx context.Context, code, redeemerID string) error

	// Count returns the number of links ever issued
	Count(ctx context.Context) (int, error)
}

// RelationshipRepository stores referral edges
type RelationshipRepository interface {
	// GetByChild returns the edge pointing from child to its parent
	GetByChild(ctx context.Context, childID string) (*models.Relationship, error)

	// Create records the edge if the child has no parent yet and reports whether it did
	Create(ctx context.Context, rel *models.Relationship) (bool, error)

	// MarkActivated sets activated_at once and reports whether this call set it
	MarkActivated(ctx context.Context, childID string, at time.Time) (bool, error)
}

// WagerRepository stores duels
type WagerRepository interface {
	// Create stores a new wager
	Create(ctx context.Context, wager *models.Wager) error

	// GetByID retrieves a wager by its ID
	GetByID(ctx context.Context, id string) (*models.Wager, error)

	// TransitionState is a compare-and-set on the wager state. It reports
	// whether this caller performed the transition.
	TransitionState(ctx context.Context, transition models.WagerTransition) (bool, error)

	// GetExpiredOpen returns open wagers whose expiry lies before now
	GetExpiredOpen(ctx context.Context, now time.Time) ([]*models.Wager, error)

	// CountOpen returns the number of open wagers
	CountOpen(ctx context.Context) (int, error)

	// PurgeClosed removes terminal wagers resolved before the cutoff
	PurgeClosed(ctx context.Context, before time.Time) (int, error)
}

// ChallengeRepository stores pending verification challenges, one per account
type ChallengeRepository interface {
	// GetByAccount returns the pending challenge of an account
	GetByAccount(ctx context.Context, accountID string) (*models.VerificationChallenge, error)

	// Save creates or replaces the challenge of an account
	Save(ctx context.Context, challenge *models.VerificationChallenge) error

	// Delete removes the challenge and reports whether one existed
	Delete(ctx context.Context, accountID string) (bool, error)

	// DeleteExpired removes challenges that expired before now
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository accessors
	AccountRepository() AccountRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	InviteRepository() InviteRepository
	RelationshipRepository() RelationshipRepository
	WagerRepository() WagerRepository
	ChallengeRepository() ChallengeRepository

	// EventBus returns the transactional event bus
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// LedgerService owns every balance and XP mutation
type LedgerService interface {
	// EnsureAccount returns the account, creating it on first interaction
	EnsureAccount(ctx context.Context, uow UnitOfWork, accountID string, now time.Time) (*models.Account, error)

	// Apply performs one balance mutation, records history and publishes the change
	Apply(ctx context.Context, uow UnitOfWork, accountID string, change models.BalanceChange) (*models.Account, error)

	// Credit adds a positive amount
	Credit(ctx context.Context, uow UnitOfWork, accountID string, amount decimal.Decimal, txType models.TransactionType, reason string) (*models.Account, error)

	// Debit removes a positive amount, failing with ErrInsufficientFunds
	Debit(ctx context.Context, uow UnitOfWork, accountID string, amount decimal.Decimal, txType models.TransactionType, reason string) (*models.Account, error)

	// GainXP adds XP and applies any level-ups
	GainXP(ctx context.Context, uow UnitOfWork, accountID string, amount int64) (*models.LevelUp, error)

	// MarkActivity counts a message subject to the message cooldown
	MarkActivity(ctx context.Context, uow UnitOfWork, accountID string, now time.Time) (*models.ActivityOutcome, error)
}

// ReferralService manages invite links and the referral forest
type ReferralService interface {
	// IssueInvite deactivates the owner's active link in the group and issues a new one
	IssueInvite(ctx context.Context, uow UnitOfWork, ownerID, groupID string, now time.Time) (*models.InviteLink, error)

	// GetOrIssueInvite returns the active link, issuing one if none exists
	GetOrIssueInvite(ctx context.Context, uow UnitOfWork, ownerID, groupID string, now time.Time) (*models.InviteLink, error)

	// ValidateRedemption checks that the candidate may redeem the code
	ValidateRedemption(ctx context.Context, uow UnitOfWork, code, candidateID string) (*models.InviteLink, error)

	// Redeem records the referral edge and the use of the code
	Redeem(ctx context.Context, uow UnitOfWork, code, candidateID string, now time.Time) (*models.InviteLink, error)

	// ParentOf returns the parent of an account, "" for roots
	ParentOf(ctx context.Context, uow UnitOfWork, accountID string) (string, error)
}

// CascadeService distributes invite rewards up the referral chain
type CascadeService interface {
	// Distribute updates the direct inviter's streak and credits the chain
	Distribute(ctx context.Context, uow UnitOfWork, directInviterID string, baseReward decimal.Decimal, now time.Time) (*CascadeResult, error)
}

// VerificationService runs the anti-automation challenge
type VerificationService interface {
	// Issue creates a challenge for the account
	Issue(ctx context.Context, uow UnitOfWork, accountID, inviteCode string, now time.Time) (*models.VerificationChallenge, error)

	// Submit checks an answer against the pending challenge
	Submit(ctx context.Context, uow UnitOfWork, accountID, answer string, now time.Time) (*models.VerificationOutcome, error)

	// SweepExpired discards expired challenges
	SweepExpired(ctx context.Context, uow UnitOfWork, now time.Time) (int, error)
}

// DuelService runs the wager state machine
type DuelService interface {
	// Create opens a duel and escrows the stake
	Create(ctx context.Context, uow UnitOfWork, challengerID string, stake decimal.Decimal, now time.Time) (*models.WagerOutcome, error)

	// Accept takes the duel and settles it
	Accept(ctx context.Context, uow UnitOfWork, wagerID, acceptorID string, now time.Time) (*models.SettlementOutcome, error)

	// Cancel closes an open duel on the challenger's request
	Cancel(ctx context.Context, uow UnitOfWork, wagerID, requesterID string, now time.Time) (*models.WagerOutcome, error)

	// Expire closes an open duel whose window passed; nil outcome when nothing was done
	Expire(ctx context.Context, uow UnitOfWork, wagerID string, now time.Time) (*models.WagerOutcome, error)
}

// MilestoneService detects one-shot invite milestones
type MilestoneService interface {
	// CheckMilestones records and announces newly reached thresholds
	CheckMilestones(ctx context.Context, uow UnitOfWork, accountID string) ([]int, error)
}

// StatsService computes profiles, rankings and network totals
type StatsService interface {
	Profile(ctx context.Context, uow UnitOfWork, accountID string, now time.Time) (*models.Profile, error)
	Leaderboards(ctx context.Context, uow UnitOfWork, now time.Time) (*models.Leaderboards, error)
	NetworkStats(ctx context.Context, uow UnitOfWork) (*models.NetworkStats, error)
}

// Engine is the inbound event surface used by transports
type Engine interface {
	// Referral flow
	CurrentInvite(ctx context.Context, ownerID, groupID string) (*models.InviteLink, error)
	IssueInvite(ctx context.Context, ownerID, groupID string) (*models.InviteLink, error)
	RedeemInvite(ctx context.Context, code, accountID string) (*models.RedeemOutcome, error)
	SubmitVerificationAnswer(ctx context.Context, accountID, text string) (*models.VerificationOutcome, error)
	InvitedAccountJoinedGroup(ctx context.Context, accountID, groupID string) (*models.ActivationOutcome, error)
	AccountLeftGroup(ctx context.Context, accountID, groupID string) (*models.LeaveOutcome, error)

	// Activity and rewards
	AccountMessaged(ctx context.Context, accountID string) (*models.ActivityOutcome, error)
	ClaimDailyBonus(ctx context.Context, accountID string) (*models.DailyBonusOutcome, error)
	Gift(ctx context.Context, fromID, toID string, amount decimal.Decimal) (*models.GiftOutcome, error)

	// Duels
	CreateWager(ctx context.Context, accountID string, stake decimal.Decimal) (*models.WagerOutcome, error)
	AcceptWager(ctx context.Context, wagerID, accountID string) (*models.SettlementOutcome, error)
	CancelWager(ctx context.Context, wagerID, accountID string) (*models.WagerOutcome, error)

	// Reads
	Profile(ctx context.Context, accountID string) (*models.Profile, error)
	Leaderboards(ctx context.Context) (*models.Leaderboards, error)
	NetworkStats(ctx context.Context) (*models.NetworkStats, error)
	BalanceHistory(ctx context.Context, accountID string, limit int) ([]*models.BalanceHistory, error)

	// PeriodicSweep expires time-bounded entities; safe to call repeatedly
	PeriodicSweep(ctx context.Context, now time.Time) (*models.SweepOutcome, error)
}
