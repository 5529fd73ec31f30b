package service

import (
	"context"
	"time"

	"roombot/events"
	"roombot/models"

	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository.
// Update applies fn to the account configured with SetAccount, mirroring the
// read-modify-write contract so services can be tested against it.
type MockAccountRepository struct {
	mock.Mock
	accounts map[string]*models.Account
}

// SetAccount stores the account that Update callbacks operate on
func (m *MockAccountRepository) SetAccount(account *models.Account) {
	if m.accounts == nil {
		m.accounts = make(map[string]*models.Account)
	}
	m.accounts[account.ID] = account
}

// Account returns the stored state after Update callbacks ran
func (m *MockAccountRepository) Account(id string) *models.Account {
	return m.accounts[id]
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetOrCreate(ctx context.Context, id string, now time.Time) (*models.Account, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, id string, fn func(account *models.Account) error) (*models.Account, error) {
	args := m.Called(ctx, id)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	stored, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	working := stored.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	m.accounts[id] = working
	return working.Clone(), nil
}

func (m *MockAccountRepository) GetAll(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

func (m *MockAccountRepository) ClearExpiredBlacklists(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByAccount(ctx context.Context, accountID string, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockInviteRepository is a mock implementation of InviteRepository
type MockInviteRepository struct {
	mock.Mock
}

func (m *MockInviteRepository) Create(ctx context.Context, link *models.InviteLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockInviteRepository) GetByCode(ctx context.Context, code string) (*models.InviteLink, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InviteLink), args.Error(1)
}

func (m *MockInviteRepository) GetActive(ctx context.Context, ownerID, groupID string) (*models.InviteLink, error) {
	args := m.Called(ctx, ownerID, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InviteLink), args.Error(1)
}

func (m *MockInviteRepository) DeactivateActive(ctx context.Context, ownerID, groupID string) (int, error) {
	args := m.Called(ctx, ownerID, groupID)
	return args.Int(0), args.Error(1)
}

func (m *MockInviteRepository) RecordUse(ctx context.Context, code, redeemerID string) error {
	args := m.Called(ctx, code, redeemerID)
	return args.Error(0)
}

func (m *MockInviteRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockRelationshipRepository is a mock implementation of RelationshipRepository
type MockRelationshipRepository struct {
	mock.Mock
}

func (m *MockRelationshipRepository) GetByChild(ctx context.Context, childID string) (*models.Relationship, error) {
	args := m.Called(ctx, childID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Relationship), args.Error(1)
}

func (m *MockRelationshipRepository) Create(ctx context.Context, rel *models.Relationship) (bool, error) {
	args := m.Called(ctx, rel)
	return args.Bool(0), args.Error(1)
}

func (m *MockRelationshipRepository) MarkActivated(ctx context.Context, childID string, at time.Time) (bool, error) {
	args := m.Called(ctx, childID, at)
	return args.Bool(0), args.Error(1)
}

// MockWagerRepository is a mock implementation of WagerRepository
type MockWagerRepository struct {
	mock.Mock
}

func (m *MockWagerRepository) Create(ctx context.Context, wager *models.Wager) error {
	args := m.Called(ctx, wager)
	return args.Error(0)
}

func (m *MockWagerRepository) GetByID(ctx context.Context, id string) (*models.Wager, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wager), args.Error(1)
}

func (m *MockWagerRepository) TransitionState(ctx context.Context, transition models.WagerTransition) (bool, error) {
	args := m.Called(ctx, transition)
	return args.Bool(0), args.Error(1)
}

func (m *MockWagerRepository) GetExpiredOpen(ctx context.Context, now time.Time) ([]*models.Wager, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Wager), args.Error(1)
}

func (m *MockWagerRepository) CountOpen(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockWagerRepository) PurgeClosed(ctx context.Context, before time.Time) (int, error) {
	args := m.Called(ctx, before)
	return args.Int(0), args.Error(1)
}

// MockChallengeRepository is a mock implementation of ChallengeRepository
type MockChallengeRepository struct {
	mock.Mock
}

func (m *MockChallengeRepository) GetByAccount(ctx context.Context, accountID string) (*models.VerificationChallenge, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerificationChallenge), args.Error(1)
}

func (m *MockChallengeRepository) Save(ctx context.Context, challenge *models.VerificationChallenge) error {
	args := m.Called(ctx, challenge)
	return args.Error(0)
}

func (m *MockChallengeRepository) Delete(ctx context.Context, accountID string) (bool, error) {
	args := m.Called(ctx, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChallengeRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock

	accounts      AccountRepository
	history       BalanceHistoryRepository
	invites       InviteRepository
	relationships RelationshipRepository
	wagers        WagerRepository
	challenges    ChallengeRepository
	bus           EventPublisher
}

// SetRepositories configures the repositories returned by the accessors
func (m *MockUnitOfWork) SetRepositories(accounts AccountRepository, history BalanceHistoryRepository, invites InviteRepository, relationships RelationshipRepository, wagers WagerRepository, challenges ChallengeRepository, bus EventPublisher) {
	m.accounts = accounts
	m.history = history
	m.invites = invites
	m.relationships = relationships
	m.wagers = wagers
	m.challenges = challenges
	m.bus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository               { return m.accounts }
func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository { return m.history }
func (m *MockUnitOfWork) InviteRepository() InviteRepository                 { return m.invites }
func (m *MockUnitOfWork) RelationshipRepository() RelationshipRepository     { return m.relationships }
func (m *MockUnitOfWork) WagerRepository() WagerRepository                   { return m.wagers }
func (m *MockUnitOfWork) ChallengeRepository() ChallengeRepository           { return m.challenges }
func (m *MockUnitOfWork) EventBus() EventPublisher                           { return m.bus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
