package memory

import (
	"context"
	"fmt"

	"roombot/events"
	"roombot/service"
)

// NewUnitOfWorkFactory creates a UnitOfWork factory over the store.
// Mutations apply immediately; only event delivery waits for Commit.
func NewUnitOfWorkFactory(store *Store, eventBus events.Emitter) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		store:    store,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	store    *Store
	eventBus events.Emitter
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		store:            f.store,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
		accountRepo:      &accountRepository{s: f.store},
		balanceHistory:   &balanceHistoryRepository{s: f.store},
		inviteRepo:       &inviteRepository{s: f.store},
		relationshipRepo: &relationshipRepository{s: f.store},
		wagerRepo:        &wagerRepository{s: f.store},
		challengeRepo:    &challengeRepository{s: f.store},
	}
}

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	store            *Store
	ctx              context.Context
	started          bool
	transactionalBus *events.TransactionalBus

	accountRepo      service.AccountRepository
	balanceHistory   service.BalanceHistoryRepository
	inviteRepo       service.InviteRepository
	relationshipRepo service.RelationshipRepository
	wagerRepo        service.WagerRepository
	challengeRepo    service.ChallengeRepository
}

// Begin starts the unit of work
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.started {
		return fmt.Errorf("transaction already started")
	}
	u.started = true
	u.ctx = ctx
	return nil
}

// Commit flushes pending events
func (u *unitOfWork) Commit() error {
	if !u.started {
		return fmt.Errorf("no transaction to commit")
	}
	u.started = false
	return u.transactionalBus.Flush(u.ctx)
}

// Rollback discards pending events
func (u *unitOfWork) Rollback() error {
	if !u.started {
		return nil // Nothing to rollback
	}
	u.started = false
	u.transactionalBus.Discard()
	return nil
}

func (u *unitOfWork) AccountRepository() service.AccountRepository { return u.accountRepo }

func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	return u.balanceHistory
}

func (u *unitOfWork) InviteRepository() service.InviteRepository { return u.inviteRepo }

func (u *unitOfWork) RelationshipRepository() service.RelationshipRepository {
	return u.relationshipRepo
}

func (u *unitOfWork) WagerRepository() service.WagerRepository { return u.wagerRepo }

func (u *unitOfWork) ChallengeRepository() service.ChallengeRepository { return u.challengeRepo }

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher { return u.transactionalBus }
