package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"roombot/models"
	"roombot/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestAccountRepository_Update(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := &accountRepository{s: store}

	t.Run("unknown account", func(t *testing.T) {
		_, err := repo.Update(ctx, "ghost", func(a *models.Account) error { return nil })
		assert.ErrorIs(t, err, service.ErrAccountNotFound)
	})

	t.Run("callback error leaves state unchanged", func(t *testing.T) {
		_, err := repo.GetOrCreate(ctx, "alice", testNow)
		require.NoError(t, err)

		_, err = repo.Update(ctx, "alice", func(a *models.Account) error {
			a.Balance = decimal.NewFromInt(500)
			return service.ErrInsufficientFunds
		})
		assert.ErrorIs(t, err, service.ErrInsufficientFunds)

		account, err := repo.GetByID(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, account.Balance.IsZero())
	})

	t.Run("returned accounts are copies", func(t *testing.T) {
		account, err := repo.GetByID(ctx, "alice")
		require.NoError(t, err)
		account.Balance = decimal.NewFromInt(1000)

		fresh, err := repo.GetByID(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, fresh.Balance.IsZero())
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		_, err := repo.GetOrCreate(ctx, "bob", testNow)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Update(ctx, "bob", func(a *models.Account) error {
					a.Balance = a.Balance.Add(decimal.NewFromInt(1))
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		account, err := repo.GetByID(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(100).Equal(account.Balance), "got %s", account.Balance)
	})
}

func TestAccountRepository_ClearExpiredBlacklists(t *testing.T) {
	ctx := context.Background()
	repo := &accountRepository{s: NewStore()}

	for _, id := range []string{"expired", "active", "clean"} {
		_, err := repo.GetOrCreate(ctx, id, testNow)
		require.NoError(t, err)
	}
	past := testNow.Add(-time.Minute)
	future := testNow.Add(time.Hour)
	_, err := repo.Update(ctx, "expired", func(a *models.Account) error { a.BlacklistedUntil = &past; return nil })
	require.NoError(t, err)
	_, err = repo.Update(ctx, "active", func(a *models.Account) error { a.BlacklistedUntil = &future; return nil })
	require.NoError(t, err)

	cleared, err := repo.ClearExpiredBlacklists(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	expired, _ := repo.GetByID(ctx, "expired")
	assert.Nil(t, expired.BlacklistedUntil)
	active, _ := repo.GetByID(ctx, "active")
	assert.NotNil(t, active.BlacklistedUntil)
}

func TestWagerRepository_TransitionState(t *testing.T) {
	ctx := context.Background()
	repo := &wagerRepository{s: NewStore()}

	wager := &models.Wager{
		ID:           "w1",
		ChallengerID: "alice",
		Stake:        decimal.NewFromInt(50),
		State:        models.WagerStateOpen,
		CreatedAt:    testNow,
		ExpiresAt:    testNow.Add(time.Minute),
	}
	require.NoError(t, repo.Create(ctx, wager))

	t.Run("exactly one concurrent caller wins", func(t *testing.T) {
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				acceptor := "acceptor"
				ok, err := repo.TransitionState(ctx, models.WagerTransition{
					WagerID:    "w1",
					From:       models.WagerStateOpen,
					To:         models.WagerStateAccepted,
					At:         testNow,
					AcceptorID: &acceptor,
				})
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("terminal transition sets resolution time", func(t *testing.T) {
		winner := "alice"
		ok, err := repo.TransitionState(ctx, models.WagerTransition{
			WagerID:  "w1",
			From:     models.WagerStateAccepted,
			To:       models.WagerStateSettled,
			At:       testNow,
			WinnerID: &winner,
		})
		require.NoError(t, err)
		assert.True(t, ok)

		stored, err := repo.GetByID(ctx, "w1")
		require.NoError(t, err)
		assert.Equal(t, models.WagerStateSettled, stored.State)
		require.NotNil(t, stored.ResolvedAt)
		assert.Equal(t, "alice", *stored.WinnerID)
		assert.Equal(t, "acceptor", *stored.AcceptorID)
	})

	t.Run("purge removes old closed wagers only", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &models.Wager{ID: "w2", State: models.WagerStateOpen, ExpiresAt: testNow}))

		purged, err := repo.PurgeClosed(ctx, testNow.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, 1, purged)

		gone, _ := repo.GetByID(ctx, "w1")
		assert.Nil(t, gone)
		open, _ := repo.GetByID(ctx, "w2")
		assert.NotNil(t, open)
	})
}

func TestRelationshipRepository_SetOnce(t *testing.T) {
	ctx := context.Background()
	repo := &relationshipRepository{s: NewStore()}

	created, err := repo.Create(ctx, &models.Relationship{ChildID: "bob", ParentID: "alice", GroupID: "g"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, &models.Relationship{ChildID: "bob", ParentID: "carol", GroupID: "g"})
	require.NoError(t, err)
	assert.False(t, created)

	rel, err := repo.GetByChild(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", rel.ParentID)

	activated, err := repo.MarkActivated(ctx, "bob", testNow)
	require.NoError(t, err)
	assert.True(t, activated)

	activated, err = repo.MarkActivated(ctx, "bob", testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, activated)

	activated, err = repo.MarkActivated(ctx, "nobody", testNow)
	require.NoError(t, err)
	assert.False(t, activated)
}

func TestRelationshipRepository_RejectsCycles(t *testing.T) {
	ctx := context.Background()
	repo := &relationshipRepository{s: NewStore()}

	// alice <- bob <- carol
	for _, rel := range []*models.Relationship{
		{ChildID: "bob", ParentID: "alice", GroupID: "g"},
		{ChildID: "carol", ParentID: "bob", GroupID: "g"},
	} {
		created, err := repo.Create(ctx, rel)
		require.NoError(t, err)
		require.True(t, created)
	}

	created, err := repo.Create(ctx, &models.Relationship{ChildID: "alice", ParentID: "carol", GroupID: "g"})
	assert.ErrorIs(t, err, service.ErrReferralCycle)
	assert.False(t, created)

	rel, err := repo.GetByChild(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, rel)
}

func TestRelationshipRepository_ConcurrentMutualLinks(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 200; round++ {
		repo := &relationshipRepository{s: NewStore()}

		var wg sync.WaitGroup
		var created, cycles atomic.Int32
		for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
			wg.Add(1)
			go func(child, parent string) {
				defer wg.Done()
				ok, err := repo.Create(ctx, &models.Relationship{ChildID: child, ParentID: parent, GroupID: "g"})
				if ok {
					created.Add(1)
				}
				if err != nil {
					assert.ErrorIs(t, err, service.ErrReferralCycle)
					cycles.Add(1)
				}
			}(pair[0], pair[1])
		}
		wg.Wait()

		require.Equal(t, int32(1), created.Load(), "round %d", round)
		require.Equal(t, int32(1), cycles.Load(), "round %d", round)
	}
}

func TestInviteRepository(t *testing.T) {
	ctx := context.Background()
	repo := &inviteRepository{s: NewStore()}

	link := &models.InviteLink{Code: "LOVE0001", OwnerID: "alice", GroupID: "g", Active: true, CreatedAt: testNow}
	require.NoError(t, repo.Create(ctx, link))
	assert.ErrorIs(t, repo.Create(ctx, link), service.ErrDuplicateInviteCode)

	active, err := repo.GetActive(ctx, "alice", "g")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "LOVE0001", active.Code)

	require.NoError(t, repo.RecordUse(ctx, "LOVE0001", "bob"))
	require.NoError(t, repo.RecordUse(ctx, "LOVE0001", "bob"))
	stored, err := repo.GetByCode(ctx, "LOVE0001")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalUses)
	assert.Equal(t, []string{"bob"}, stored.Redeemers)

	deactivated, err := repo.DeactivateActive(ctx, "alice", "g")
	require.NoError(t, err)
	assert.Equal(t, 1, deactivated)

	active, err = repo.GetActive(ctx, "alice", "g")
	require.NoError(t, err)
	assert.Nil(t, active)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestChallengeRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := &challengeRepository{s: NewStore()}

	require.NoError(t, repo.Save(ctx, &models.VerificationChallenge{AccountID: "old", ExpiresAt: testNow.Add(-time.Second)}))
	require.NoError(t, repo.Save(ctx, &models.VerificationChallenge{AccountID: "new", ExpiresAt: testNow.Add(time.Minute)}))

	removed, err := repo.DeleteExpired(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	old, _ := repo.GetByAccount(ctx, "old")
	assert.Nil(t, old)
	fresh, _ := repo.GetByAccount(ctx, "new")
	assert.NotNil(t, fresh)
}

func TestBalanceHistoryRepository_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := &balanceHistoryRepository{s: NewStore()}

	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.Record(ctx, &models.BalanceHistory{
			AccountID:    "alice",
			ChangeAmount: decimal.NewFromInt(int64(i)),
		}))
	}
	require.NoError(t, repo.Record(ctx, &models.BalanceHistory{AccountID: "bob", ChangeAmount: decimal.NewFromInt(9)}))

	history, err := repo.GetByAccount(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, decimal.NewFromInt(3).Equal(history[0].ChangeAmount))
	assert.True(t, decimal.NewFromInt(2).Equal(history[1].ChangeAmount))
}
