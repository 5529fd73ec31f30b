package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"roombot/config"
	"roombot/events"
	"roombot/models"
	"roombot/repository/memory"
	"roombot/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixedRandom always lands the coin on the same side and never shuffles
type fixedRandom struct {
	coin int
}

func (r fixedRandom) IntN(n int) int { return r.coin % n }

func (r fixedRandom) Perm(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}

// recorder collects flushed events synchronously
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(ctx context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) ofType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []events.Event
	for _, e := range r.events {
		if e.Type() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	economy config.Economy
	clock   *fakeClock
	events  *recorder
	factory service.UnitOfWorkFactory
	engine  service.Engine
}

func newHarness(t *testing.T, economy config.Economy) *harness {
	h := &harness{
		t:       t,
		ctx:     context.Background(),
		economy: economy,
		clock:   &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		events:  &recorder{},
	}
	h.factory = memory.NewUnitOfWorkFactory(memory.NewStore(), h.events)
	h.engine = service.NewEngine(h.factory, economy,
		service.WithClock(h.clock),
		service.WithRandom(fixedRandom{coin: 0}),
	)
	return h
}

// withUoW runs fn in a committed unit of work for test setup and inspection
func (h *harness) withUoW(fn func(uow service.UnitOfWork)) {
	uow := h.factory.Create()
	require.NoError(h.t, uow.Begin(h.ctx))
	fn(uow)
	require.NoError(h.t, uow.Commit())
}

func (h *harness) fund(id string, amount int64) {
	h.withUoW(func(uow service.UnitOfWork) {
		_, err := uow.AccountRepository().GetOrCreate(h.ctx, id, h.clock.Now())
		require.NoError(h.t, err)
		_, err = uow.AccountRepository().Update(h.ctx, id, func(a *models.Account) error {
			a.Balance = a.Balance.Add(decimal.NewFromInt(amount))
			return nil
		})
		require.NoError(h.t, err)
	})
}

func (h *harness) account(id string) *models.Account {
	var account *models.Account
	h.withUoW(func(uow service.UnitOfWork) {
		var err error
		account, err = uow.AccountRepository().GetByID(h.ctx, id)
		require.NoError(h.t, err)
	})
	require.NotNil(h.t, account, "account %s", id)
	return account
}

func (h *harness) balance(id string) decimal.Decimal {
	return h.account(id).Balance
}

// link records child -> parent in group directly, bypassing verification
func (h *harness) link(child, parent, group string) {
	h.withUoW(func(uow service.UnitOfWork) {
		for _, id := range []string{child, parent} {
			_, err := uow.AccountRepository().GetOrCreate(h.ctx, id, h.clock.Now())
			require.NoError(h.t, err)
		}
		created, err := uow.RelationshipRepository().Create(h.ctx, &models.Relationship{
			ChildID:   child,
			ParentID:  parent,
			GroupID:   group,
			CreatedAt: h.clock.Now(),
		})
		require.NoError(h.t, err)
		require.True(h.t, created)
	})
}

// answer is the expected challenge answer under fixedRandom
func (h *harness) answer() string {
	return strings.Join(h.economy.VerificationSymbols[:h.economy.VerificationLength], " ")
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func assertDecimalf(t *testing.T, expected string, actual decimal.Decimal, format string, args ...any) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s: %s", expected, actual.String(), fmt.Sprintf(format, args...))
}

func TestCascade_DepthFiveChain(t *testing.T) {
	economy := config.DefaultEconomy()
	economy.StreakRate = 0
	h := newHarness(t, economy)

	// a0 <- a1 <- a2 <- a3 <- a4 <- newcomer
	for i := 1; i <= 4; i++ {
		h.link(fmt.Sprintf("a%d", i), fmt.Sprintf("a%d", i-1), "g")
	}
	h.link("newcomer", "a4", "g")

	outcome, err := h.engine.InvitedAccountJoinedGroup(h.ctx, "newcomer", "g")
	require.NoError(t, err)
	require.True(t, outcome.Activated)
	require.Len(t, outcome.Hops, 5)

	expected := []struct {
		account string
		amount  string
	}{
		{"a4", "10"},
		{"a3", "5"},
		{"a2", "2.5"},
		{"a1", "1.25"},
		{"a0", "0.625"},
	}
	for i, want := range expected {
		hop := outcome.Hops[i]
		assert.Equal(t, want.account, hop.AccountID)
		assert.Equal(t, i, hop.Depth)
		assertDecimalf(t, want.amount, hop.Amount, "hop %d", i)
		assertDecimalf(t, want.amount, h.balance(want.account), "balance of %s", want.account)
	}
	assertDecimal(t, "19.375", outcome.TotalAwarded)
	assert.Equal(t, 1, h.account("a4").InvitesSuccessful)
	assert.Equal(t, 0, h.account("a3").InvitesSuccessful)
}

func TestCascade_StopsAtFloorAndDepthCap(t *testing.T) {
	t.Run("floor", func(t *testing.T) {
		economy := config.DefaultEconomy()
		economy.StreakRate = 0
		economy.InviteBaseReward = decimal.RequireFromString("0.03")
		h := newHarness(t, economy)

		for i := 1; i <= 6; i++ {
			h.link(fmt.Sprintf("a%d", i), fmt.Sprintf("a%d", i-1), "g")
		}
		h.link("newcomer", "a6", "g")

		outcome, err := h.engine.InvitedAccountJoinedGroup(h.ctx, "newcomer", "g")
		require.NoError(t, err)
		// 0.03, 0.015, then 0.0075 is below the floor
		require.Len(t, outcome.Hops, 2)
		assertDecimal(t, "0.045", outcome.TotalAwarded)
	})

	t.Run("depth cap", func(t *testing.T) {
		economy := config.DefaultEconomy()
		economy.StreakRate = 0
		economy.InviteBaseReward = decimal.NewFromInt(100000)
		h := newHarness(t, economy)

		for i := 1; i <= 15; i++ {
			h.link(fmt.Sprintf("a%d", i), fmt.Sprintf("a%d", i-1), "g")
		}
		h.link("newcomer", "a15", "g")

		outcome, err := h.engine.InvitedAccountJoinedGroup(h.ctx, "newcomer", "g")
		require.NoError(t, err)
		require.Len(t, outcome.Hops, economy.CascadeMaxDepth)
		assert.Equal(t, "a6", outcome.Hops[len(outcome.Hops)-1].AccountID)
		assert.True(t, h.balance("a5").IsZero())
	})
}

func TestCascade_StreakMultiplier(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())

	h.link("bob", "alice", "g")
	h.link("carol", "alice", "g")
	h.link("dave", "alice", "g")

	first, err := h.engine.InvitedAccountJoinedGroup(h.ctx, "bob", "g")
	require.NoError(t, err)
	assert.Equal(t, 1, first.InviteStreak)
	assertDecimal(t, "11", first.TotalAwarded)

	h.clock.Advance(time.Hour)
	second, err := h.engine.InvitedAccountJoinedGroup(h.ctx, "carol", "g")
	require.NoError(t, err)
	assert.Equal(t, 2, second.InviteStreak)
	assertDecimal(t, "12", second.TotalAwarded)

	// Outside the streak window the streak restarts
	h.clock.Advance(25 * time.Hour)
	third, err := h.engine.InvitedAccountJoinedGroup(h.ctx, "dave", "g")
	require.NoError(t, err)
	assert.Equal(t, 1, third.InviteStreak)
	assertDecimal(t, "11", third.TotalAwarded)

	assert.Equal(t, 3, h.account("alice").InvitesSuccessful)
	assert.Equal(t, 3.0, third.InviterHeat)
}

func TestReferralFlow_EndToEnd(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())

	link, err := h.engine.CurrentInvite(h.ctx, "alice", "g")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.Code, "LOVE"))
	assert.Len(t, link.Code, 12)

	again, err := h.engine.CurrentInvite(h.ctx, "alice", "g")
	require.NoError(t, err)
	assert.Equal(t, link.Code, again.Code)

	redeem, err := h.engine.RedeemInvite(h.ctx, link.Code, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", redeem.OwnerID)
	assert.Contains(t, redeem.Prompt, h.economy.VerificationSymbols[0])

	verified, err := h.engine.SubmitVerificationAnswer(h.ctx, "bob", h.answer())
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Equal(t, "alice", verified.OwnerID)
	assert.Equal(t, "g", verified.GroupID)

	activation, err := h.engine.InvitedAccountJoinedGroup(h.ctx, "bob", "g")
	require.NoError(t, err)
	assert.True(t, activation.Activated)
	assert.Equal(t, "alice", activation.InviterID)

	// Joining again never pays twice
	replay, err := h.engine.InvitedAccountJoinedGroup(h.ctx, "bob", "g")
	require.NoError(t, err)
	assert.False(t, replay.Activated)
	assertDecimal(t, "11", h.balance("alice"))
	assert.Len(t, h.events.ofType(events.EventTypeInviteActivated), 1)

	_, err = h.engine.InvitedAccountJoinedGroup(h.ctx, "bob", "other-group")
	assert.ErrorIs(t, err, service.ErrNotInvited)

	_, err = h.engine.InvitedAccountJoinedGroup(h.ctx, "stranger", "g")
	assert.ErrorIs(t, err, service.ErrNotInvited)
}

func TestReferralFlow_RedemptionErrors(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())

	link, err := h.engine.CurrentInvite(h.ctx, "alice", "g")
	require.NoError(t, err)

	t.Run("unknown code", func(t *testing.T) {
		_, err := h.engine.RedeemInvite(h.ctx, "LOVEDEADBEEF", "bob")
		assert.ErrorIs(t, err, service.ErrInviteNotFound)
		assert.Equal(t, service.KindNotFound, service.KindOf(err))
	})

	t.Run("self invite", func(t *testing.T) {
		_, err := h.engine.RedeemInvite(h.ctx, link.Code, "alice")
		assert.ErrorIs(t, err, service.ErrSelfInvite)
	})

	t.Run("reissued code deactivates the old one", func(t *testing.T) {
		fresh, err := h.engine.IssueInvite(h.ctx, "alice", "g")
		require.NoError(t, err)
		assert.NotEqual(t, link.Code, fresh.Code)

		_, err = h.engine.RedeemInvite(h.ctx, link.Code, "bob")
		assert.ErrorIs(t, err, service.ErrInviteInactive)
		link = fresh
	})

	t.Run("already linked to someone else", func(t *testing.T) {
		h.link("bob", "carol", "g")
		_, err := h.engine.RedeemInvite(h.ctx, link.Code, "bob")
		assert.ErrorIs(t, err, service.ErrAlreadyLinked)
	})

	t.Run("cycle", func(t *testing.T) {
		// dave was invited by alice, so alice cannot join through dave
		h.link("dave", "alice", "g")
		daveLink, err := h.engine.CurrentInvite(h.ctx, "dave", "g")
		require.NoError(t, err)

		_, err = h.engine.RedeemInvite(h.ctx, daveLink.Code, "alice")
		assert.ErrorIs(t, err, service.ErrReferralCycle)
	})
}

func TestVerification_BlacklistAfterThreeFailures(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())

	link, err := h.engine.CurrentInvite(h.ctx, "alice", "g")
	require.NoError(t, err)
	_, err = h.engine.RedeemInvite(h.ctx, link.Code, "bob")
	require.NoError(t, err)

	first, err := h.engine.SubmitVerificationAnswer(h.ctx, "bob", "wrong")
	require.NoError(t, err)
	assert.False(t, first.Verified)
	assert.Equal(t, 2, first.AttemptsRemaining)

	second, err := h.engine.SubmitVerificationAnswer(h.ctx, "bob", "still wrong")
	require.NoError(t, err)
	assert.Equal(t, 1, second.AttemptsRemaining)

	third, err := h.engine.SubmitVerificationAnswer(h.ctx, "bob", "nope")
	require.NoError(t, err)
	assert.True(t, third.Blacklisted)
	require.NotNil(t, third.BlacklistedUntil)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour), *third.BlacklistedUntil)

	// Even the correct answer is rejected: the challenge is gone
	_, err = h.engine.SubmitVerificationAnswer(h.ctx, "bob", h.answer())
	assert.ErrorIs(t, err, service.ErrChallengeNotFound)
	assert.Equal(t, service.KindNotFound, service.KindOf(err))

	_, err = h.engine.RedeemInvite(h.ctx, link.Code, "bob")
	assert.ErrorIs(t, err, service.ErrBlacklisted)
	assert.Equal(t, service.KindRateLimited, service.KindOf(err))
	assert.Len(t, h.events.ofType(events.EventTypeAccountBlacklisted), 1)

	h.clock.Advance(24 * time.Hour)
	sweep, err := h.engine.PeriodicSweep(h.ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.BlacklistsCleared)

	_, err = h.engine.RedeemInvite(h.ctx, link.Code, "bob")
	assert.NoError(t, err)
}

func TestVerification_RedeemAgainKeepsSpentAttempts(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())

	link, err := h.engine.CurrentInvite(h.ctx, "alice", "g")
	require.NoError(t, err)
	_, err = h.engine.RedeemInvite(h.ctx, link.Code, "bob")
	require.NoError(t, err)

	for range 2 {
		outcome, err := h.engine.SubmitVerificationAnswer(h.ctx, "bob", "wrong")
		require.NoError(t, err)
		require.False(t, outcome.Blacklisted)
	}

	// A fresh challenge does not reset the count
	_, err = h.engine.RedeemInvite(h.ctx, link.Code, "bob")
	require.NoError(t, err)
	outcome, err := h.engine.SubmitVerificationAnswer(h.ctx, "bob", "wrong")
	require.NoError(t, err)
	assert.True(t, outcome.Blacklisted)

	// Once the old challenge expired, a new one starts from zero
	h.clock.Advance(24 * time.Hour)
	_, err = h.engine.PeriodicSweep(h.ctx, h.clock.Now())
	require.NoError(t, err)
	_, err = h.engine.RedeemInvite(h.ctx, link.Code, "bob")
	require.NoError(t, err)
	_, err = h.engine.SubmitVerificationAnswer(h.ctx, "bob", "wrong")
	require.NoError(t, err)

	h.clock.Advance(6 * time.Minute)
	_, err = h.engine.RedeemInvite(h.ctx, link.Code, "bob")
	require.NoError(t, err)
	fresh, err := h.engine.SubmitVerificationAnswer(h.ctx, "bob", "wrong")
	require.NoError(t, err)
	assert.False(t, fresh.Blacklisted)
	assert.Equal(t, 2, fresh.AttemptsRemaining)
}

func TestVerification_ExpiryAndMalformedAnswers(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())

	link, err := h.engine.CurrentInvite(h.ctx, "alice", "g")
	require.NoError(t, err)
	_, err = h.engine.RedeemInvite(h.ctx, link.Code, "bob")
	require.NoError(t, err)

	_, err = h.engine.SubmitVerificationAnswer(h.ctx, "bob", "   ")
	assert.ErrorIs(t, err, service.ErrMalformedAnswer)

	// Whitespace inside the answer is ignored
	compact := strings.ReplaceAll(h.answer(), " ", "\t")
	h.clock.Advance(6 * time.Minute)

	_, err = h.engine.SubmitVerificationAnswer(h.ctx, "bob", compact)
	assert.ErrorIs(t, err, service.ErrChallengeExpired)

	_, err = h.engine.SubmitVerificationAnswer(h.ctx, "bob", compact)
	assert.ErrorIs(t, err, service.ErrChallengeNotFound)

	_, err = h.engine.RedeemInvite(h.ctx, link.Code, "bob")
	require.NoError(t, err)
	outcome, err := h.engine.SubmitVerificationAnswer(h.ctx, "bob", compact)
	require.NoError(t, err)
	assert.True(t, outcome.Verified)
}

func TestWager_ConcurrentAcceptExactlyOneWins(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())
	h.fund("alice", 100)
	h.fund("bob", 100)
	h.fund("carol", 100)

	created, err := h.engine.CreateWager(h.ctx, "alice", decimal.NewFromInt(50))
	require.NoError(t, err)
	assertDecimal(t, "50", created.Balance)

	type result struct {
		acceptor string
		outcome  *models.SettlementOutcome
		err      error
	}
	results := make(chan result, 2)
	var wg sync.WaitGroup
	for _, acceptor := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(acceptor string) {
			defer wg.Done()
			outcome, err := h.engine.AcceptWager(h.ctx, created.Wager.ID, acceptor)
			results <- result{acceptor, outcome, err}
		}(acceptor)
	}
	wg.Wait()
	close(results)

	var winner, loser result
	successes := 0
	for r := range results {
		if r.err == nil {
			successes++
			winner = r
		} else {
			loser = r
		}
	}
	require.Equal(t, 1, successes)
	assert.ErrorIs(t, loser.err, service.ErrWagerAlreadyAccepted)
	assert.Equal(t, service.KindInvalidState, service.KindOf(loser.err))

	// Coin lands on the challenger
	assert.Equal(t, "alice", winner.outcome.WinnerID)
	assert.Equal(t, winner.acceptor, winner.outcome.LoserID)
	assertDecimal(t, "150", h.balance("alice"))
	assertDecimal(t, "50", h.balance(winner.acceptor))
	assertDecimal(t, "100", h.balance(loser.acceptor))

	total := h.balance("alice").Add(h.balance(winner.acceptor))
	assertDecimal(t, "200", total)

	alice := h.account("alice")
	assert.Equal(t, 1, alice.WagersWon)
	assertDecimal(t, "50", alice.TotalEarned)
	acceptor := h.account(winner.acceptor)
	assert.Equal(t, 1, acceptor.WagersLost)
	assertDecimal(t, "50", acceptor.TotalSpent)

	// 50 * 0.1 * (1 + 0/100)
	assert.Equal(t, int64(5), winner.outcome.ChallengerXP)
	assert.Equal(t, int64(5), winner.outcome.AcceptorXP)
	assert.Len(t, h.events.ofType(events.EventTypeWagerSettled), 1)

	_, err = h.engine.AcceptWager(h.ctx, created.Wager.ID, "dave")
	assert.ErrorIs(t, err, service.ErrWagerAlreadyAccepted)
}

func TestWager_AcceptorWins(t *testing.T) {
	economy := config.DefaultEconomy()
	h := newHarness(t, economy)
	h.engine = service.NewEngine(h.factory, economy, service.WithClock(h.clock), service.WithRandom(fixedRandom{coin: 1}))
	h.fund("alice", 100)
	h.fund("bob", 100)

	created, err := h.engine.CreateWager(h.ctx, "alice", decimal.RequireFromString("12.345"))
	require.NoError(t, err)
	assertDecimal(t, "12.35", created.Wager.Stake)

	outcome, err := h.engine.AcceptWager(h.ctx, created.Wager.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", outcome.WinnerID)
	assertDecimal(t, "87.65", h.balance("alice"))
	assertDecimal(t, "112.35", h.balance("bob"))
}

func TestWager_Validation(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())
	h.fund("alice", 100)

	tests := []struct {
		name  string
		stake string
		err   error
	}{
		{"zero", "0", service.ErrInvalidStake},
		{"negative", "-5", service.ErrInvalidStake},
		{"rounds to zero", "0.004", service.ErrInvalidStake},
		{"above max", "1000.01", service.ErrInvalidStake},
		{"more than balance", "100.01", service.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.CreateWager(h.ctx, "alice", decimal.RequireFromString(tt.stake))
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assertDecimal(t, "100", h.balance("alice"))

	created, err := h.engine.CreateWager(h.ctx, "alice", decimal.NewFromInt(60))
	require.NoError(t, err)

	_, err = h.engine.AcceptWager(h.ctx, created.Wager.ID, "alice")
	assert.ErrorIs(t, err, service.ErrSelfAccept)
	assert.Equal(t, service.KindForbidden, service.KindOf(err))

	_, err = h.engine.AcceptWager(h.ctx, created.Wager.ID, "pauper")
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)

	_, err = h.engine.AcceptWager(h.ctx, "missing", "bob")
	assert.ErrorIs(t, err, service.ErrWagerNotFound)

	// A failed accept leaves the duel open
	h.fund("bob", 60)
	_, err = h.engine.AcceptWager(h.ctx, created.Wager.ID, "bob")
	assert.NoError(t, err)
}

func TestWager_CancelAndExpire(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())
	h.fund("alice", 100)
	h.fund("bob", 100)

	t.Run("cancel", func(t *testing.T) {
		created, err := h.engine.CreateWager(h.ctx, "alice", decimal.NewFromInt(30))
		require.NoError(t, err)

		_, err = h.engine.CancelWager(h.ctx, created.Wager.ID, "bob")
		assert.ErrorIs(t, err, service.ErrNotChallenger)

		cancelled, err := h.engine.CancelWager(h.ctx, created.Wager.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, models.WagerStateCancelled, cancelled.Wager.State)
		assertDecimal(t, "100", cancelled.Balance)

		_, err = h.engine.CancelWager(h.ctx, created.Wager.ID, "alice")
		assert.ErrorIs(t, err, service.ErrWagerClosed)
		_, err = h.engine.AcceptWager(h.ctx, created.Wager.ID, "bob")
		assert.ErrorIs(t, err, service.ErrWagerClosed)
		assertDecimal(t, "100", h.balance("alice"))
	})

	t.Run("lazy expiry on accept", func(t *testing.T) {
		created, err := h.engine.CreateWager(h.ctx, "alice", decimal.NewFromInt(30))
		require.NoError(t, err)
		h.clock.Advance(61 * time.Second)

		_, err = h.engine.AcceptWager(h.ctx, created.Wager.ID, "bob")
		assert.ErrorIs(t, err, service.ErrWagerExpired)
		assertDecimal(t, "100", h.balance("alice"))
		assertDecimal(t, "100", h.balance("bob"))

		sweep, err := h.engine.PeriodicSweep(h.ctx, h.clock.Now())
		require.NoError(t, err)
		assert.Equal(t, 0, sweep.WagersExpired)
		assertDecimal(t, "100", h.balance("alice"))
	})

	t.Run("sweep refunds exactly once", func(t *testing.T) {
		created, err := h.engine.CreateWager(h.ctx, "alice", decimal.NewFromInt(30))
		require.NoError(t, err)
		assertDecimal(t, "70", h.balance("alice"))

		h.clock.Advance(61 * time.Second)
		first, err := h.engine.PeriodicSweep(h.ctx, h.clock.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, first.WagersExpired)

		second, err := h.engine.PeriodicSweep(h.ctx, h.clock.Now())
		require.NoError(t, err)
		assert.Equal(t, 0, second.WagersExpired)
		assertDecimal(t, "100", h.balance("alice"))

		_, err = h.engine.CancelWager(h.ctx, created.Wager.ID, "alice")
		assert.ErrorIs(t, err, service.ErrWagerExpired)
	})
}

func TestMilestones_EmittedOnce(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())
	milestones := service.NewMilestoneService([]int{10, 25})

	h.fund("alice", 0)
	h.withUoW(func(uow service.UnitOfWork) {
		_, err := uow.AccountRepository().Update(h.ctx, "alice", func(a *models.Account) error {
			a.InvitesSuccessful = 10
			return nil
		})
		require.NoError(t, err)
	})

	h.withUoW(func(uow service.UnitOfWork) {
		reached, err := milestones.CheckMilestones(h.ctx, uow, "alice")
		require.NoError(t, err)
		assert.Equal(t, []int{10}, reached)
	})
	h.withUoW(func(uow service.UnitOfWork) {
		reached, err := milestones.CheckMilestones(h.ctx, uow, "alice")
		require.NoError(t, err)
		assert.Empty(t, reached)
	})

	emitted := h.events.ofType(events.EventTypeMilestoneReached)
	require.Len(t, emitted, 1)
	assert.Equal(t, 10, emitted[0].(events.MilestoneReachedEvent).Threshold)
	assert.Equal(t, []int{10}, h.account("alice").MilestonesReached)
}

func TestDailyBonus(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())

	_, err := h.engine.AccountMessaged(h.ctx, "alice")
	require.NoError(t, err)

	// 10 base + 2 * level 1 + 1 active day
	outcome, err := h.engine.ClaimDailyBonus(h.ctx, "alice")
	require.NoError(t, err)
	assertDecimal(t, "13", outcome.Total)
	assertDecimal(t, "13", h.balance("alice"))
	assert.Equal(t, int64(51), h.account("alice").XP)

	h.clock.Advance(23 * time.Hour)
	_, err = h.engine.ClaimDailyBonus(h.ctx, "alice")
	assert.ErrorIs(t, err, service.ErrDailyBonusCooldown)
	assert.Equal(t, service.KindRateLimited, service.KindOf(err))

	h.clock.Advance(time.Hour)
	_, err = h.engine.ClaimDailyBonus(h.ctx, "alice")
	require.NoError(t, err)
	assertDecimal(t, "26", h.balance("alice"))
}

func TestGift(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())
	h.fund("alice", 100)

	tests := []struct {
		name   string
		to     string
		amount string
		err    error
	}{
		{"zero", "bob", "0", service.ErrInvalidGift},
		{"above max", "bob", "10000.01", service.ErrInvalidGift},
		{"self", "alice", "5", service.ErrSelfGift},
		{"insufficient", "bob", "100.01", service.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Gift(h.ctx, "alice", tt.to, decimal.RequireFromString(tt.amount))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	outcome, err := h.engine.Gift(h.ctx, "alice", "bob", decimal.RequireFromString("40.5"))
	require.NoError(t, err)
	assertDecimal(t, "59.5", outcome.FromBalance)
	assertDecimal(t, "40.5", outcome.ToBalance)
	assertDecimal(t, "40.5", h.account("alice").TotalSpent)
	assertDecimal(t, "40.5", h.account("bob").TotalEarned)

	history, err := h.engine.BalanceHistory(h.ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionTypeGiftSent, history[0].TransactionType)
	assertDecimal(t, "-40.5", history[0].ChangeAmount)
}

func TestLedger_ConservationUnderConcurrentGifts(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		h.fund(id, 50)
	}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := ids[i%len(ids)]
			to := ids[(i+1+i/len(ids))%len(ids)]
			if from == to {
				return
			}
			_, err := h.engine.Gift(h.ctx, from, to, decimal.NewFromInt(int64(1+i%7)))
			if err != nil {
				assert.ErrorIs(t, err, service.ErrInsufficientFunds)
			}
		}(i)
	}
	wg.Wait()

	total := decimal.Zero
	for _, id := range ids {
		balance := h.balance(id)
		assert.False(t, balance.IsNegative(), "balance of %s", id)
		total = total.Add(balance)
	}
	assertDecimal(t, "200", total)
}

func TestAccountLeftGroup_PenalisesInviter(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())
	h.link("bob", "alice", "g")

	notYet, err := h.engine.AccountLeftGroup(h.ctx, "bob", "g")
	require.NoError(t, err)
	assert.False(t, notYet.Penalized)

	_, err = h.engine.InvitedAccountJoinedGroup(h.ctx, "bob", "g")
	require.NoError(t, err)
	assertDecimal(t, "11", h.balance("alice"))

	outcome, err := h.engine.AccountLeftGroup(h.ctx, "bob", "g")
	require.NoError(t, err)
	assert.True(t, outcome.Penalized)
	assert.Equal(t, "alice", outcome.InviterID)
	assertDecimal(t, "5", outcome.Penalty)
	assertDecimal(t, "6", h.balance("alice"))
}

func TestReads(t *testing.T) {
	h := newHarness(t, config.DefaultEconomy())
	h.fund("alice", 30)
	h.fund("bob", 20)
	h.link("carol", "alice", "g")
	_, err := h.engine.InvitedAccountJoinedGroup(h.ctx, "carol", "g")
	require.NoError(t, err)
	_, err = h.engine.CreateWager(h.ctx, "bob", decimal.NewFromInt(5))
	require.NoError(t, err)

	profile, err := h.engine.Profile(h.ctx, "alice")
	require.NoError(t, err)
	assertDecimal(t, "41", profile.Account.Balance)
	assert.Equal(t, 1.0, profile.Heat)
	assert.Equal(t, int64(100), profile.XPForNextLevel)

	_, err = h.engine.Profile(h.ctx, "nobody")
	assert.ErrorIs(t, err, service.ErrAccountNotFound)

	boards, err := h.engine.Leaderboards(h.ctx)
	require.NoError(t, err)
	require.Len(t, boards.Points, 3)
	assert.Equal(t, "alice", boards.Points[0].AccountID)
	assert.Equal(t, 1, boards.Points[0].Rank)
	assert.Equal(t, "bob", boards.Points[1].AccountID)
	require.Len(t, boards.Heat, 1)
	assert.Equal(t, "alice", boards.Heat[0].AccountID)

	stats, err := h.engine.NetworkStats(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAccounts)
	assert.Equal(t, 1, stats.SuccessfulInvites)
	assert.Equal(t, 1, stats.OpenWagers)
	assertDecimal(t, "56", stats.TotalBalance)
}
