// Package memory is the single-process authoritative store. Accounts are
// mutated under per-account locks; every other collection is guarded by one
// store-wide lock that is never held while an account callback runs.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"roombot/models"
	"roombot/service"
)

// Store holds all engine state in process memory
type Store struct {
	mu sync.RWMutex

	accounts     map[string]*models.Account
	accountLocks map[string]*sync.Mutex

	history       []*models.BalanceHistory
	nextHistoryID int64

	invites       map[string]*models.InviteLink
	relationships map[string]*models.Relationship
	wagers        map[string]*models.Wager
	challenges    map[string]*models.VerificationChallenge
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		accounts:      make(map[string]*models.Account),
		accountLocks:  make(map[string]*sync.Mutex),
		invites:       make(map[string]*models.InviteLink),
		relationships: make(map[string]*models.Relationship),
		wagers:        make(map[string]*models.Wager),
		challenges:    make(map[string]*models.VerificationChallenge),
	}
}

// accountRepository implements service.AccountRepository
type accountRepository struct {
	s *Store
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.accounts[id].Clone(), nil
}

func (r *accountRepository) GetOrCreate(ctx context.Context, id string, now time.Time) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if account, ok := r.s.accounts[id]; ok {
		return account.Clone(), nil
	}
	account := models.NewAccount(id, now)
	r.s.accounts[id] = account
	r.s.accountLocks[id] = &sync.Mutex{}
	return account.Clone(), nil
}

// Update serializes read-modify-write cycles per account. The callback may
// use other repositories of the store but must not update the same account.
func (r *accountRepository) Update(ctx context.Context, id string, fn func(account *models.Account) error) (*models.Account, error) {
	r.s.mu.RLock()
	lock, ok := r.s.accountLocks[id]
	r.s.mu.RUnlock()
	if !ok {
		return nil, service.ErrAccountNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	r.s.mu.RLock()
	working := r.s.accounts[id].Clone()
	r.s.mu.RUnlock()

	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()

	r.s.mu.Lock()
	r.s.accounts[id] = working
	r.s.mu.Unlock()

	return working.Clone(), nil
}

func (r *accountRepository) GetAll(ctx context.Context) ([]*models.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	accounts := make([]*models.Account, 0, len(r.s.accounts))
	for _, account := range r.s.accounts {
		accounts = append(accounts, account.Clone())
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})
	return accounts, nil
}

func (r *accountRepository) ClearExpiredBlacklists(ctx context.Context, now time.Time) (int, error) {
	r.s.mu.RLock()
	var ids []string
	for id, account := range r.s.accounts {
		if account.BlacklistedUntil != nil && !now.Before(*account.BlacklistedUntil) {
			ids = append(ids, id)
		}
	}
	r.s.mu.RUnlock()

	cleared := 0
	for _, id := range ids {
		_, err := r.Update(ctx, id, func(a *models.Account) error {
			if a.BlacklistedUntil != nil && !now.Before(*a.BlacklistedUntil) {
				a.BlacklistedUntil = nil
				cleared++
			}
			return nil
		})
		if err != nil {
			return cleared, err
		}
	}
	return cleared, nil
}

// balanceHistoryRepository implements service.BalanceHistoryRepository
type balanceHistoryRepository struct {
	s *Store
}

func (r *balanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextHistoryID++
	history.ID = r.s.nextHistoryID
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now().UTC()
	}
	entry := *history
	r.s.history = append(r.s.history, &entry)
	return nil
}

func (r *balanceHistoryRepository) GetByAccount(ctx context.Context, accountID string, limit int) ([]*models.BalanceHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*models.BalanceHistory
	for i := len(r.s.history) - 1; i >= 0; i-- {
		if r.s.history[i].AccountID != accountID {
			continue
		}
		entry := *r.s.history[i]
		result = append(result, &entry)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// inviteRepository implements service.InviteRepository
type inviteRepository struct {
	s *Store
}

func (r *inviteRepository) Create(ctx context.Context, link *models.InviteLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.invites[link.Code]; exists {
		return service.ErrDuplicateInviteCode
	}
	r.s.invites[link.Code] = link.Clone()
	return nil
}

func (r *inviteRepository) GetByCode(ctx context.Context, code string) (*models.InviteLink, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.invites[code].Clone(), nil
}

func (r *inviteRepository) GetActive(ctx context.Context, ownerID, groupID string) (*models.InviteLink, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, link := range r.s.invites {
		if link.Active && link.OwnerID == ownerID && link.GroupID == groupID {
			return link.Clone(), nil
		}
	}
	return nil, nil
}

func (r *inviteRepository) DeactivateActive(ctx context.Context, ownerID, groupID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, link := range r.s.invites {
		if link.Active && link.OwnerID == ownerID && link.GroupID == groupID {
			link.Active = false
			count++
		}
	}
	return count, nil
}

func (r *inviteRepository) RecordUse(ctx context.Context, code, redeemerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	link, ok := r.s.invites[code]
	if !ok {
		return service.ErrInviteNotFound
	}
	link.TotalUses++
	if !slices.Contains(link.Redeemers, redeemerID) {
		link.Redeemers = append(link.Redeemers, redeemerID)
	}
	return nil
}

func (r *inviteRepository) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.invites), nil
}

// relationshipRepository implements service.RelationshipRepository
type relationshipRepository struct {
	s *Store
}

func (r *relationshipRepository) GetByChild(ctx context.Context, childID string) (*models.Relationship, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.relationships[childID].Clone(), nil
}

func (r *relationshipRepository) Create(ctx context.Context, rel *models.Relationship) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.relationships[rel.ChildID]; exists {
		return false, nil
	}
	for current, hops := rel.ParentID, 0; current != "" && hops <= len(r.s.relationships); hops++ {
		if current == rel.ChildID {
			return false, service.ErrReferralCycle
		}
		parent, ok := r.s.relationships[current]
		if !ok {
			break
		}
		current = parent.ParentID
	}
	r.s.relationships[rel.ChildID] = rel.Clone()
	return true, nil
}

func (r *relationshipRepository) MarkActivated(ctx context.Context, childID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rel, ok := r.s.relationships[childID]
	if !ok || rel.ActivatedAt != nil {
		return false, nil
	}
	rel.ActivatedAt = &at
	return true, nil
}

// wagerRepository implements service.WagerRepository
type wagerRepository struct {
	s *Store
}

func (r *wagerRepository) Create(ctx context.Context, wager *models.Wager) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.wagers[wager.ID] = wager.Clone()
	return nil
}

func (r *wagerRepository) GetByID(ctx context.Context, id string) (*models.Wager, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.wagers[id].Clone(), nil
}

// TransitionState swaps the state under the store lock, so exactly one of
// several concurrent callers observes the expected state
func (r *wagerRepository) TransitionState(ctx context.Context, t models.WagerTransition) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	wager, ok := r.s.wagers[t.WagerID]
	if !ok || wager.State != t.From {
		return false, nil
	}
	wager.State = t.To
	at := t.At
	if t.AcceptorID != nil {
		acceptor := *t.AcceptorID
		wager.AcceptorID = &acceptor
		wager.AcceptedAt = &at
	}
	if t.WinnerID != nil {
		winner := *t.WinnerID
		wager.WinnerID = &winner
	}
	if t.To.IsTerminal() {
		wager.ResolvedAt = &at
	}
	return true, nil
}

func (r *wagerRepository) GetExpiredOpen(ctx context.Context, now time.Time) ([]*models.Wager, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var expired []*models.Wager
	for _, wager := range r.s.wagers {
		if wager.IsOpen() && wager.IsExpired(now) {
			expired = append(expired, wager.Clone())
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	return expired, nil
}

func (r *wagerRepository) CountOpen(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count := 0
	for _, wager := range r.s.wagers {
		if wager.IsOpen() {
			count++
		}
	}
	return count, nil
}

func (r *wagerRepository) PurgeClosed(ctx context.Context, before time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	purged := 0
	for id, wager := range r.s.wagers {
		if wager.State.IsTerminal() && wager.ResolvedAt != nil && wager.ResolvedAt.Before(before) {
			delete(r.s.wagers, id)
			purged++
		}
	}
	return purged, nil
}

// challengeRepository implements service.ChallengeRepository
type challengeRepository struct {
	s *Store
}

func (r *challengeRepository) GetByAccount(ctx context.Context, accountID string) (*models.VerificationChallenge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.challenges[accountID].Clone(), nil
}

func (r *challengeRepository) Save(ctx context.Context, challenge *models.VerificationChallenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.challenges[challenge.AccountID] = challenge.Clone()
	return nil
}

func (r *challengeRepository) Delete(ctx context.Context, accountID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.challenges[accountID]; !ok {
		return false, nil
	}
	delete(r.s.challenges, accountID)
	return true, nil
}

func (r *challengeRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	removed := 0
	for id, challenge := range r.s.challenges {
		if challenge.IsExpired(now) {
			delete(r.s.challenges, id)
			removed++
		}
	}
	return removed, nil
}
