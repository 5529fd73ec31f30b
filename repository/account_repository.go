package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roombot/database"
	"roombot/models"
	"roombot/service"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `
	id, balance, xp, level,
	messages_sent, days_active, last_active_at, last_active_day, last_message_xp_at,
	last_invite_success_at, invite_streak, invites_sent, invites_successful, milestones_reached,
	wagers_won, wagers_lost, total_earned, total_spent,
	last_daily_bonus_at, blacklisted_until, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return account, nil
}

// GetOrCreate returns the account, inserting a fresh row on first interaction
func (r *AccountRepository) GetOrCreate(ctx context.Context, id string, now time.Time) (*models.Account, error) {
	fresh := models.NewAccount(id, now)

	query := `
		INSERT INTO accounts (id, balance, level, last_active_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, query, fresh.ID, fresh.Balance, fresh.Level, fresh.LastActiveAt, fresh.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", id, err)
	}

	account, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %s missing after insert", id)
	}
	return account, nil
}

// Update locks the row for the rest of the transaction, applies fn and
// writes every mutable column back
func (r *AccountRepository) Update(ctx context.Context, id string, fn func(account *models.Account) error) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %s: %w", id, err)
	}

	if err := fn(account); err != nil {
		return nil, err
	}
	account.UpdatedAt = time.Now().UTC()

	update := `
		UPDATE accounts SET
			balance = $2, xp = $3, level = $4,
			messages_sent = $5, days_active = $6, last_active_at = $7, last_active_day = $8, last_message_xp_at = $9,
			last_invite_success_at = $10, invite_streak = $11, invites_sent = $12, invites_successful = $13, milestones_reached = $14,
			wagers_won = $15, wagers_lost = $16, total_earned = $17, total_spent = $18,
			last_daily_bonus_at = $19, blacklisted_until = $20, updated_at = $21
		WHERE id = $1
	`
	milestones := account.MilestonesReached
	if milestones == nil {
		milestones = []int{}
	}
	_, err = r.q.Exec(ctx, update,
		account.ID,
		account.Balance,
		account.XP,
		account.Level,
		account.MessagesSent,
		account.DaysActive,
		account.LastActiveAt,
		account.LastActiveDay,
		account.LastMessageXPAt,
		account.LastInviteSuccessAt,
		account.InviteStreak,
		account.InvitesSent,
		account.InvitesSuccessful,
		milestones,
		account.WagersWon,
		account.WagersLost,
		account.TotalEarned,
		account.TotalSpent,
		account.LastDailyBonusAt,
		account.BlacklistedUntil,
		account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update account %s: %w", id, err)
	}

	return account, nil
}

// GetAll returns all accounts ordered by ID
func (r *AccountRepository) GetAll(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// ClearExpiredBlacklists resets blacklists whose end lies at or before now
func (r *AccountRepository) ClearExpiredBlacklists(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE accounts
		SET blacklisted_until = NULL, updated_at = NOW()
		WHERE blacklisted_until IS NOT NULL AND blacklisted_until <= $1
	`

	result, err := r.q.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired blacklists: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.Balance,
		&account.XP,
		&account.Level,
		&account.MessagesSent,
		&account.DaysActive,
		&account.LastActiveAt,
		&account.LastActiveDay,
		&account.LastMessageXPAt,
		&account.LastInviteSuccessAt,
		&account.InviteStreak,
		&account.InvitesSent,
		&account.InvitesSuccessful,
		&account.MilestonesReached,
		&account.WagersWon,
		&account.WagersLost,
		&account.TotalEarned,
		&account.TotalSpent,
		&account.LastDailyBonusAt,
		&account.BlacklistedUntil,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
