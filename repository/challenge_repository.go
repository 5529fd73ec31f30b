package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roombot/database"
	"roombot/models"

	"github.com/jackc/pgx/v5"
)

// ChallengeRepository implements the ChallengeRepository interface
type ChallengeRepository struct {
	q queryable
}

// NewChallengeRepository creates a new challenge repository
func NewChallengeRepository(db *database.DB) *ChallengeRepository {
	return &ChallengeRepository{q: db.Pool}
}

// newChallengeRepositoryWithTx creates a new challenge repository with a transaction
func newChallengeRepositoryWithTx(tx queryable) *ChallengeRepository {
	return &ChallengeRepository{q: tx}
}

// GetByAccount returns the pending challenge of an account
func (r *ChallengeRepository) GetByAccount(ctx context.Context, accountID string) (*models.VerificationChallenge, error) {
	query := `
		SELECT account_id, symbols, invite_code, expires_at, attempts, created_at
		FROM verification_challenges
		WHERE account_id = $1
	`

	var challenge models.VerificationChallenge
	err := r.q.QueryRow(ctx, query, accountID).Scan(
		&challenge.AccountID,
		&challenge.Symbols,
		&challenge.InviteCode,
		&challenge.ExpiresAt,
		&challenge.Attempts,
		&challenge.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge for %s: %w", accountID, err)
	}
	return &challenge, nil
}

// Save creates or replaces the challenge of an account
func (r *ChallengeRepository) Save(ctx context.Context, challenge *models.VerificationChallenge) error {
	query := `
		INSERT INTO verification_challenges (account_id, symbols, invite_code, expires_at, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			symbols     = EXCLUDED.symbols,
			invite_code = EXCLUDED.invite_code,
			expires_at  = EXCLUDED.expires_at,
			attempts    = EXCLUDED.attempts,
			created_at  = EXCLUDED.created_at
	`

	_, err := r.q.Exec(ctx, query,
		challenge.AccountID,
		challenge.Symbols,
		challenge.InviteCode,
		challenge.ExpiresAt,
		challenge.Attempts,
		challenge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save challenge for %s: %w", challenge.AccountID, err)
	}
	return nil
}

// Delete removes the challenge and reports whether one existed
func (r *ChallengeRepository) Delete(ctx context.Context, accountID string) (bool, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM verification_challenges WHERE account_id = $1`, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to delete challenge for %s: %w", accountID, err)
	}
	return result.RowsAffected() == 1, nil
}

// DeleteExpired removes challenges that expired before now
func (r *ChallengeRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM verification_challenges WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}
	return int(result.RowsAffected()), nil
}
