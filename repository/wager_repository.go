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

const wagerColumns = `id, challenger_id, stake, state, acceptor_id, winner_id, created_at, expires_at, accepted_at, resolved_at`

// WagerRepository implements the WagerRepository interface
type WagerRepository struct {
	q queryable
}

// NewWagerRepository creates a new wager repository
func NewWagerRepository(db *database.DB) *WagerRepository {
	return &WagerRepository{q: db.Pool}
}

// newWagerRepositoryWithTx creates a new wager repository with a transaction
func newWagerRepositoryWithTx(tx queryable) *WagerRepository {
	return &WagerRepository{q: tx}
}

// Create stores a new wager
func (r *WagerRepository) Create(ctx context.Context, wager *models.Wager) error {
	query := `
		INSERT INTO wagers (id, challenger_id, stake, state, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.Exec(ctx, query,
		wager.ID,
		wager.ChallengerID,
		wager.Stake,
		wager.State,
		wager.CreatedAt,
		wager.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wager %s: %w", wager.ID, err)
	}
	return nil
}

// GetByID retrieves a wager by its ID
func (r *WagerRepository) GetByID(ctx context.Context, id string) (*models.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE id = $1`

	wager, err := scanWager(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager %s: %w", id, err)
	}
	return wager, nil
}

// TransitionState updates the state only while it still equals the expected
// one. Concurrent callers block on the row lock and then match zero rows.
func (r *WagerRepository) TransitionState(ctx context.Context, t models.WagerTransition) (bool, error) {
	query := `
		UPDATE wagers SET
			state       = $3,
			acceptor_id = COALESCE($4, acceptor_id),
			accepted_at = CASE WHEN $4::TEXT IS NOT NULL THEN $5 ELSE accepted_at END,
			winner_id   = COALESCE($6, winner_id),
			resolved_at = CASE WHEN $7 THEN $5 ELSE resolved_at END
		WHERE id = $1 AND state = $2
	`

	result, err := r.q.Exec(ctx, query,
		t.WagerID,
		t.From,
		t.To,
		t.AcceptorID,
		t.At,
		t.WinnerID,
		t.To.IsTerminal(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition wager %s from %s to %s: %w", t.WagerID, t.From, t.To, err)
	}
	return result.RowsAffected() == 1, nil
}

// GetExpiredOpen returns open wagers whose window closed before now
func (r *WagerRepository) GetExpiredOpen(ctx context.Context, now time.Time) ([]*models.Wager, error) {
	query := `
		SELECT ` + wagerColumns + `
		FROM wagers
		WHERE state = 'open' AND expires_at < $1
		ORDER BY expires_at
	`

	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired wagers: %w", err)
	}
	defer rows.Close()

	var wagers []*models.Wager
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, wager)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wagers: %w", err)
	}

	return wagers, nil
}

// CountOpen returns the number of open wagers
func (r *WagerRepository) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM wagers WHERE state = 'open'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open wagers: %w", err)
	}
	return count, nil
}

// PurgeClosed deletes terminal wagers resolved before the cutoff
func (r *WagerRepository) PurgeClosed(ctx context.Context, before time.Time) (int, error) {
	query := `
		DELETE FROM wagers
		WHERE state IN ('settled', 'cancelled', 'expired') AND resolved_at < $1
	`

	result, err := r.q.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge closed wagers: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func scanWager(row pgx.Row) (*models.Wager, error) {
	var wager models.Wager
	err := row.Scan(
		&wager.ID,
		&wager.ChallengerID,
		&wager.Stake,
		&wager.State,
		&wager.AcceptorID,
		&wager.WinnerID,
		&wager.CreatedAt,
		&wager.ExpiresAt,
		&wager.AcceptedAt,
		&wager.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &wager, nil
}
