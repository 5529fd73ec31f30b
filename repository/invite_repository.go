package repository

import (
	"context"
	"errors"
	"fmt"

	"roombot/database"
	"roombot/models"
	"roombot/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// InviteRepository implements the InviteRepository interface
type InviteRepository struct {
	q queryable
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db *database.DB) *InviteRepository {
	return &InviteRepository{q: db.Pool}
}

// newInviteRepositoryWithTx creates a new invite repository with a transaction
func newInviteRepositoryWithTx(tx queryable) *InviteRepository {
	return &InviteRepository{q: tx}
}

// Create stores a new invite link
func (r *InviteRepository) Create(ctx context.Context, link *models.InviteLink) error {
	query := `
		INSERT INTO invite_links (code, owner_id, group_id, created_at, active, total_uses, redeemers)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO NOTHING
	`

	redeemers := link.Redeemers
	if redeemers == nil {
		redeemers = []string{}
	}
	result, err := r.q.Exec(ctx, query,
		link.Code,
		link.OwnerID,
		link.GroupID,
		link.CreatedAt,
		link.Active,
		link.TotalUses,
		redeemers,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("owner %s already has an active invite in %s: %w", link.OwnerID, link.GroupID, err)
		}
		return fmt.Errorf("failed to create invite %s: %w", link.Code, err)
	}
	if result.RowsAffected() == 0 {
		return service.ErrDuplicateInviteCode
	}

	return nil
}

// GetByCode retrieves an invite link by code
func (r *InviteRepository) GetByCode(ctx context.Context, code string) (*models.InviteLink, error) {
	query := `
		SELECT code, owner_id, group_id, created_at, active, total_uses, redeemers
		FROM invite_links
		WHERE code = $1
	`

	link, err := scanInvite(r.q.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite %s: %w", code, err)
	}
	return link, nil
}

// GetActive returns the active link of an owner in a group
func (r *InviteRepository) GetActive(ctx context.Context, ownerID, groupID string) (*models.InviteLink, error) {
	query := `
		SELECT code, owner_id, group_id, created_at, active, total_uses, redeemers
		FROM invite_links
		WHERE owner_id = $1 AND group_id = $2 AND active
	`

	link, err := scanInvite(r.q.QueryRow(ctx, query, ownerID, groupID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active invite for %s: %w", ownerID, err)
	}
	return link, nil
}

// DeactivateActive deactivates the owner's active links in the group
func (r *InviteRepository) DeactivateActive(ctx context.Context, ownerID, groupID string) (int, error) {
	query := `
		UPDATE invite_links
		SET active = FALSE
		WHERE owner_id = $1 AND group_id = $2 AND active
	`

	result, err := r.q.Exec(ctx, query, ownerID, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate invites for %s: %w", ownerID, err)
	}
	return int(result.RowsAffected()), nil
}

// RecordUse increments the use counter and appends a new redeemer
func (r *InviteRepository) RecordUse(ctx context.Context, code, redeemerID string) error {
	query := `
		UPDATE invite_links
		SET total_uses = total_uses + 1,
		    redeemers = CASE WHEN $2 = ANY(redeemers) THEN redeemers ELSE array_append(redeemers, $2) END
		WHERE code = $1
	`

	result, err := r.q.Exec(ctx, query, code, redeemerID)
	if err != nil {
		return fmt.Errorf("failed to record use of invite %s: %w", code, err)
	}
	if result.RowsAffected() == 0 {
		return service.ErrInviteNotFound
	}
	return nil
}

// Count returns the number of links ever issued
func (r *InviteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM invite_links`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count invites: %w", err)
	}
	return count, nil
}

func scanInvite(row pgx.Row) (*models.InviteLink, error) {
	var link models.InviteLink
	err := row.Scan(
		&link.Code,
		&link.OwnerID,
		&link.GroupID,
		&link.CreatedAt,
		&link.Active,
		&link.TotalUses,
		&link.Redeemers,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}
