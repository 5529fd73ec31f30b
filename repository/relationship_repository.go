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

// RelationshipRepository implements the RelationshipRepository interface
type RelationshipRepository struct {
	q queryable
}

// NewRelationshipRepository creates a new relationship repository
func NewRelationshipRepository(db *database.DB) *RelationshipRepository {
	return &RelationshipRepository{q: db.Pool}
}

// newRelationshipRepositoryWithTx creates a new relationship repository with a transaction
func newRelationshipRepositoryWithTx(tx queryable) *RelationshipRepository {
	return &RelationshipRepository{q: tx}
}

// GetByChild returns the edge from a child to its parent
func (r *RelationshipRepository) GetByChild(ctx context.Context, childID string) (*models.Relationship, error) {
	query := `
		SELECT child_id, parent_id, invite_code, group_id, created_at, activated_at
		FROM relationships
		WHERE child_id = $1
	`

	var rel models.Relationship
	err := r.q.QueryRow(ctx, query, childID).Scan(
		&rel.ChildID,
		&rel.ParentID,
		&rel.InviteCode,
		&rel.GroupID,
		&rel.CreatedAt,
		&rel.ActivatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship for %s: %w", childID, err)
	}
	return &rel, nil
}

// relationshipLockKey serializes edge inserts so the cycle check and the insert see the same graph
const relationshipLockKey int64 = 0x726f6f6d

// Create inserts the edge unless the child already has a parent. It fails
// with ErrReferralCycle when the child is already an ancestor of the parent.
// The advisory lock is held until the surrounding transaction ends.
func (r *RelationshipRepository) Create(ctx context.Context, rel *models.Relationship) (bool, error) {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, relationshipLockKey); err != nil {
		return false, fmt.Errorf("failed to lock relationships: %w", err)
	}

	cycleQuery := `
		WITH RECURSIVE chain(id) AS (
			SELECT $1::TEXT
			UNION
			SELECT r.parent_id FROM relationships r JOIN chain c ON r.child_id = c.id
		)
		SELECT EXISTS (SELECT 1 FROM chain WHERE id = $2)
	`
	var cycle bool
	if err := r.q.QueryRow(ctx, cycleQuery, rel.ParentID, rel.ChildID).Scan(&cycle); err != nil {
		return false, fmt.Errorf("failed to check ancestors of %s: %w", rel.ParentID, err)
	}
	if cycle {
		return false, service.ErrReferralCycle
	}

	query := `
		INSERT INTO relationships (child_id, parent_id, invite_code, group_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (child_id) DO NOTHING
	`

	result, err := r.q.Exec(ctx, query, rel.ChildID, rel.ParentID, rel.InviteCode, rel.GroupID, rel.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create relationship %s -> %s: %w", rel.ChildID, rel.ParentID, err)
	}
	return result.RowsAffected() == 1, nil
}

// MarkActivated sets activated_at on the first call only
func (r *RelationshipRepository) MarkActivated(ctx context.Context, childID string, at time.Time) (bool, error) {
	query := `
		UPDATE relationships
		SET activated_at = $2
		WHERE child_id = $1 AND activated_at IS NULL
	`

	result, err := r.q.Exec(ctx, query, childID, at)
	if err != nil {
		return false, fmt.Errorf("failed to activate relationship for %s: %w", childID, err)
	}
	return result.RowsAffected() == 1, nil
}
