package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"roombot/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	inviteCodePrefix   = "LOVE"
	inviteCodeAttempts = 5
)

type referralService struct{}

// NewReferralService creates a new referral graph service
func NewReferralService() ReferralService {
	return &referralService{}
}

// generateInviteCode hashes owner, time and a random salt into a short code
func generateInviteCode(ownerID string, now time.Time) string {
	seed := fmt.Sprintf("%s_%d_%s", ownerID, now.UnixNano(), uuid.NewString())
	sum := md5.Sum([]byte(seed))
	return inviteCodePrefix + strings.ToUpper(hex.EncodeToString(sum[:])[:8])
}

// IssueInvite deactivates the owner's active link in the group and issues a new one
func (s *referralService) IssueInvite(ctx context.Context, uow UnitOfWork, ownerID, groupID string, now time.Time) (*models.InviteLink, error) {
	invites := uow.InviteRepository()

	deactivated, err := invites.DeactivateActive(ctx, ownerID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate invite: %w", err)
	}

	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		link := &models.InviteLink{
			Code:      generateInviteCode(ownerID, now),
			OwnerID:   ownerID,
			GroupID:   groupID,
			CreatedAt: now,
			Active:    true,
		}
		err := invites.Create(ctx, link)
		if errors.Is(err, ErrDuplicateInviteCode) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create invite: %w", err)
		}

		if _, err := uow.AccountRepository().Update(ctx, ownerID, func(a *models.Account) error {
			a.InvitesSent++
			return nil
		}); err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{
			"owner":       ownerID,
			"group":       groupID,
			"code":        link.Code,
			"deactivated": deactivated,
		}).Info("Issued invite link")
		return link, nil
	}
	return nil, fmt.Errorf("failed to generate a unique invite code after %d attempts", inviteCodeAttempts)
}

// GetOrIssueInvite returns the active link, issuing one if none exists
func (s *referralService) GetOrIssueInvite(ctx context.Context, uow UnitOfWork, ownerID, groupID string, now time.Time) (*models.InviteLink, error) {
	link, err := uow.InviteRepository().GetActive(ctx, ownerID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active invite: %w", err)
	}
	if link != nil {
		return link, nil
	}
	return s.IssueInvite(ctx, uow, ownerID, groupID, now)
}

// ValidateRedemption checks that the candidate may redeem the code without
// changing any state. A candidate already linked to the code's owner passes.
func (s *referralService) ValidateRedemption(ctx context.Context, uow UnitOfWork, code, candidateID string) (*models.InviteLink, error) {
	link, err := uow.InviteRepository().GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	if link == nil {
		return nil, ErrInviteNotFound
	}
	if !link.Active {
		return nil, ErrInviteInactive
	}
	if link.OwnerID == candidateID {
		return nil, ErrSelfInvite
	}

	existing, err := uow.RelationshipRepository().GetByChild(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	if existing != nil {
		if existing.ParentID == link.OwnerID {
			return link, nil
		}
		return nil, ErrAlreadyLinked
	}

	// The owner must not descend from the candidate
	isAncestor, err := s.isAncestor(ctx, uow, candidateID, link.OwnerID)
	if err != nil {
		return nil, err
	}
	if isAncestor {
		return nil, ErrReferralCycle
	}
	return link, nil
}

// Redeem records the referral edge once and counts the use of the code.
// Redeeming again for the same parent is a no-op.
func (s *referralService) Redeem(ctx context.Context, uow UnitOfWork, code, candidateID string, now time.Time) (*models.InviteLink, error) {
	link, err := s.ValidateRedemption(ctx, uow, code, candidateID)
	if err != nil {
		return nil, err
	}

	created, err := uow.RelationshipRepository().Create(ctx, &models.Relationship{
		ChildID:    candidateID,
		ParentID:   link.OwnerID,
		InviteCode: link.Code,
		GroupID:    link.GroupID,
		CreatedAt:  now,
	})
	if errors.Is(err, ErrReferralCycle) {
		return nil, ErrReferralCycle
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create relationship: %w", err)
	}
	if !created {
		existing, err := uow.RelationshipRepository().GetByChild(ctx, candidateID)
		if err != nil {
			return nil, fmt.Errorf("failed to get relationship: %w", err)
		}
		if existing == nil || existing.ParentID != link.OwnerID {
			return nil, ErrAlreadyLinked
		}
		return link, nil
	}

	if err := uow.InviteRepository().RecordUse(ctx, link.Code, candidateID); err != nil {
		return nil, fmt.Errorf("failed to record invite use: %w", err)
	}

	log.WithFields(log.Fields{
		"code":  link.Code,
		"owner": link.OwnerID,
		"child": candidateID,
		"group": link.GroupID,
	}).Info("Invite redeemed")
	return link, nil
}

// ParentOf returns the parent of an account, "" for roots
func (s *referralService) ParentOf(ctx context.Context, uow UnitOfWork, accountID string) (string, error) {
	rel, err := uow.RelationshipRepository().GetByChild(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to get relationship: %w", err)
	}
	if rel == nil {
		return "", nil
	}
	return rel.ParentID, nil
}

// isAncestor walks up from accountID looking for candidateID
func (s *referralService) isAncestor(ctx context.Context, uow UnitOfWork, candidateID, accountID string) (bool, error) {
	seen := make(map[string]bool)
	current := accountID
	for current != "" && !seen[current] {
		if current == candidateID {
			return true, nil
		}
		seen[current] = true
		parent, err := s.ParentOf(ctx, uow, current)
		if err != nil {
			return false, err
		}
		current = parent
	}
	return false, nil
}
