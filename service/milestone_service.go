package service

import (
	"context"
	"slices"

	"roombot/events"
	"roombot/models"

	log "github.com/sirupsen/logrus"
)

type milestoneService struct {
	thresholds []int
}

// NewMilestoneService creates a milestone tracker for the given thresholds
func NewMilestoneService(thresholds []int) MilestoneService {
	sorted := slices.Clone(thresholds)
	slices.Sort(sorted)
	return &milestoneService{thresholds: sorted}
}

// CheckMilestones records every threshold the account's successful invites
// reached and that was not recorded before. Each one is announced once.
func (s *milestoneService) CheckMilestones(ctx context.Context, uow UnitOfWork, accountID string) ([]int, error) {
	var reached []int
	var invites int

	_, err := uow.AccountRepository().Update(ctx, accountID, func(a *models.Account) error {
		reached = reached[:0]
		invites = a.InvitesSuccessful
		for _, threshold := range s.thresholds {
			if a.InvitesSuccessful >= threshold && !a.HasMilestone(threshold) {
				a.MilestonesReached = append(a.MilestonesReached, threshold)
				reached = append(reached, threshold)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, threshold := range reached {
		uow.EventBus().Publish(events.MilestoneReachedEvent{
			AccountID:         accountID,
			Threshold:         threshold,
			InvitesSuccessful: invites,
		})
		log.WithFields(log.Fields{
			"account":   accountID,
			"threshold": threshold,
		}).Info("Milestone reached")
	}
	return reached, nil
}
