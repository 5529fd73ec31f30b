package service

import (
	"context"
	"fmt"

	"roombot/events"
	"roombot/models"
)

// RecordBalanceChange records a balance history entry and emits the change event.
// This is the single entry point for all balance history in the system.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Emitted after the unit of work commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		AccountID:       history.AccountID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
		Reason:          history.Reason,
	})

	return nil
}
