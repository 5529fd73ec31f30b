package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"roombot/config"
	"roombot/events"
	"roombot/models"

	log "github.com/sirupsen/logrus"
)

type verificationService struct {
	economy config.Economy
	rnd     RandomSource
}

// NewVerificationService creates a new verification challenge service
func NewVerificationService(economy config.Economy, rnd RandomSource) VerificationService {
	return &verificationService{
		economy: economy,
		rnd:     rnd,
	}
}

// Issue picks distinct symbols from the palette in random order and stores
// them as the pending challenge, replacing any previous one. Attempts spent
// on a replaced challenge that has not expired carry over.
func (s *verificationService) Issue(ctx context.Context, uow UnitOfWork, accountID, inviteCode string, now time.Time) (*models.VerificationChallenge, error) {
	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if account.IsBlacklisted(now) {
		return nil, ErrBlacklisted.Withf("blocked until %s", account.BlacklistedUntil.Format(time.RFC3339))
	}

	palette := s.economy.VerificationSymbols
	length := min(s.economy.VerificationLength, len(palette))
	perm := s.rnd.Perm(len(palette))
	symbols := make([]string, 0, length)
	for _, idx := range perm[:length] {
		symbols = append(symbols, palette[idx])
	}

	previous, err := uow.ChallengeRepository().GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	challenge := &models.VerificationChallenge{
		AccountID:  accountID,
		Symbols:    symbols,
		InviteCode: inviteCode,
		ExpiresAt:  now.Add(s.economy.VerificationTTL),
		CreatedAt:  now,
	}
	if previous != nil && !previous.IsExpired(now) {
		challenge.Attempts = previous.Attempts
	}
	if err := uow.ChallengeRepository().Save(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to save challenge: %w", err)
	}

	log.WithFields(log.Fields{
		"account": accountID,
		"code":    inviteCode,
		"expires": challenge.ExpiresAt,
	}).Info("Verification challenge issued")
	return challenge, nil
}

// Submit checks an answer against the pending challenge. Submissions are
// serialized per account by running inside the account's update.
func (s *verificationService) Submit(ctx context.Context, uow UnitOfWork, accountID, answer string, now time.Time) (*models.VerificationOutcome, error) {
	challenges := uow.ChallengeRepository()
	outcome := &models.VerificationOutcome{}
	blacklisted := false

	_, err := uow.AccountRepository().Update(ctx, accountID, func(a *models.Account) error {
		challenge, err := challenges.GetByAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to get challenge: %w", err)
		}
		if challenge == nil {
			return ErrChallengeNotFound
		}
		if challenge.IsExpired(now) {
			if _, err := challenges.Delete(ctx, accountID); err != nil {
				return fmt.Errorf("failed to delete challenge: %w", err)
			}
			return ErrChallengeExpired
		}

		normalized := stripWhitespace(answer)
		if normalized == "" {
			return ErrMalformedAnswer
		}

		challenge.Attempts++
		outcome.InviteCode = challenge.InviteCode

		if normalized == challenge.Expected() {
			if _, err := challenges.Delete(ctx, accountID); err != nil {
				return fmt.Errorf("failed to delete challenge: %w", err)
			}
			outcome.Verified = true
			return nil
		}

		if challenge.Attempts >= s.economy.VerificationAttempts {
			until := now.Add(s.economy.BlacklistDuration)
			a.BlacklistedUntil = &until
			if _, err := challenges.Delete(ctx, accountID); err != nil {
				return fmt.Errorf("failed to delete challenge: %w", err)
			}
			outcome.Blacklisted = true
			outcome.BlacklistedUntil = &until
			outcome.InviteCode = ""
			blacklisted = true
			return nil
		}

		if err := challenges.Save(ctx, challenge); err != nil {
			return fmt.Errorf("failed to save challenge: %w", err)
		}
		outcome.InviteCode = ""
		outcome.AttemptsRemaining = s.economy.VerificationAttempts - challenge.Attempts
		return nil
	})
	if err != nil {
		return nil, err
	}

	if blacklisted {
		uow.EventBus().Publish(events.AccountBlacklistedEvent{
			AccountID: accountID,
			Until:     outcome.BlacklistedUntil.Format(time.RFC3339),
		})
		log.WithFields(log.Fields{
			"account": accountID,
			"until":   outcome.BlacklistedUntil,
		}).Warn("Account blacklisted after failed verification")
	}
	return outcome, nil
}

// SweepExpired discards challenges whose window passed
func (s *verificationService) SweepExpired(ctx context.Context, uow UnitOfWork, now time.Time) (int, error) {
	removed, err := uow.ChallengeRepository().DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}
	return removed, nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
