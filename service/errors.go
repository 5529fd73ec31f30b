package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies expected, user driven failures. Every kind is
// recoverable at the call site.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidState      ErrorKind = "invalid_state"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindForbidden         ErrorKind = "forbidden"
	KindRateLimited       ErrorKind = "rate_limited"
)

// DomainError is an expected failure of an engine operation.
// Two DomainErrors match under errors.Is when their codes are equal.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on the error code so wrapped or re-detailed errors still compare equal
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Withf returns a copy of the error with a more specific message
func (e *DomainError) Withf(format string, args ...any) *DomainError {
	return &DomainError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

func newDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

var (
	ErrAccountNotFound   = newDomainError(KindNotFound, "account_not_found", "account not found")
	ErrInsufficientFunds = newDomainError(KindInsufficientFunds, "insufficient_funds", "insufficient funds")
	ErrInvalidAmount     = newDomainError(KindInvalidInput, "invalid_amount", "amount must be positive")

	// Referral graph
	ErrInviteNotFound = newDomainError(KindNotFound, "invite_not_found", "invite code does not exist")
	ErrInviteInactive = newDomainError(KindInvalidState, "invite_inactive", "invite code has been deactivated")
	ErrSelfInvite     = newDomainError(KindForbidden, "self_invite", "cannot redeem your own invite")
	ErrAlreadyLinked  = newDomainError(KindInvalidState, "already_linked", "account already joined through an invite")
	ErrNotInvited     = newDomainError(KindNotFound, "not_invited", "account did not join through an invite")
	ErrReferralCycle  = newDomainError(KindForbidden, "referral_cycle", "cannot join through someone you invited")

	// Verification
	ErrBlacklisted       = newDomainError(KindRateLimited, "blacklisted", "account is temporarily blocked")
	ErrChallengeNotFound = newDomainError(KindNotFound, "challenge_not_found", "no pending verification")
	ErrChallengeExpired  = newDomainError(KindNotFound, "challenge_expired", "verification expired")
	ErrMalformedAnswer   = newDomainError(KindInvalidInput, "malformed_answer", "answer is empty")

	// Duels
	ErrWagerNotFound        = newDomainError(KindNotFound, "wager_not_found", "duel not found")
	ErrInvalidStake         = newDomainError(KindInvalidInput, "invalid_stake", "stake out of range")
	ErrSelfAccept           = newDomainError(KindForbidden, "self_accept", "cannot accept your own duel")
	ErrWagerExpired         = newDomainError(KindInvalidState, "wager_expired", "duel has expired")
	ErrWagerAlreadyAccepted = newDomainError(KindInvalidState, "wager_already_accepted", "duel was already accepted")
	ErrNotChallenger        = newDomainError(KindForbidden, "not_challenger", "only the challenger can cancel")
	ErrWagerClosed          = newDomainError(KindInvalidState, "wager_closed", "duel is already closed")

	// Gifts and bonuses
	ErrInvalidGift        = newDomainError(KindInvalidInput, "invalid_gift", "gift amount out of range")
	ErrSelfGift           = newDomainError(KindForbidden, "self_gift", "cannot gift yourself")
	ErrDailyBonusCooldown = newDomainError(KindRateLimited, "daily_bonus_cooldown", "daily bonus already claimed")
)

// KindOf returns the kind of a domain error, or "" for infrastructure errors
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsDomainError reports whether err is an expected engine failure
func IsDomainError(err error) bool {
	return KindOf(err) != ""
}
