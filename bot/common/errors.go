package common

import (
	"errors"

	"roombot/service"
)

// UserMessage turns an engine error into text safe to show in Discord.
// Domain errors keep their message; anything else is reported generically.
func UserMessage(err error) string {
	var domainErr *service.DomainError
	if !errors.As(err, &domainErr) {
		return "Something went wrong. Please try again."
	}

	switch domainErr.Kind {
	case service.KindInsufficientFunds:
		return "💸 " + domainErr.Message
	case service.KindRateLimited:
		return "⏳ " + domainErr.Message
	case service.KindForbidden:
		return "🚫 " + domainErr.Message
	default:
		return domainErr.Message
	}
}
