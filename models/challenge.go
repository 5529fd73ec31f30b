package models

import (
	"slices"
	"strings"
	"time"
)

// VerificationChallenge gates entry into the network for one account.
type VerificationChallenge struct {
	AccountID  string    `db:"account_id"`
	Symbols    []string  `db:"symbols"`
	InviteCode string    `db:"invite_code"`
	ExpiresAt  time.Time `db:"expires_at"`
	Attempts   int       `db:"attempts"`
	CreatedAt  time.Time `db:"created_at"`
}

// Expected is the exact answer string, symbols concatenated in order
func (c *VerificationChallenge) Expected() string {
	return strings.Join(c.Symbols, "")
}

// IsExpired reports whether the challenge can no longer be answered
func (c *VerificationChallenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Prompt is the human readable instruction shown to the candidate
func (c *VerificationChallenge) Prompt() string {
	return "Type these symbols in order: " + strings.Join(c.Symbols, " ")
}

// Clone returns a deep copy of the challenge
func (c *VerificationChallenge) Clone() *VerificationChallenge {
	if c == nil {
		return nil
	}
	v := *c
	v.Symbols = slices.Clone(c.Symbols)
	return &v
}
