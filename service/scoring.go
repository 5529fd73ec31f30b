package service

import (
	"math"
	"time"

	"roombot/config"
	"roombot/models"

	"github.com/shopspring/decimal"
)

// Scorer holds the pure scoring curves of the economy. Scores are always
// recomputed from stored counters, never persisted.
type Scorer struct {
	economy config.Economy
}

// NewScorer creates a scorer for the given economy
func NewScorer(economy config.Economy) *Scorer {
	return &Scorer{economy: economy}
}

// LevelThreshold is the XP needed to leave the given level:
// base * level * (1 + floor(level/10))
func (s *Scorer) LevelThreshold(level int) int64 {
	l := int64(level)
	return s.economy.LevelXPBase * l * (1 + l/10)
}

// CheckLevelUp consumes XP into levels while the threshold is met.
// Reports whether at least one level was gained.
func (s *Scorer) CheckLevelUp(account *models.Account) bool {
	leveled := false
	for {
		threshold := s.LevelThreshold(account.Level)
		if threshold <= 0 || account.XP < threshold {
			return leveled
		}
		account.XP -= threshold
		account.Level++
		leveled = true
	}
}

// XPForNextLevel is how much XP is still missing for the next level
func (s *Scorer) XPForNextLevel(account *models.Account) int64 {
	remaining := s.LevelThreshold(account.Level) - account.XP
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Loveliness is the slow-decaying engagement score. After the grace period
// it decays by DecayRate per day of inactivity and approaches zero.
func (s *Scorer) Loveliness(account *models.Account, now time.Time) float64 {
	raw := float64(account.MessagesSent)*0.1 + float64(account.DaysActive)*5

	daysInactive := now.Sub(account.LastActiveAt).Hours() / 24
	if daysInactive > s.economy.DecayGraceDays {
		raw *= math.Pow(s.economy.DecayRate, daysInactive-s.economy.DecayGraceDays)
	}
	return round2(raw)
}

// Heat is the short-lived inviting score. It uses the lifetime success
// counter and ramps linearly down to zero at the end of the heat window.
func (s *Scorer) Heat(account *models.Account, now time.Time) float64 {
	if account.LastInviteSuccessAt == nil {
		return 0
	}
	window := s.economy.HeatWindow.Hours()
	hoursSince := now.Sub(*account.LastInviteSuccessAt).Hours()
	if window <= 0 || hoursSince >= window {
		return 0
	}
	if hoursSince < 0 {
		hoursSince = 0
	}
	decay := (window - hoursSince) / window
	return round2(float64(account.InvitesSuccessful) * decay)
}

// WagerXP is floor(stake * multiplier * (1 + loveliness/100))
func (s *Scorer) WagerXP(stake decimal.Decimal, loveliness float64) int64 {
	bonus := decimal.NewFromInt(1).Add(decimal.NewFromFloat(loveliness).Div(decimal.NewFromInt(100)))
	return stake.Mul(decimal.NewFromFloat(s.economy.WagerXPMultiplier)).Mul(bonus).Floor().IntPart()
}

// StreakMultiplier is 1 + streak * rate
func (s *Scorer) StreakMultiplier(streak int) decimal.Decimal {
	rate := decimal.NewFromFloat(s.economy.StreakRate)
	return decimal.NewFromInt(1).Add(rate.Mul(decimal.NewFromInt(int64(streak))))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
