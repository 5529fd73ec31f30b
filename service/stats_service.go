package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"roombot/models"

	"github.com/shopspring/decimal"
)

const (
	leaderboardLimit     = 10
	heatLeaderboardLimit = 5
)

// statsService implements the StatsService interface
type statsService struct {
	scorer *Scorer
}

// NewStatsService creates a new stats service
func NewStatsService(scorer *Scorer) StatsService {
	return &statsService{
		scorer: scorer,
	}
}

// Profile returns the account with its computed scores
func (s *statsService) Profile(ctx context.Context, uow UnitOfWork, accountID string, now time.Time) (*models.Profile, error) {
	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	return &models.Profile{
		Account:        account,
		Loveliness:     s.scorer.Loveliness(account, now),
		Heat:           s.scorer.Heat(account, now),
		XPForNextLevel: s.scorer.XPForNextLevel(account),
	}, nil
}

// Leaderboards ranks every account by balance, level, loveliness and heat
func (s *statsService) Leaderboards(ctx context.Context, uow UnitOfWork, now time.Time) (*models.Leaderboards, error) {
	accounts, err := uow.AccountRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(accounts))
	for _, account := range accounts {
		entries = append(entries, models.LeaderboardEntry{
			AccountID: account.ID,
			Balance:   account.Balance,
			Level:     account.Level,
			XP:        account.XP,
		})
	}

	boards := &models.Leaderboards{}

	// Sort by balance descending
	boards.Points = rank(entries, leaderboardLimit, func(a, b models.LeaderboardEntry) bool {
		return a.Balance.GreaterThan(b.Balance)
	})

	boards.Levels = rank(entries, leaderboardLimit, func(a, b models.LeaderboardEntry) bool {
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		return a.XP > b.XP
	})

	loveliness := make([]models.LeaderboardEntry, len(entries))
	heat := make([]models.LeaderboardEntry, 0, len(entries))
	for i, account := range accounts {
		loveliness[i] = entries[i]
		loveliness[i].Score = s.scorer.Loveliness(account, now)

		if h := s.scorer.Heat(account, now); h > 0 {
			entry := entries[i]
			entry.Score = h
			heat = append(heat, entry)
		}
	}
	byScore := func(a, b models.LeaderboardEntry) bool { return a.Score > b.Score }
	boards.Loveliness = rank(loveliness, leaderboardLimit, byScore)
	boards.Heat = rank(heat, heatLeaderboardLimit, byScore)

	return boards, nil
}

// NetworkStats aggregates totals across the network
func (s *statsService) NetworkStats(ctx context.Context, uow UnitOfWork) (*models.NetworkStats, error) {
	accounts, err := uow.AccountRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	invites, err := uow.InviteRepository().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count invites: %w", err)
	}
	openWagers, err := uow.WagerRepository().CountOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count open wagers: %w", err)
	}

	stats := &models.NetworkStats{
		TotalAccounts: len(accounts),
		TotalInvites:  invites,
		TotalBalance:  decimal.Zero,
		OpenWagers:    openWagers,
	}
	for _, account := range accounts {
		stats.SuccessfulInvites += account.InvitesSuccessful
		stats.TotalBalance = stats.TotalBalance.Add(account.Balance)
		stats.TotalMessages += account.MessagesSent
	}
	return stats, nil
}

// rank sorts a copy of the entries, assigns ranks and applies the limit.
// Ties keep account id order so rankings are stable between calls.
func rank(entries []models.LeaderboardEntry, limit int, less func(a, b models.LeaderboardEntry) bool) []models.LeaderboardEntry {
	ranked := make([]models.LeaderboardEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if less(ranked[i], ranked[j]) {
			return true
		}
		if less(ranked[j], ranked[i]) {
			return false
		}
		return ranked[i].AccountID < ranked[j].AccountID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
