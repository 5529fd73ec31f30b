package stats

import (
	"fmt"
	"strings"

	"roombot/bot/common"
	"roombot/models"

	"github.com/bwmarrin/discordgo"
)

// leaderboardSize is the number of rows shown per board
const leaderboardSize = 5

// BuildProfileEmbed creates the profile card of one account
func BuildProfileEmbed(profile *models.Profile, displayName string) *discordgo.MessageEmbed {
	account := profile.Account

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("💖 %s", displayName),
		Color: common.ColorPrimary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Points", Value: common.FormatPoints(account.Balance), Inline: true},
			{Name: "Level", Value: fmt.Sprintf("%d", account.Level), Inline: true},
			{Name: "XP", Value: fmt.Sprintf("%d / %d", account.XP, profile.XPForNextLevel), Inline: true},
			{Name: "Invites", Value: fmt.Sprintf("%d sent, %d joined", account.InvitesSent, account.InvitesSuccessful), Inline: true},
			{Name: "Streak", Value: fmt.Sprintf("🔥 %d", account.InviteStreak), Inline: true},
			{Name: "Duels", Value: fmt.Sprintf("%d W / %d L", account.WagersWon, account.WagersLost), Inline: true},
			{Name: "Loveliness", Value: fmt.Sprintf("%.1f", profile.Loveliness), Inline: true},
			{Name: "Heat", Value: fmt.Sprintf("%.1f", profile.Heat), Inline: true},
			{Name: "Messages", Value: fmt.Sprintf("%d over %d days", account.MessagesSent, account.DaysActive), Inline: true},
		},
	}

	if len(account.MilestonesReached) > 0 {
		milestones := make([]string, len(account.MilestonesReached))
		for i, m := range account.MilestonesReached {
			milestones[i] = fmt.Sprintf("%d", m)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "🏅 Milestones",
			Value: strings.Join(milestones, ", "),
		})
	}

	return embed
}

// BuildLeaderboardEmbed renders the top rows of every board
func BuildLeaderboardEmbed(boards *models.Leaderboards) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🏆 Leaderboards",
		Color: common.ColorPrimary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Points", Value: formatBoard(boards.Points, func(e models.LeaderboardEntry) string { return common.FormatPoints(e.Balance) }), Inline: true},
			{Name: "Levels", Value: formatBoard(boards.Levels, func(e models.LeaderboardEntry) string { return fmt.Sprintf("Lv %d", e.Level) }), Inline: true},
			{Name: "Loveliness", Value: formatBoard(boards.Loveliness, formatScore), Inline: true},
			{Name: "Heat", Value: formatBoard(boards.Heat, formatScore), Inline: true},
		},
	}
}

// BuildNetworkStatsEmbed renders the totals across the network
func BuildNetworkStatsEmbed(stats *models.NetworkStats) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "📊 Network Stats",
		Color: common.ColorNeutral,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Accounts", Value: fmt.Sprintf("%d", stats.TotalAccounts), Inline: true},
			{Name: "Invites", Value: fmt.Sprintf("%d sent, %d joined", stats.TotalInvites, stats.SuccessfulInvites), Inline: true},
			{Name: "Points in circulation", Value: common.FormatPoints(stats.TotalBalance), Inline: true},
			{Name: "Messages", Value: fmt.Sprintf("%d", stats.TotalMessages), Inline: true},
			{Name: "Open duels", Value: fmt.Sprintf("%d", stats.OpenWagers), Inline: true},
		},
	}
}

func formatScore(e models.LeaderboardEntry) string {
	return fmt.Sprintf("%.1f", e.Score)
}

func formatBoard(entries []models.LeaderboardEntry, value func(models.LeaderboardEntry) string) string {
	if len(entries) == 0 {
		return "Nobody yet"
	}

	var sb strings.Builder
	for i, entry := range entries {
		if i == leaderboardSize {
			break
		}
		fmt.Fprintf(&sb, "%s %s %s\n", common.RankLabel(entry.Rank), common.Mention(entry.AccountID), value(entry))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
