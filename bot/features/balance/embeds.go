package balance

import (
	"fmt"
	"strings"

	"roombot/bot/common"
	"roombot/models"

	"github.com/bwmarrin/discordgo"
)

// BuildDailyBonusEmbed shows the breakdown of a claimed bonus
func BuildDailyBonusEmbed(outcome *models.DailyBonusOutcome) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🎁 Daily Bonus",
		Description: fmt.Sprintf("You received **%s points** and **%d XP**.", common.FormatPoints(outcome.Total), outcome.XP),
		Color:       common.ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Base", Value: common.FormatPoints(outcome.Base), Inline: true},
			{Name: "Level bonus", Value: common.FormatPoints(outcome.LevelBonus), Inline: true},
			{Name: "Streak bonus", Value: common.FormatPoints(outcome.Streak), Inline: true},
			{Name: "Next claim", Value: common.FormatDiscordTimestamp(outcome.NextClaim, "R")},
		},
	}

	if outcome.LevelUp != nil && outcome.LevelUp.LeveledUp {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "⬆️ Level up",
			Value: fmt.Sprintf("You reached level **%d**", outcome.LevelUp.NewLevel),
		})
	}

	return embed
}

// BuildGiftEmbed confirms a transfer
func BuildGiftEmbed(outcome *models.GiftOutcome) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "💝 Gift Sent",
		Description: fmt.Sprintf("%s sent **%s points** to %s.",
			common.Mention(outcome.FromID), common.FormatPoints(outcome.Amount), common.Mention(outcome.ToID)),
		Color: common.ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Your balance", Value: common.FormatPoints(outcome.FromBalance), Inline: true},
		},
	}
}

// BuildHistoryEmbed lists recent balance changes, newest first
func BuildHistoryEmbed(entries []*models.BalanceHistory) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "📜 Recent Transactions",
		Color: common.ColorNeutral,
	}

	if len(entries) == 0 {
		embed.Description = "No transactions yet."
		return embed
	}

	var sb strings.Builder
	for _, entry := range entries {
		sign := ""
		if entry.ChangeAmount.IsPositive() {
			sign = "+"
		}
		fmt.Fprintf(&sb, "%s `%s%s` %s → %s\n",
			common.FormatDiscordTimestamp(entry.CreatedAt, "d"),
			sign, common.FormatPoints(entry.ChangeAmount),
			describe(entry),
			common.FormatPoints(entry.BalanceAfter))
	}
	embed.Description = strings.TrimSuffix(sb.String(), "\n")
	return embed
}

func describe(entry *models.BalanceHistory) string {
	if entry.Reason != "" {
		return entry.Reason
	}
	return strings.ReplaceAll(string(entry.TransactionType), "_", " ")
}
