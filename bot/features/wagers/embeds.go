package wagers

import (
	"fmt"

	"roombot/bot/common"
	"roombot/models"

	"github.com/bwmarrin/discordgo"
)

// BuildOpenWagerEmbed shows a duel waiting for an opponent
func BuildOpenWagerEmbed(wager *models.Wager) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "⚔️ Duel Challenge",
		Description: fmt.Sprintf("%s stakes **%s points**. First to accept takes the coin flip!",
			common.Mention(wager.ChallengerID), common.FormatPoints(wager.Stake)),
		Color: common.ColorPrimary,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Expires",
				Value:  common.FormatDiscordTimestamp(wager.ExpiresAt, "R"),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Duel " + wager.ID,
		},
	}
}

// BuildSettledEmbed shows the coin flip result
func BuildSettledEmbed(outcome *models.SettlementOutcome) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "🏆 Duel Settled",
		Description: fmt.Sprintf("%s beat %s and takes **%s points**!",
			common.Mention(outcome.WinnerID), common.Mention(outcome.LoserID), common.FormatPoints(outcome.Payout)),
		Color: common.ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Stake",
				Value:  common.FormatPoints(outcome.Stake),
				Inline: true,
			},
			{
				Name:   "XP",
				Value:  fmt.Sprintf("+%d / +%d", outcome.ChallengerXP, outcome.AcceptorXP),
				Inline: true,
			},
		},
	}

	for _, levelUp := range []*models.LevelUp{outcome.ChallengerLevel, outcome.AcceptorLevel} {
		if levelUp != nil && levelUp.LeveledUp {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  "⬆️ Level up",
				Value: fmt.Sprintf("%s reached level **%d**", common.Mention(levelUp.AccountID), levelUp.NewLevel),
			})
		}
	}

	return embed
}

// BuildClosedEmbed shows a duel that ended without an opponent
func BuildClosedEmbed(wager *models.Wager) *discordgo.MessageEmbed {
	title := "✖️ Duel Cancelled"
	if wager.State == models.WagerStateExpired {
		title = "⌛ Duel Expired"
	}

	return &discordgo.MessageEmbed{
		Title: title,
		Description: fmt.Sprintf("%s got **%s points** back.",
			common.Mention(wager.ChallengerID), common.FormatPoints(wager.Stake)),
		Color: common.ColorNeutral,
	}
}
