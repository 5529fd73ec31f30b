package referral

import (
	"fmt"

	"roombot/bot/common"
	"roombot/models"

	"github.com/bwmarrin/discordgo"
)

// BuildInviteEmbed shows an invite code and how to use it
func BuildInviteEmbed(link *models.InviteLink, fresh bool) *discordgo.MessageEmbed {
	title := "💌 Your Invite Code"
	if fresh {
		title = "💌 New Invite Code"
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("Share **`%s`**. Friends redeem it with `/join %s`.", link.Code, link.Code),
		Color:       common.ColorPrimary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Uses", Value: fmt.Sprintf("%d", link.TotalUses), Inline: true},
			{Name: "Created", Value: common.FormatDiscordTimestamp(link.CreatedAt, "R"), Inline: true},
		},
	}
}

// BuildChallengeEmbed shows the verification prompt after redeeming a code
func BuildChallengeEmbed(outcome *models.RedeemOutcome) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🔐 Verification",
		Description: fmt.Sprintf("%s invited you.\n%s\nAnswer with `/verify`.", common.Mention(outcome.OwnerID), outcome.Prompt),
		Color:       common.ColorPrimary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Expires", Value: common.FormatDiscordTimestamp(outcome.ExpiresAt, "R")},
		},
	}
}

// VerificationMessage renders the reply to a /verify answer
func VerificationMessage(outcome *models.VerificationOutcome, inviteURL string) string {
	switch {
	case outcome.Verified && inviteURL != "":
		return fmt.Sprintf("✅ Verified! Join here: %s", inviteURL)
	case outcome.Verified:
		return "✅ Verified! You can join the group now."
	case outcome.Blacklisted && outcome.BlacklistedUntil != nil:
		return fmt.Sprintf("🚫 Too many wrong answers. Try again %s.", common.FormatDiscordTimestamp(*outcome.BlacklistedUntil, "R"))
	case outcome.Blacklisted:
		return "🚫 Too many wrong answers."
	default:
		return fmt.Sprintf("❌ Wrong answer. %d attempts left.", outcome.AttemptsRemaining)
	}
}
