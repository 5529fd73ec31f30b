package bot

import (
	"fmt"

	"roombot/bot/features/wagers"

	"github.com/bwmarrin/discordgo"
)

var minStake = 0.01

// Commands lists every slash command the bot registers
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "invite",
			Description: "Show your invite code",
		},
		{
			Name:        "newinvite",
			Description: "Replace your invite code with a fresh one",
		},
		{
			Name:        "join",
			Description: "Redeem an invite code",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "code",
					Description: "Invite code you received",
					Required:    true,
				},
			},
		},
		{
			Name:        "verify",
			Description: "Answer your verification challenge",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "answer",
					Description: "The symbols, in order",
					Required:    true,
				},
			},
		},
		{
			Name:        "profile",
			Description: "Show a profile",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to show (defaults to you)",
					Required:    false,
				},
			},
		},
		{
			Name:        "leaderboard",
			Description: "Show the leaderboards",
		},
		{
			Name:        "stats",
			Description: "Show network statistics",
		},
		{
			Name:        "daily",
			Description: "Claim your daily bonus",
		},
		{
			Name:        "history",
			Description: "Show your recent transactions",
		},
		{
			Name:        "gift",
			Description: "Give points to another user",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to gift",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "amount",
					Description: "Points to give",
					Required:    true,
					MinValue:    &minStake,
				},
			},
		},
		{
			Name:        "wager",
			Description: "Open a coin flip duel anyone can accept",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "amount",
					Description: "Points to stake",
					Required:    true,
					MinValue:    &minStake,
				},
			},
		},
	}
}

func (b *Bot) registerCommands() error {
	for _, cmd := range Commands() {
		_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.config.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("cannot create '%s' command: %w", cmd.Name, err)
		}
	}
	return nil
}

func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "invite":
		b.referralFeature.HandleInvite(s, i)
	case "newinvite":
		b.referralFeature.HandleNewInvite(s, i)
	case "join":
		b.referralFeature.HandleJoin(s, i)
	case "verify":
		b.referralFeature.HandleVerify(s, i)
	case "profile":
		b.statsFeature.HandleProfile(s, i)
	case "leaderboard":
		b.statsFeature.HandleLeaderboard(s, i)
	case "stats":
		b.statsFeature.HandleStats(s, i)
	case "daily":
		b.balanceFeature.HandleDaily(s, i)
	case "history":
		b.balanceFeature.HandleHistory(s, i)
	case "gift":
		b.balanceFeature.HandleGift(s, i)
	case "wager":
		b.wagersFeature.HandleCommand(s, i)
	}
}

func (b *Bot) handleComponents(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	if customID := i.MessageComponentData().CustomID; wagers.IsWagerComponent(customID) {
		b.wagersFeature.HandleInteraction(s, i)
	}
}
