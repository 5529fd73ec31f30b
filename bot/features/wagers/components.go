package wagers

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Button actions
const (
	ActionAccept = "accept"
	ActionCancel = "cancel"

	customIDPrefix = "wager_"
)

// BuildOpenWagerComponents creates the accept/cancel buttons for an open duel
func BuildOpenWagerComponents(wagerID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		&discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				&discordgo.Button{
					Label:    "⚔️ Accept",
					Style:    discordgo.SuccessButton,
					CustomID: customIDPrefix + ActionAccept + "_" + wagerID,
				},
				&discordgo.Button{
					Label:    "✖️ Cancel",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDPrefix + ActionCancel + "_" + wagerID,
				},
			},
		},
	}
}

// IsWagerComponent reports whether a custom ID belongs to a duel button
func IsWagerComponent(customID string) bool {
	return strings.HasPrefix(customID, customIDPrefix)
}

// ParseCustomID splits "wager_<action>_<id>" into its action and wager ID
func ParseCustomID(customID string) (action, wagerID string, ok bool) {
	rest, found := strings.CutPrefix(customID, customIDPrefix)
	if !found {
		return "", "", false
	}
	action, wagerID, found = strings.Cut(rest, "_")
	if !found || wagerID == "" {
		return "", "", false
	}
	if action != ActionAccept && action != ActionCancel {
		return "", "", false
	}
	return action, wagerID, true
}
