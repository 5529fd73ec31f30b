package wagers

import (
	"roombot/service"

	"github.com/bwmarrin/discordgo"
)

// Feature handles /wager and the duel buttons
type Feature struct {
	engine service.Engine
}

// New creates a new wagers feature
func New(engine service.Engine) *Feature {
	return &Feature{
		engine: engine,
	}
}

// HandleCommand handles /wager amount
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	f.handleCreate(s, i)
}

// HandleInteraction handles the accept and cancel buttons
func (f *Feature) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	action, wagerID, ok := ParseCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}

	switch action {
	case ActionAccept:
		f.handleAccept(s, i, wagerID)
	case ActionCancel:
		f.handleCancel(s, i, wagerID)
	}
}
