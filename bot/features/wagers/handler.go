package wagers

import (
	"context"

	"roombot/bot/common"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

func (f *Feature) handleCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	options := i.ApplicationCommandData().Options
	if len(options) != 1 {
		common.RespondWithError(s, i, "Please provide a stake.")
		return
	}
	stake := decimal.NewFromFloat(options[0].FloatValue())

	outcome, err := f.engine.CreateWager(ctx, common.UserID(i), stake)
	if err != nil {
		common.RespondWithEngineError(s, i, err, "create wager")
		return
	}

	embed := BuildOpenWagerEmbed(outcome.Wager)
	if err := common.RespondWithEmbed(s, i, embed, BuildOpenWagerComponents(outcome.Wager.ID), false); err != nil {
		log.WithError(err).Error("Error responding to wager command")
	}
}

func (f *Feature) handleAccept(s *discordgo.Session, i *discordgo.InteractionCreate, wagerID string) {
	ctx := context.Background()

	outcome, err := f.engine.AcceptWager(ctx, wagerID, common.UserID(i))
	if err != nil {
		common.RespondWithEngineError(s, i, err, "accept wager")
		return
	}

	if err := common.UpdateMessage(s, i, BuildSettledEmbed(outcome), common.DisableComponents(i.Message.Components)); err != nil {
		log.WithError(err).Error("Error updating settled wager message")
	}
}

func (f *Feature) handleCancel(s *discordgo.Session, i *discordgo.InteractionCreate, wagerID string) {
	ctx := context.Background()

	outcome, err := f.engine.CancelWager(ctx, wagerID, common.UserID(i))
	if err != nil {
		common.RespondWithEngineError(s, i, err, "cancel wager")
		return
	}

	if err := common.UpdateMessage(s, i, BuildClosedEmbed(outcome.Wager), common.DisableComponents(i.Message.Components)); err != nil {
		log.WithError(err).Error("Error updating cancelled wager message")
	}
}
