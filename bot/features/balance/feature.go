package balance

import (
	"context"

	"roombot/bot/common"
	"roombot/service"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// historyLimit is the number of entries shown by /history
const historyLimit = 10

// Feature handles /daily, /gift and /history
type Feature struct {
	engine service.Engine
}

// New creates a new balance feature
func New(engine service.Engine) *Feature {
	return &Feature{
		engine: engine,
	}
}

// HandleDaily claims the daily bonus
func (f *Feature) HandleDaily(s *discordgo.Session, i *discordgo.InteractionCreate) {
	outcome, err := f.engine.ClaimDailyBonus(context.Background(), common.UserID(i))
	if err != nil {
		common.RespondWithEngineError(s, i, err, "claim daily bonus")
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildDailyBonusEmbed(outcome), nil, false); err != nil {
		log.WithError(err).Error("Error responding to daily command")
	}
}

// HandleGift transfers points to another user
func (f *Feature) HandleGift(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var toID string
	var amount decimal.Decimal
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "user":
			if user := opt.UserValue(s); user != nil {
				toID = user.ID
			}
		case "amount":
			amount = decimal.NewFromFloat(opt.FloatValue())
		}
	}

	if toID == "" {
		common.RespondWithError(s, i, "Please choose who to gift.")
		return
	}

	outcome, err := f.engine.Gift(context.Background(), common.UserID(i), toID, amount)
	if err != nil {
		common.RespondWithEngineError(s, i, err, "gift")
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildGiftEmbed(outcome), nil, false); err != nil {
		log.WithError(err).Error("Error responding to gift command")
	}
}

// HandleHistory shows the caller's recent balance changes
func (f *Feature) HandleHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	entries, err := f.engine.BalanceHistory(context.Background(), common.UserID(i), historyLimit)
	if err != nil {
		common.RespondWithEngineError(s, i, err, "load history")
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildHistoryEmbed(entries), nil, true); err != nil {
		log.WithError(err).Error("Error responding to history command")
	}
}
