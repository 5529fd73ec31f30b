package referral

import (
	"context"

	"roombot/bot/common"
	"roombot/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// groupInviteMaxAge is how long the one-use group invite stays valid, in seconds
const groupInviteMaxAge = 24 * 60 * 60

// Feature handles /invite, /newinvite, /join and /verify
type Feature struct {
	engine          service.Engine
	guildID         string
	inviteChannelID string
}

// New creates a new referral feature
func New(engine service.Engine, guildID, inviteChannelID string) *Feature {
	return &Feature{
		engine:          engine,
		guildID:         guildID,
		inviteChannelID: inviteChannelID,
	}
}

// HandleInvite shows the caller's active invite code, issuing one if needed
func (f *Feature) HandleInvite(s *discordgo.Session, i *discordgo.InteractionCreate) {
	link, err := f.engine.CurrentInvite(context.Background(), common.UserID(i), f.guildID)
	if err != nil {
		common.RespondWithEngineError(s, i, err, "get invite")
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildInviteEmbed(link, false), nil, true); err != nil {
		log.WithError(err).Error("Error responding to invite command")
	}
}

// HandleNewInvite replaces the caller's active invite code
func (f *Feature) HandleNewInvite(s *discordgo.Session, i *discordgo.InteractionCreate) {
	link, err := f.engine.IssueInvite(context.Background(), common.UserID(i), f.guildID)
	if err != nil {
		common.RespondWithEngineError(s, i, err, "issue invite")
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildInviteEmbed(link, true), nil, true); err != nil {
		log.WithError(err).Error("Error responding to newinvite command")
	}
}

// HandleJoin redeems an invite code and starts verification
func (f *Feature) HandleJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) != 1 {
		common.RespondWithError(s, i, "Please provide an invite code.")
		return
	}

	outcome, err := f.engine.RedeemInvite(context.Background(), options[0].StringValue(), common.UserID(i))
	if err != nil {
		common.RespondWithEngineError(s, i, err, "redeem invite")
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildChallengeEmbed(outcome), nil, true); err != nil {
		log.WithError(err).Error("Error responding to join command")
	}
}

// HandleVerify checks a verification answer and hands out a one-use group invite
func (f *Feature) HandleVerify(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) != 1 {
		common.RespondWithError(s, i, "Please provide your answer.")
		return
	}

	userID := common.UserID(i)
	outcome, err := f.engine.SubmitVerificationAnswer(context.Background(), userID, options[0].StringValue())
	if err != nil {
		common.RespondWithEngineError(s, i, err, "verify")
		return
	}

	inviteURL := ""
	if outcome.Verified && f.inviteChannelID != "" {
		invite, err := s.ChannelInviteCreate(f.inviteChannelID, discordgo.Invite{
			MaxAge:  groupInviteMaxAge,
			MaxUses: 1,
			Unique:  true,
		})
		if err != nil {
			log.WithFields(log.Fields{
				"user_id":     userID,
				"invite_code": outcome.InviteCode,
			}).WithError(err).Error("Failed to create group invite")
		} else {
			inviteURL = "https://discord.gg/" + invite.Code
		}
	}

	common.Respond(s, i, VerificationMessage(outcome, inviteURL), true)
}
