package stats

import (
	"context"

	"roombot/bot/common"
	"roombot/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Feature handles /profile, /leaderboard and /stats
type Feature struct {
	engine  service.Engine
	guildID string
}

// New creates a new stats feature
func New(engine service.Engine, guildID string) *Feature {
	return &Feature{
		engine:  engine,
		guildID: guildID,
	}
}

// HandleProfile shows the profile of the caller or of the given user
func (f *Feature) HandleProfile(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	userID := common.UserID(i)
	if options := i.ApplicationCommandData().Options; len(options) > 0 {
		if user := options[0].UserValue(s); user != nil {
			userID = user.ID
		}
	}

	profile, err := f.engine.Profile(ctx, userID)
	if err != nil {
		common.RespondWithEngineError(s, i, err, "load profile")
		return
	}

	embed := BuildProfileEmbed(profile, common.GetDisplayName(s, f.guildID, userID))
	if err := common.RespondWithEmbed(s, i, embed, nil, false); err != nil {
		log.WithError(err).Error("Error responding to profile command")
	}
}

// HandleLeaderboard shows every leaderboard
func (f *Feature) HandleLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	boards, err := f.engine.Leaderboards(context.Background())
	if err != nil {
		common.RespondWithEngineError(s, i, err, "load leaderboards")
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildLeaderboardEmbed(boards), nil, false); err != nil {
		log.WithError(err).Error("Error responding to leaderboard command")
	}
}

// HandleStats shows network totals
func (f *Feature) HandleStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	stats, err := f.engine.NetworkStats(context.Background())
	if err != nil {
		common.RespondWithEngineError(s, i, err, "load network stats")
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildNetworkStatsEmbed(stats), nil, false); err != nil {
		log.WithError(err).Error("Error responding to stats command")
	}
}
