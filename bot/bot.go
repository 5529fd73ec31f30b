package bot

import (
	"context"
	"errors"
	"fmt"

	"roombot/bot/features/balance"
	"roombot/bot/features/referral"
	"roombot/bot/features/stats"
	"roombot/bot/features/wagers"
	"roombot/events"
	"roombot/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token             string
	GuildID           string
	AnnounceChannelID string
}

// Bot adapts Discord gateway events and slash commands to the engine
type Bot struct {
	config   Config
	session  *discordgo.Session
	engine   service.Engine
	eventBus *events.Bus

	referralFeature *referral.Feature
	statsFeature    *stats.Feature
	balanceFeature  *balance.Feature
	wagersFeature   *wagers.Feature
}

// New connects to Discord and registers handlers and commands
func New(config Config, engine service.Engine, eventBus *events.Bus) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages

	bot := &Bot{
		config:          config,
		session:         dg,
		engine:          engine,
		eventBus:        eventBus,
		referralFeature: referral.New(engine, config.GuildID, config.AnnounceChannelID),
		statsFeature:    stats.New(engine, config.GuildID),
		balanceFeature:  balance.New(engine),
		wagersFeature:   wagers.New(engine),
	}

	dg.AddHandler(bot.handleCommands)
	dg.AddHandler(bot.handleComponents)
	dg.AddHandler(bot.handleMemberAdd)
	dg.AddHandler(bot.handleMemberRemove)
	dg.AddHandler(bot.handleMessage)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	bot.subscribeAnnouncements()

	return bot, nil
}

// Close closes the Discord session
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) handleMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot || m.GuildID != b.config.GuildID {
		return
	}

	outcome, err := b.engine.InvitedAccountJoinedGroup(context.Background(), m.User.ID, m.GuildID)
	if errors.Is(err, service.ErrNotInvited) {
		return
	}
	if err != nil {
		log.WithField("user_id", m.User.ID).WithError(err).Error("Failed to process member join")
		return
	}

	if outcome.Activated {
		log.WithFields(log.Fields{
			"user_id":       m.User.ID,
			"inviter_id":    outcome.InviterID,
			"total_awarded": outcome.TotalAwarded.String(),
			"hops":          len(outcome.Hops),
		}).Info("Invite activated")
	}
}

func (b *Bot) handleMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.User == nil || m.User.Bot || m.GuildID != b.config.GuildID {
		return
	}

	outcome, err := b.engine.AccountLeftGroup(context.Background(), m.User.ID, m.GuildID)
	if errors.Is(err, service.ErrNotInvited) {
		return
	}
	if err != nil {
		log.WithField("user_id", m.User.ID).WithError(err).Error("Failed to process member leave")
		return
	}

	if outcome.Penalized {
		log.WithFields(log.Fields{
			"user_id":    m.User.ID,
			"inviter_id": outcome.InviterID,
			"penalty":    outcome.Penalty.String(),
		}).Info("Inviter penalized for departed member")
	}
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID != b.config.GuildID {
		return
	}

	if _, err := b.engine.AccountMessaged(context.Background(), m.Author.ID); err != nil {
		log.WithField("user_id", m.Author.ID).WithError(err).Error("Failed to record message activity")
	}
}
