package bot

import (
	"context"
	"fmt"

	"roombot/bot/common"
	"roombot/events"

	log "github.com/sirupsen/logrus"
)

// AnnouncementFor renders the public message for an event, if it has one
func AnnouncementFor(event events.Event) (string, bool) {
	switch e := event.(type) {
	case events.LevelUpEvent:
		return fmt.Sprintf("⬆️ %s reached level **%d**!", common.Mention(e.AccountID), e.NewLevel), true
	case events.MilestoneReachedEvent:
		return fmt.Sprintf("🏅 %s hit the **%d invite** milestone!", common.Mention(e.AccountID), e.Threshold), true
	case events.InviteActivatedEvent:
		return fmt.Sprintf("💌 %s joined thanks to %s. **%s points** went up the chain.",
			common.Mention(e.ChildID), common.Mention(e.InviterID), common.FormatPoints(e.TotalAwarded)), true
	default:
		return "", false
	}
}

// subscribeAnnouncements posts level ups, milestones and activations to the announce channel
func (b *Bot) subscribeAnnouncements() {
	if b.config.AnnounceChannelID == "" {
		return
	}

	announce := func(ctx context.Context, event events.Event) {
		message, ok := AnnouncementFor(event)
		if !ok {
			return
		}
		if _, err := b.session.ChannelMessageSend(b.config.AnnounceChannelID, message); err != nil {
			log.WithError(err).WithField("event_type", event.Type()).Error("Failed to post announcement")
		}
	}

	b.eventBus.Subscribe(events.EventTypeLevelUp, announce)
	b.eventBus.Subscribe(events.EventTypeMilestoneReached, announce)
	b.eventBus.Subscribe(events.EventTypeInviteActivated, announce)
}
