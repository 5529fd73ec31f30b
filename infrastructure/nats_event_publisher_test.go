package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"roombot/events"
	"roombot/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessagePublisher struct {
	mock.Mock
}

func (m *mockMessagePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func TestNATSEventPublisher_Publish(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	client := new(mockMessagePublisher)
	publisher := NewNATSEventPublisher(client, "roombot.events")
	publisher.now = func() time.Time { return fixed }

	var captured []byte
	client.On("Publish", mock.Anything, "roombot.events.wager_settled", mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(2).([]byte) }).
		Return(nil)

	err := publisher.Publish(context.Background(), events.WagerSettledEvent{
		WagerID:  "w-1",
		WinnerID: "alice",
		LoserID:  "bob",
		Stake:    decimal.RequireFromString("12.5"),
	})
	require.NoError(t, err)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(captured, &envelope))
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "wager_settled", envelope.EventType)
	assert.Equal(t, "roombot", envelope.SourceService)
	assert.True(t, fixed.Equal(envelope.Timestamp))

	var payload events.WagerSettledEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, "alice", payload.WinnerID)
	assert.True(t, decimal.RequireFromString("12.5").Equal(payload.Stake))
}

func TestNATSEventPublisher_PublishError(t *testing.T) {
	client := new(mockMessagePublisher)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("no responders"))

	err := NewNATSEventPublisher(client, "roombot.events").Publish(context.Background(), events.LevelUpEvent{AccountID: "alice", OldLevel: 1, NewLevel: 2})
	assert.ErrorContains(t, err, "no responders")
}

func TestNATSEventPublisher_AttachForwardsCommittedEvents(t *testing.T) {
	client := new(mockMessagePublisher)
	forwarded := make(chan struct{}, 1)
	client.On("Publish", mock.Anything, "roombot.events.wager_closed", mock.Anything).
		Run(func(mock.Arguments) { forwarded <- struct{}{} }).
		Return(nil)

	bus := events.NewBus()
	NewNATSEventPublisher(client, "roombot.events").Attach(bus)

	tx := events.NewTransactionalBus(bus)
	tx.Publish(events.WagerClosedEvent{WagerID: "w-1", ChallengerID: "alice", State: models.WagerStateExpired, Refund: decimal.NewFromInt(5)})
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, tx.Flush(context.Background()))
	select {
	case <-forwarded:
	case <-time.After(time.Second):
		t.Fatal("event was not forwarded")
	}
}

func TestNATSEventPublisher_Subjects(t *testing.T) {
	publisher := NewNATSEventPublisher(nil, "prefix")
	subjects := publisher.Subjects()

	assert.Len(t, subjects, len(events.AllEventTypes))
	assert.Contains(t, subjects, "prefix.account_blacklisted")
}
