package cmd

import (
	"context"
	"errors"
	"io"
	"testing"

	"roombot/config"
	"roombot/events"
	"roombot/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	closed bool
}

func (b *fakeBot) Close() error {
	b.closed = true
	return nil
}

func TestRun_BotFailureReleasesStartedComponents(t *testing.T) {
	errLogin := errors.New("invalid token")
	stack := &shutdownStack{}

	err := run(context.Background(), config.NewTestConfig(), func(*config.Config, service.Engine, *events.Bus) (io.Closer, error) {
		return nil, errLogin
	}, stack)

	require.ErrorIs(t, err, errLogin)
	assert.Equal(t, []string{"metrics", "storage"}, stack.done)
	assert.Empty(t, stack.steps)
}

func TestRun_ShutdownInReverseStartOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stack := &shutdownStack{}
	discordBot := &fakeBot{}

	err := run(ctx, config.NewTestConfig(), func(_ *config.Config, engine service.Engine, _ *events.Bus) (io.Closer, error) {
		assert.NotNil(t, engine)
		cancel()
		return discordBot, nil
	}, stack)

	require.NoError(t, err)
	assert.True(t, discordBot.closed)
	assert.Equal(t, []string{"sweeper", "bot", "metrics", "storage"}, stack.done)
}

func TestShutdownStack_ContinuesAfterFailure(t *testing.T) {
	stack := &shutdownStack{}
	var order []string
	stack.push("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	stack.push("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	})

	stack.shutdown(context.Background())
	stack.shutdown(context.Background())

	assert.Equal(t, []string{"second", "first"}, order)
	assert.Equal(t, []string{"second", "first"}, stack.done)
}
