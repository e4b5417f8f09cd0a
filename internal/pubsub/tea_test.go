package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListenCmd_ReturnsEvent(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx := context.Background()
	listener := NewContinuousListener(ctx, broker)
	broker.Publish(UpdatedEvent, "c.go")

	msg := listener.Listen()()
	event, ok := msg.(Event[string])
	require.True(t, ok, "expected Event[string], got %T", msg)
	require.Equal(t, "c.go", event.Payload)
}

func TestListenCmd_NilOnCancelledContext(t *testing.T) {
	ch := make(chan Event[string])
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Nil(t, ListenCmd(ctx, ch)())
}

func TestListenCmd_NilOnClosedChannel(t *testing.T) {
	ch := make(chan Event[string])
	close(ch)

	require.Nil(t, ListenCmd(context.Background(), ch)())
}
