package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherInvokesSubscribersInOrder(t *testing.T) {
	d := NewInMemoryDispatcher()
	var order []string

	d.Subscribe(EventRequestCreated, func(ctx context.Context, e Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(EventRequestCreated, func(ctx context.Context, e Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(EventSLABreached, func(ctx context.Context, e Event) error {
		order = append(order, "unrelated")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventRequestCreated}))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatcherHandlerErrorDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var reached bool

	d.Subscribe(EventRequestStatusChanged, func(ctx context.Context, e Event) error {
		return errors.New("handler exploded")
	})
	d.Subscribe(EventRequestStatusChanged, func(ctx context.Context, e Event) error {
		reached = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventRequestStatusChanged}))
	assert.True(t, reached)
}

func TestDispatcherNoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventRequestEscalated}))
}
