package event_bus

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Publish(t *testing.T) {
	t.Run("should deliver to handlers in subscription order", func(t *testing.T) {
		// given
		bus := NewEventBus()
		var calls []int
		for i := 1; i <= 5; i++ {
			bus.Subscribe(ObligationChangedType, func(Event) error {
				calls = append(calls, i)
				return nil
			})
		}

		// when
		err := bus.Publish(NewEvent(context.Background(), ObligationChangedType, ObligationChanged{UserId: 1}))

		// then
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4, 5}, calls)
	})

	t.Run("should continue after failing and panicking handlers", func(t *testing.T) {
		// given
		bus := NewEventBus()
		failure := errors.New("boom")
		reached := false
		bus.Subscribe(ObligationChangedType, func(Event) error { return failure })
		bus.Subscribe(ObligationChangedType, func(Event) error { panic("unexpected") })
		bus.Subscribe(ObligationChangedType, func(Event) error {
			reached = true
			return nil
		})

		// when
		err := bus.Publish(NewEvent(context.Background(), ObligationChangedType, nil))

		// then
		require.Error(t, err)
		assert.ErrorIs(t, err, failure)
		assert.Contains(t, err.Error(), "2 handler(s) failed")
		assert.True(t, reached)
	})

	t.Run("should not dispatch on a cancelled context", func(t *testing.T) {
		// given
		bus := NewEventBus()
		called := false
		bus.Subscribe(ObligationChangedType, func(Event) error {
			called = true
			return nil
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// when
		err := bus.Publish(NewEvent(ctx, ObligationChangedType, nil))

		// then
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("should stop delivering after unsubscribe", func(t *testing.T) {
		bus := NewEventBus()
		count := 0
		unsubscribe := bus.Subscribe(ObligationChangedType, func(Event) error {
			count++
			return nil
		})

		require.NoError(t, bus.Publish(NewEvent(context.Background(), ObligationChangedType, nil)))
		unsubscribe()
		require.NoError(t, bus.Publish(NewEvent(context.Background(), ObligationChangedType, nil)))

		assert.Equal(t, 1, count)
	})
}

func TestSubscribeTyped(t *testing.T) {
	// given
	bus := NewEventBus()
	var received []ObligationChanged
	SubscribeTyped(bus, ObligationChangedType, func(e EventT[ObligationChanged]) error {
		received = append(received, e.Data)
		return nil
	})
	change := ObligationChanged{UserId: 7, ObligationUid: uuid.New(), Change: ObligationDeleted}

	// when
	require.NoError(t, bus.Publish(NewEvent(context.Background(), ObligationChangedType, change)))
	require.NoError(t, bus.Publish(NewEvent(context.Background(), ObligationChangedType, "not a change")))
	require.NoError(t, bus.Publish(NewEvent(context.Background(), ObligationChangedType, nil)))

	// then
	assert.Equal(t, []ObligationChanged{change}, received)
}
