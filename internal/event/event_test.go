package event_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_DeliversToChannelAndFunctionHandlers(t *testing.T) {
	t.Parallel()
	bus := event.New()

	ch := make(event.HandlerChannel, 2)
	bus.RegisterHandlerChannel(ch, event.BATCH_PROGRESS, event.BATCH_COMPLETE)

	var received []event.Event
	bus.RegisterHandlerFunction(event.BATCH_COMPLETE, func(e event.Event, _ event.Payload) { received = append(received, e) })

	wg := sync.WaitGroup{}
	wg.Add(1)
	bus.RegisterAsyncHandlerFunction(event.BATCH_COMPLETE, func(event.Event, event.Payload) { wg.Done() })

	id := uuid.New()
	bus.Dispatch(event.BATCH_PROGRESS, id)
	bus.Dispatch(event.BATCH_COMPLETE, id)

	first := <-ch
	assert.Equal(t, event.BATCH_PROGRESS, first.Event)
	assert.Equal(t, id, first.Payload)
	second := <-ch
	assert.Equal(t, event.BATCH_COMPLETE, second.Event)
	assert.Equal(t, []event.Event{event.BATCH_COMPLETE}, received)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "async handler was not called")
	}
}

func TestDispatch_InvalidPayloadIsDropped(t *testing.T) {
	t.Parallel()
	bus := event.New()

	ch := make(event.HandlerChannel, 1)
	bus.RegisterHandlerChannel(ch, event.BATCH_PROGRESS)

	bus.Dispatch(event.BATCH_PROGRESS, "not-a-uuid")
	bus.Dispatch("unknown:event", uuid.New())

	assert.Len(t, ch, 0)
}

func TestUnregisterHandlerChannel_StopsDelivery(t *testing.T) {
	t.Parallel()
	bus := event.New()

	ch := make(event.HandlerChannel)
	bus.RegisterHandlerChannel(ch, event.BATCH_PROGRESS, event.BATCH_COMPLETE)
	bus.UnregisterHandlerChannel(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 200 {
			bus.Dispatch(event.BATCH_PROGRESS, uuid.New())
		}
		bus.Dispatch(event.BATCH_COMPLETE, uuid.New())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail(t, "dispatch blocked on an unregistered channel")
	}
}

func TestUnregisterHandlerChannel_WaitsForInFlightSends(t *testing.T) {
	t.Parallel()
	bus := event.New()

	ch := make(event.HandlerChannel)
	bus.RegisterHandlerChannel(ch, event.BATCH_PROGRESS)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		bus.Dispatch(event.BATCH_PROGRESS, uuid.New())
	}()

	unregistered := make(chan struct{})
	go func() {
		defer close(unregistered)
		bus.UnregisterHandlerChannel(ch)
	}()

	// Keep receiving until the bus releases the channel, as channel owners must.
	for {
		select {
		case <-ch:
			continue
		case <-unregistered:
		case <-time.After(2 * time.Second):
			require.Fail(t, "unregister did not complete")
		}
		break
	}

	select {
	case <-dispatched:
	case <-time.After(2 * time.Second):
		require.Fail(t, "dispatch did not complete")
	}
}
