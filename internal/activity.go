package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/event"
	"github.com/hbomb79/mediatab/pkg/logger"
)

const (
	DEBOUNCE_DURATION  time.Duration = time.Second * 2
	MAX_TIMER_DURATION time.Duration = time.Second * 5

	RAPID_EVENT_DEBOUNCE_DURATION  time.Duration = time.Millisecond * 500
	RAPID_EVENT_MAX_TIMER_DURATION time.Duration = time.Second * 2
)

type (
	broadcastHandler func(uuid.UUID) error

	broadcaster interface {
		BroadcastBatchUpdate(uuid.UUID) error
		BroadcastBatchProgress(uuid.UUID) error
	}

	eventKey struct {
		ev event.Event
		id uuid.UUID
	}

	timings struct {
		debounce, max           time.Duration
		rapidDebounce, rapidMax time.Duration
	}

	// activityService listens for batch events on the event bus and forwards them to
	// the broadcaster, debouncing bursts of events for the same batch so that
	// clients are not flooded with updates.
	activityService struct {
		*sync.Mutex
		broadcaster
		eventBus       event.EventHandler
		timings        timings
		debounceTimers map[eventKey]*time.Timer
		maxTimers      map[eventKey]*time.Timer
	}
)

var defaultTimings = timings{
	debounce:      DEBOUNCE_DURATION,
	max:           MAX_TIMER_DURATION,
	rapidDebounce: RAPID_EVENT_DEBOUNCE_DURATION,
	rapidMax:      RAPID_EVENT_MAX_TIMER_DURATION,
}

func newActivityService(broadcaster broadcaster, event event.EventHandler) *activityService {
	return &activityService{
		Mutex:          &sync.Mutex{},
		broadcaster:    broadcaster,
		eventBus:       event,
		timings:        defaultTimings,
		debounceTimers: make(map[eventKey]*time.Timer),
		maxTimers:      make(map[eventKey]*time.Timer),
	}
}

func (service *activityService) Run(ctx context.Context) error {
	messageChan := make(chan event.HandlerEvent, 100)
	service.eventBus.RegisterHandlerChannel(messageChan, event.BATCH_NEW, event.BATCH_PROGRESS, event.BATCH_COMPLETE)

	log.Emit(logger.NEW, "Activity service started\n")
	for {
		select {
		case ev := <-messageChan:
			if err := service.handleEvent(ev); err != nil {
				log.Emit(logger.ERROR, "Handling of event %v failed: %v\n", ev, err)
			}
		case <-ctx.Done():
			service.stopTimers()
			service.detach(messageChan)
			log.Emit(logger.STOP, "Activity service closed\n")
			return nil
		}
	}
}

// detach removes the message channel from the event bus. Jobs still finalizing
// may be mid-dispatch, so the channel is drained (and the events discarded)
// until the bus has released it.
func (service *activityService) detach(messageChan event.HandlerChannel) {
	detached := make(chan struct{})
	go func() {
		defer close(detached)
		service.eventBus.UnregisterHandlerChannel(messageChan)
	}()

	for {
		select {
		case <-messageChan:
		case <-detached:
			return
		}
	}
}

func (service *activityService) handleEvent(ev event.HandlerEvent) error {
	resourceID, ok := ev.Payload.(uuid.UUID)
	if !ok {
		return errors.New("illegal payload (expected UUID)")
	}

	resourceKey := eventKey{id: resourceID, ev: ev.Event}

	switch ev.Event {
	case event.BATCH_NEW:
		fallthrough
	case event.BATCH_COMPLETE:
		service.scheduleEventBroadcast(resourceKey, service.BroadcastBatchUpdate)
	case event.BATCH_PROGRESS:
		service.scheduleRapidEventBroadcast(resourceKey, service.BroadcastBatchProgress)
	default:
		return errors.New("unknown event type")
	}

	return nil
}

func (service *activityService) scheduleEventBroadcast(resourceKey eventKey, handler broadcastHandler) {
	service._scheduleEventBroadcast(resourceKey, handler, service.timings.debounce, service.timings.max)
}

func (service *activityService) scheduleRapidEventBroadcast(resourceKey eventKey, handler broadcastHandler) {
	service._scheduleEventBroadcast(resourceKey, handler, service.timings.rapidDebounce, service.timings.rapidMax)
}

func (service *activityService) _scheduleEventBroadcast(resourceKey eventKey, handler broadcastHandler, debounceTime time.Duration, maxTime time.Duration) {
	service.Lock()
	defer service.Unlock()

	broadcaster := func() { service.broadcast(resourceKey, handler) }

	// Cancel and re-set a debounce timer
	if t, ok := service.debounceTimers[resourceKey]; ok {
		t.Stop()
	}
	service.debounceTimers[resourceKey] = time.AfterFunc(debounceTime, broadcaster)

	// Set a max timer if not already set
	if _, ok := service.maxTimers[resourceKey]; !ok {
		service.maxTimers[resourceKey] = time.AfterFunc(maxTime, broadcaster)
	}
}

func (service *activityService) broadcast(resourceKey eventKey, handler broadcastHandler) {
	service.Lock()
	dt, hasDebounce := service.debounceTimers[resourceKey]
	mt, hasMax := service.maxTimers[resourceKey]
	if !hasDebounce && !hasMax {
		// Both timers fired at once, and the other has already broadcast
		service.Unlock()
		return
	}

	if hasDebounce {
		dt.Stop()
		delete(service.debounceTimers, resourceKey)
	}
	if hasMax {
		mt.Stop()
		delete(service.maxTimers, resourceKey)
	}
	service.Unlock()

	if err := handler(resourceKey.id); err != nil {
		log.Emit(logger.WARNING, "Broadcast for %s (%s) failed: %v\n", resourceKey.ev, resourceKey.id, err)
	}
}

func (service *activityService) stopTimers() {
	service.Lock()
	defer service.Unlock()

	for key, t := range service.debounceTimers {
		t.Stop()
		delete(service.debounceTimers, key)
	}
	for key, t := range service.maxTimers {
		t.Stop()
		delete(service.maxTimers, key)
	}
}
