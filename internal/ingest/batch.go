package ingest

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/pkg/logger"
)

type (
	BatchOption func(*Batch)

	// Batch is the ordered set of items submitted for a single run. A batch is
	// 'open' until sealed, allowing the watch service to push newly discovered
	// files in to a batch which is already being processed. Once sealed, the
	// batch is done when every item has reached a terminal state.
	Batch struct {
		*sync.Mutex
		id                 uuid.UUID
		createdAt          time.Time
		items              []*Item
		paths              map[string]*Item
		sealed             bool
		completed          atomic.Int64
		requiredModTimeAge time.Duration
		importHoldTimers   map[uuid.UUID]*time.Timer
		wakeup             func()
		done               chan struct{}
		doneOnce           sync.Once
	}
)

// WithImportHold causes items pushed to the batch whose source file was
// modified more recently than the duration provided to be placed on
// IMPORT_HOLD, until their modtime is old enough.
func WithImportHold(requiredModTimeAge time.Duration) BatchOption {
	return func(b *Batch) { b.requiredModTimeAge = requiredModTimeAge }
}

// NewBatch creates an open batch containing the paths provided.
func NewBatch(paths []string, opts ...BatchOption) *Batch {
	batch := &Batch{
		Mutex:            &sync.Mutex{},
		id:               uuid.New(),
		createdAt:        time.Now(),
		items:            make([]*Item, 0, len(paths)),
		paths:            make(map[string]*Item, len(paths)),
		importHoldTimers: make(map[uuid.UUID]*time.Timer),
		done:             make(chan struct{}),
	}

	for _, opt := range opts {
		opt(batch)
	}

	batch.push(paths)
	return batch
}

func (batch *Batch) ID() uuid.UUID { return batch.id }

func (batch *Batch) CreatedAt() time.Time { return batch.createdAt }

// Done is closed once the batch is sealed and every item is terminal.
func (batch *Batch) Done() <-chan struct{} { return batch.done }

// Completed returns the number of items which have reached a terminal state.
func (batch *Batch) Completed() int { return int(batch.completed.Load()) }

// Total returns the number of items in the batch.
func (batch *Batch) Total() int {
	batch.Lock()
	defer batch.Unlock()

	return len(batch.items)
}

// Push adds the paths provided to the batch. Paths already present in the batch
// are ignored. The number of items added is returned.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (batch *Batch) Push(paths ...string) (int, error) {
	batch.Lock()
	defer batch.Unlock()

	if batch.sealed {
		return 0, ErrBatchSealed
	}

	return batch.push(paths), nil
}

func (batch *Batch) push(paths []string) int {
	dirty := false
	added := 0
	for _, path := range paths {
		if _, ok := batch.paths[path]; ok {
			continue
		}

		item := &Item{ID: uuid.New(), Path: path, State: IDLE}
		if batch.requiredModTimeAge > 0 {
			if info, err := os.Stat(path); err == nil {
				if age := time.Since(info.ModTime()); age < batch.requiredModTimeAge {
					item.State = IMPORT_HOLD
					batch.scheduleImportHoldTimer(item.ID, batch.requiredModTimeAge-age)
				}
			}
		}

		if item.State == IDLE {
			dirty = true
		}

		batch.items = append(batch.items, item)
		batch.paths[path] = item
		added++
	}

	if dirty {
		batch.wakeupWorkers()
	}

	return added
}

// Seal marks that no further items will be pushed to this batch.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (batch *Batch) Seal() {
	batch.Lock()
	defer batch.Unlock()

	batch.sealed = true
	batch.checkDone()
}

func (batch *Batch) Sealed() bool {
	batch.Lock()
	defer batch.Unlock()

	return batch.sealed
}

// Items returns a snapshot of every item in the batch, in the order
// they were added.
func (batch *Batch) Items() []Item {
	batch.Lock()
	defer batch.Unlock()

	out := make([]Item, len(batch.items))
	for i, item := range batch.items {
		out[i] = *item
	}

	return out
}

// Item returns a snapshot of the item with the ID provided.
func (batch *Batch) Item(id uuid.UUID) (Item, error) {
	batch.Lock()
	defer batch.Unlock()

	if item := batch.findItem(id); item != nil {
		return *item, nil
	}

	return Item{}, ErrItemNotFound
}

func (batch *Batch) findItem(id uuid.UUID) *Item {
	for _, item := range batch.items {
		if item.ID == id {
			return item
		}
	}

	return nil
}

// claimIdleItem will try and find an IDLE item in the batch,
// and set it's state to 'INSPECTING' to prevent another
// worker from claiming it once the mutex lock is released.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (batch *Batch) claimIdleItem() *Item {
	batch.Lock()
	defer batch.Unlock()

	for _, item := range batch.items {
		if item.State == IDLE {
			item.State = INSPECTING
			return item
		}
	}

	return nil
}

// complete moves the item to the COMPLETE state.
func (batch *Batch) complete(item *Item) {
	batch.finish(item, COMPLETE, nil)
}

// skip moves the item to the SKIPPED state, with the trouble provided.
func (batch *Batch) skip(item *Item, trouble *Trouble) {
	batch.finish(item, SKIPPED, trouble)
}

func (batch *Batch) finish(item *Item, state ItemState, trouble *Trouble) {
	batch.Lock()
	defer batch.Unlock()

	if item.isTerminal() {
		return
	}

	item.State = state
	item.Trouble = trouble
	batch.completed.Add(1)
	batch.checkDone()
}

// cancelRemaining moves every item which has not yet been dispatched to a worker
// in to the SKIPPED state with a CANCELLED trouble. The items affected are returned.
// The batch is sealed as a result of this call.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (batch *Batch) cancelRemaining(cause error) []*Item {
	batch.Lock()
	defer batch.Unlock()

	batch.sealed = true
	batch.clearAllImportHoldTimers()

	cancelled := make([]*Item, 0)
	for _, item := range batch.items {
		if item.State == IDLE || item.State == IMPORT_HOLD {
			item.State = SKIPPED
			item.Trouble = NewTrouble(CANCELLED, cause)
			batch.completed.Add(1)
			cancelled = append(cancelled, item)
		}
	}

	batch.checkDone()
	return cancelled
}

// checkDone closes the done channel if the batch is sealed and
// every item is terminal. Must be called while holding the mutex.
func (batch *Batch) checkDone() {
	if batch.sealed && int(batch.completed.Load()) == len(batch.items) {
		batch.doneOnce.Do(func() { close(batch.done) })
	}
}

func (batch *Batch) setWakeup(wakeup func()) {
	batch.Lock()
	defer batch.Unlock()

	batch.wakeup = wakeup
}

func (batch *Batch) wakeupWorkers() {
	if batch.wakeup != nil {
		batch.wakeup()
	}
}

// evaluateItemHold accepts the ID of an item that is on IMPORT_HOLD,
// and checks it's modtime to see if the item can be moved on to
// the 'IDLE' state.
// If the item with the ID provided no longer exists, the method is a NO-OP.
// If the item exists, but it's source file no longer exists, the item is released
// with a PATH_FAILURE trouble attached, so that the worker which claims it records
// the item as skipped rather than inspecting it.
// If the item exists and it's source still does not meet modtime requirements, then
// then a new timer will be scheduled to re-evaluate the item hold.
//
// Note: this function takes ownership of the mutex, and releases it when returning
func (batch *Batch) evaluateItemHold(id uuid.UUID) {
	batch.Lock()
	defer batch.Unlock()

	delete(batch.importHoldTimers, id)
	item := batch.findItem(id)
	if item == nil || item.State != IMPORT_HOLD {
		return
	}

	timeDiff, err := item.modtimeDiff()
	if err != nil {
		log.Emit(logger.REMOVE, "Source for %s has gone away while on import hold\n", item)
		item.State = IDLE
		item.Trouble = NewTrouble(PATH_FAILURE, fmt.Errorf("source removed while on import hold: %w", err))
		batch.wakeupWorkers()
		return
	}

	if *timeDiff < batch.requiredModTimeAge {
		batch.scheduleImportHoldTimer(id, batch.requiredModTimeAge-*timeDiff)
		return
	}

	item.State = IDLE
	batch.wakeupWorkers()
}

// scheduleImportHoldTimer will call evaluateItemHold for the item provided
// after the delay duration specified has elapsed. Any existing import hold timer
// for the item specified will be *cancelled* before the new timer is created.
func (batch *Batch) scheduleImportHoldTimer(id uuid.UUID, delay time.Duration) {
	batch.clearImportHoldTimer(id)
	batch.importHoldTimers[id] = time.AfterFunc(delay, func() {
		batch.evaluateItemHold(id)
	})
}

// clearImportHoldTimer cancels and deletes the import hold timer associatted
// with the item ID specified.
func (batch *Batch) clearImportHoldTimer(id uuid.UUID) {
	if timer, ok := batch.importHoldTimers[id]; ok {
		timer.Stop()
		delete(batch.importHoldTimers, id)
	}
}

// clearAllImportHoldTimers cancels and deletes the import hold timers for
// all items.
func (batch *Batch) clearAllImportHoldTimers() {
	for key, timer := range batch.importHoldTimers {
		timer.Stop()
		delete(batch.importHoldTimers, key)
	}
}
