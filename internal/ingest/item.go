package ingest

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

type (
	ItemState int

	// Item is a single path within a Batch. An item reaches exactly one
	// terminal state (COMPLETE or SKIPPED), at which point it is never
	// modified again.
	Item struct {
		ID      uuid.UUID
		Path    string
		State   ItemState
		Trouble *Trouble
	}
)

const (
	IDLE ItemState = iota
	IMPORT_HOLD
	INSPECTING
	COMPLETE
	SKIPPED
)

func (item *Item) isTerminal() bool {
	return item.State == COMPLETE || item.State == SKIPPED
}

func (item *Item) modtimeDiff() (*time.Duration, error) {
	itemInfo, err := os.Stat(item.Path)
	if err != nil {
		return nil, err
	}

	diff := time.Since(itemInfo.ModTime())
	return &diff, nil
}

func (item *Item) String() string {
	return fmt.Sprintf("Item{ID=%s path=%s state=%s}", item.ID, item.Path, item.State)
}

func (s ItemState) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case IMPORT_HOLD:
		return "IMPORT_HOLD"
	case INSPECTING:
		return "INSPECTING"
	case COMPLETE:
		return "COMPLETE"
	case SKIPPED:
		return "SKIPPED"
	default:
		return fmt.Sprintf("UNKNOWN[%d]", s)
	}
}
