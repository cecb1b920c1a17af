package ingest

import (
	"errors"
	"fmt"
)

type (
	TroubleType int

	// Trouble is the reason a path could not produce a row. It wraps
	// the underlying error so callers can still use errors.Is/As.
	Trouble struct {
		error
		tType TroubleType
	}

	// SkipRecord is a path which did not produce a row, and why.
	SkipRecord struct {
		Path    string
		Trouble *Trouble
	}
)

const (
	PATH_FAILURE TroubleType = iota
	INSPECT_FAILURE
	CANCELLED
	SINK_FAILURE
)

var (
	ErrNotFileOrDir = errors.New("not a file or directory")
	ErrBatchSealed  = errors.New("batch is sealed and cannot accept new items")
	ErrItemNotFound = errors.New("no batch item could be found")
)

func NewTrouble(tType TroubleType, err error) *Trouble {
	return &Trouble{error: err, tType: tType}
}

func (t *Trouble) Type() TroubleType { return t.tType }

func (t *Trouble) Unwrap() error { return t.error }

func (t TroubleType) String() string {
	switch t {
	case PATH_FAILURE:
		return "PATH_FAILURE"
	case INSPECT_FAILURE:
		return "INSPECT_FAILURE"
	case CANCELLED:
		return "CANCELLED"
	case SINK_FAILURE:
		return "SINK_FAILURE"
	default:
		return fmt.Sprintf("UNKNOWN[%d]", t)
	}
}

// Reason returns the human readable reason for the skip, or an
// empty string if no trouble is attached.
func (record SkipRecord) Reason() string {
	if record.Trouble == nil || record.Trouble.error == nil {
		return ""
	}

	return record.Trouble.Error()
}

func (record SkipRecord) String() string {
	if record.Trouble == nil {
		return fmt.Sprintf("SkipRecord{path=%s}", record.Path)
	}

	return fmt.Sprintf("SkipRecord{path=%s trouble=%s reason=%q}", record.Path, record.Trouble.tType, record.Reason())
}
