package sink

import "fmt"

// SinkIOError is returned when the output of a run cannot be written. Unlike
// a skipped file, this is fatal to the run.
type SinkIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *SinkIOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SinkIOError) Unwrap() error { return e.Err }
