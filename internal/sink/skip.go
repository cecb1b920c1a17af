package sink

import (
	"bufio"
	"os"

	"github.com/hbomb79/mediatab/internal/ingest"
)

// writeSkipReport overwrites the file at the path provided with the path of
// each skip record, one per line.
func writeSkipReport(path string, skipped []ingest.SkipRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return &SinkIOError{Op: "create", Path: path, Err: err}
	}

	w := bufio.NewWriter(file)
	for _, record := range skipped {
		if _, err := w.WriteString(record.Path + "\n"); err != nil {
			_ = file.Close()
			return &SinkIOError{Op: "write", Path: path, Err: err}
		}
	}

	if err := w.Flush(); err != nil {
		_ = file.Close()
		return &SinkIOError{Op: "write", Path: path, Err: err}
	}

	if err := file.Close(); err != nil {
		return &SinkIOError{Op: "close", Path: path, Err: err}
	}

	return nil
}
