package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// csvFile is an append-only CSV file which is held open for the duration of
// a run. Every row is flushed to the file as soon as it's written.
type csvFile struct {
	file   *os.File
	writer *csv.Writer
	sync   bool
}

// openCSV opens (creating if needed) the CSV at the path provided for appending. If
// the file is empty the header provided is written first, unless it's nil.
func openCSV(path string, encodingName string, header []string, sync bool) (*csvFile, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &SinkIOError{Op: "open", Path: path, Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, &SinkIOError{Op: "stat", Path: path, Err: err}
	}

	isNew := info.Size() == 0
	out, err := encodedWriter(file, encodingName, isNew)
	if err != nil {
		_ = file.Close()
		return nil, &SinkIOError{Op: "open", Path: path, Err: err}
	}

	csvFile := &csvFile{file: file, writer: csv.NewWriter(out), sync: sync}
	if isNew && header != nil {
		if err := csvFile.write(header); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return csvFile, nil
}

// encodedWriter wraps the file with an encoder for the encoding named. Runes
// which cannot be represented are replaced rather than failing the row. A
// UTF-8 BOM is only written to a new file, as the file may otherwise
// already contain one.
func encodedWriter(w io.Writer, name string, isNew bool) (io.Writer, error) {
	switch name {
	case "", EncodingUTF8:
		return w, nil
	case EncodingUTF8BOM:
		if isNew {
			return unicode.UTF8BOM.NewEncoder().Writer(w), nil
		}

		return w, nil
	case EncodingWindows1252:
		return encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).Writer(w), nil
	case EncodingISO88591:
		return encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).Writer(w), nil
	default:
		return nil, fmt.Errorf("unsupported output encoding %q", name)
	}
}

func (f *csvFile) write(record []string) error {
	if err := f.writer.Write(record); err != nil {
		return &SinkIOError{Op: "write", Path: f.file.Name(), Err: err}
	}

	f.writer.Flush()
	if err := f.writer.Error(); err != nil {
		return &SinkIOError{Op: "write", Path: f.file.Name(), Err: err}
	}

	if f.sync {
		if err := f.file.Sync(); err != nil {
			return &SinkIOError{Op: "sync", Path: f.file.Name(), Err: err}
		}
	}

	return nil
}

func (f *csvFile) Close() error {
	if err := f.file.Close(); err != nil {
		return &SinkIOError{Op: "close", Path: f.file.Name(), Err: err}
	}

	return nil
}
