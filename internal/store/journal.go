// Package store persists the ducking event journal as JSONL and watches
// it for changes.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/audioduck/internal/model"
)

// SchemaVersion is the current journal schema version.
const SchemaVersion = 1

// ErrJournalClosed is returned when operations are attempted on a closed
// journal.
var ErrJournalClosed = errors.New("journal is closed")

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	AudioduckSchemaVersion int   `json:"audioduck_schema_version"`
	CreatedAt              int64 `json:"created_at"`
}

// Journal is an append-only JSONL log of ducking events.
type Journal struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// OpenJournal opens (or creates) the journal file at path and writes the
// schema header if the file is new.
func OpenJournal(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	j := &Journal{
		path: path,
		file: file,
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if err := j.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}

	return j, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// writeHeader writes the schema version header. Caller holds the mutex or
// owns the journal exclusively.
func (j *Journal) writeHeader() error {
	header := schemaHeader{
		AudioduckSchemaVersion: SchemaVersion,
		CreatedAt:              time.Now().Unix(),
	}

	data, err := json.Marshal(header)
	if err != nil {
		return err
	}

	_, err = j.file.Write(append(data, '\n'))
	return err
}

// Append adds an event to the journal and syncs it to disk.
func (j *Journal) Append(e model.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed || j.file == nil {
		return ErrJournalClosed
	}

	if err := e.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return err
	}

	return j.file.Sync()
}

// Load reads all events from the journal. Malformed lines are skipped so
// a partially corrupted file still yields its valid events.
func (j *Journal) Load() ([]model.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed || j.file == nil {
		return nil, ErrJournalClosed
	}

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", j.path, err)
	}

	var events []model.Event
	scanner := bufio.NewScanner(j.file)

	const maxLineSize = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.AudioduckSchemaVersion > 0 {
				if header.AudioduckSchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.AudioduckSchemaVersion, SchemaVersion)
				}
				continue
			}
			// No header line; fall through and try it as an event
		}

		var e model.Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if e.ID != "" {
			events = append(events, e)
		}
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading journal: %w", err)
	}

	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return events, err
	}

	return events, nil
}

// Clear truncates the journal back to just the schema header. The old
// contents are kept as a .bak file.
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}

	backupPath := j.path + ".bak"
	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return err
		}
		j.file = nil
	}

	if err := os.Rename(j.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(j.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		os.Rename(backupPath, j.path)
		return err
	}
	j.file = file

	if err := j.writeHeader(); err != nil {
		return err
	}

	return j.file.Sync()
}

// Close releases the file handle. Further operations return
// ErrJournalClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if j.file != nil {
		err := j.file.Close()
		j.file = nil
		return err
	}
	return nil
}
