package store

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// JournalWatcher watches the journal file and invokes a callback whenever
// new events are written to it. Used by the live watch view to follow the
// daemon's decisions.
type JournalWatcher struct {
	watcher  *fsnotify.Watcher
	filePath string
	onChange func()
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewJournalWatcher creates a watcher for the journal file. onChange runs
// on the watcher goroutine for every write to the file.
func NewJournalWatcher(filePath string, onChange func()) (*JournalWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &JournalWatcher{
		watcher:  watcher,
		filePath: filePath,
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching for changes.
func (jw *JournalWatcher) Start() error {
	jw.mu.Lock()
	if jw.running {
		jw.mu.Unlock()
		return nil
	}
	jw.running = true
	jw.mu.Unlock()

	// Watch the directory containing the file (more reliable for writes)
	dir := filepath.Dir(jw.filePath)
	if err := jw.watcher.Add(dir); err != nil {
		return err
	}

	go jw.watch()
	return nil
}

func (jw *JournalWatcher) watch() {
	filename := filepath.Base(jw.filePath)

	for {
		select {
		case event, ok := <-jw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				slog.Debug("journal changed", "file", jw.filePath)
				jw.onChange()
			}

		case err, ok := <-jw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("journal watcher error", "error", err)

		case <-jw.done:
			return
		}
	}
}

// Stop stops the watcher.
func (jw *JournalWatcher) Stop() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if !jw.running {
		return nil
	}

	jw.running = false
	close(jw.done)
	return jw.watcher.Close()
}
