package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/user/booknotes/internal/storage"
)

const (
	// DefaultDebounceInterval is how long a note file must be quiet before it
	// is checked against its row.
	DefaultDebounceInterval = 100 * time.Millisecond
)

// RestoreFunc re-mirrors one book's note file from the database. It reports
// whether the file on disk had to change.
type RestoreFunc func(ctx context.Context, id int64) (bool, error)

// LogFunc is called to log messages.
type LogFunc func(format string, args ...interface{})

// Watcher monitors the notes directory and puts back note files that were
// edited or removed behind the server's back.
type Watcher struct {
	dir              string
	restoreFn        RestoreFunc
	logFn            LogFunc
	debounceInterval time.Duration

	watcher   *fsnotify.Watcher
	ctx       context.Context
	cancel    context.CancelFunc
	doneChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// debounce state per book id
	mu       sync.Mutex
	pending  map[int64]*time.Timer
	restored int
	started  bool
}

// NewWatcher creates a watcher for the notes directory dir.
// restoreFn is usually Store.RestoreNote; logFn may be nil.
func NewWatcher(dir string, restoreFn RestoreFunc, logFn LogFunc) (*Watcher, error) {
	if restoreFn == nil {
		return nil, fmt.Errorf("watcher: restore function is required")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logFn == nil {
		logFn = func(format string, args ...interface{}) {} // no-op
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:              dir,
		restoreFn:        restoreFn,
		logFn:            logFn,
		debounceInterval: DefaultDebounceInterval,
		watcher:          fsWatcher,
		ctx:              ctx,
		cancel:           cancel,
		doneChan:         make(chan struct{}),
		pending:          make(map[int64]*time.Timer),
	}, nil
}

// SetDebounceInterval changes the quiet period. Call before Start.
func (w *Watcher) SetDebounceInterval(d time.Duration) {
	w.debounceInterval = d
}

// Start begins watching. The notes directory must exist. Close must be
// called even when Start fails.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logFn("Watching notes directory: %s", w.dir)

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.processEvents()
	return nil
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		w.Close()
		return err
	}
	<-ctx.Done()
	w.Close()
	return nil
}

// Close stops the watcher and waits for in-flight restores.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		w.cancel()
		w.watcher.Close()

		w.mu.Lock()
		for id, timer := range w.pending {
			if timer.Stop() {
				w.wg.Done()
			}
			delete(w.pending, id)
		}
		started := w.started
		w.mu.Unlock()

		if started {
			<-w.doneChan
		}
		w.wg.Wait()
	})
}

// Restored returns how many files the watcher has put back.
func (w *Watcher) Restored() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.restored
}

func (w *Watcher) processEvents() {
	defer close(w.doneChan)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logFn("Watch error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Dir(event.Name) != filepath.Clean(w.dir) {
		return
	}
	id, ok := storage.IDFromPath(event.Name)
	if !ok {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.logFn("Note file change detected: %s (%s)", filepath.Base(event.Name), event.Op)
	w.scheduleRestore(id)
}

func (w *Watcher) scheduleRestore(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(id)
}

// scheduleLocked (re)arms the debounce timer for id. w.mu must be held.
func (w *Watcher) scheduleLocked(id int64) {
	if w.ctx.Err() != nil {
		return
	}
	if timer, exists := w.pending[id]; exists {
		if timer.Stop() {
			w.wg.Done()
		}
	}

	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.debounceInterval, func() {
		defer w.wg.Done()

		// A newer event may have re-armed id after this timer fired
		w.mu.Lock()
		if w.pending[id] == timer {
			delete(w.pending, id)
		}
		w.mu.Unlock()

		w.doRestore(id)
	})
	w.pending[id] = timer
}

func (w *Watcher) doRestore(id int64) {
	if w.ctx.Err() != nil {
		return
	}

	changed, err := w.restoreFn(w.ctx, id)
	if err != nil {
		w.logFn("Error restoring note file for book %d: %v", id, err)
		return
	}
	if changed {
		w.mu.Lock()
		w.restored++
		w.mu.Unlock()
		w.logFn("Restored note file %s from database", filepath.Join(w.dir, fmt.Sprintf("%d.txt", id)))
	}
}

// NoteFileCount returns the number of note files currently in the directory.
func (w *Watcher) NoteFileCount() int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if _, ok := storage.IDFromPath(e.Name()); ok && !e.IsDir() {
			count++
		}
	}
	return count
}
