package state

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/feral-kitty/fifi/errors"
	"github.com/feral-kitty/fifi/logger"
	"github.com/feral-kitty/fifi/schedule"
)

// Watcher watches the state file for writes by other processes and triggers
// reload callbacks with the fresh job collection. The authoring CLI and the
// dispatcher daemon each load their own in-memory copy of the document; the
// watcher is how a running daemon picks up jobs added, edited, or removed
// from outside before its next persist would overwrite them.
type Watcher struct {
	store           *Store
	watcher         *fsnotify.Watcher
	callbacks       []ReloadCallback
	mu              sync.RWMutex
	debounceTimer   *time.Timer
	debouncePeriod  time.Duration
	isOwnWrite      bool
	isOwnWriteMutex sync.Mutex
}

// ReloadCallback receives the reloaded job collection after a foreign write.
type ReloadCallback func(jobs []*schedule.Job) error

// NewWatcher creates a watcher over the store's state file and installs
// itself on the store so the store's own persists are not reported.
func NewWatcher(store *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}

	// Watch the directory: the store replaces the file by rename, which
	// would orphan a watch placed on the file itself.
	dir := filepath.Dir(store.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch state directory %s", dir)
	}

	w := &Watcher{
		store:          store,
		watcher:        fsw,
		callbacks:      make([]ReloadCallback, 0),
		debouncePeriod: 500 * time.Millisecond,
	}
	store.SetWatcher(w)
	return w, nil
}

// OnReload registers a callback for state reloads.
func (w *Watcher) OnReload(callback ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// MarkOwnWrite marks the next write as ours so it does not trigger a reload.
func (w *Watcher) MarkOwnWrite() {
	w.isOwnWriteMutex.Lock()
	defer w.isOwnWriteMutex.Unlock()
	w.isOwnWrite = true
}

func (w *Watcher) checkOwnWrite() bool {
	w.isOwnWriteMutex.Lock()
	defer w.isOwnWriteMutex.Unlock()
	if w.isOwnWrite {
		w.isOwnWrite = false
		return true
	}
	return false
}

// Start begins watching for state file changes.
func (w *Watcher) Start() {
	go w.watchLoop()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if !w.isStateFile(event.Name) {
					continue
				}
				if w.checkOwnWrite() {
					logger.Debugw("State watcher ignoring own write", "file", event.Name)
					continue
				}

				logger.Infow("State watcher detected foreign write",
					"file", event.Name,
					"op", event.Op.String())
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("State watcher error", "error", err)
		}
	}
}

// isStateFile reports whether the event names the state file itself. Backup
// and temp siblings (.back1..3, .tmp) carry different base names and fall
// out here.
func (w *Watcher) isStateFile(path string) bool {
	return filepath.Base(path) == filepath.Base(w.store.path)
}

// scheduleReload debounces rapid file changes before reloading.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if err := w.reload(); err != nil {
			logger.Errorw("State reload failed", "error", err)
		}
	})
}

func (w *Watcher) reload() error {
	jobs, err := w.store.Reload()
	if err != nil {
		return err
	}

	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(jobs); err != nil {
			logger.Warnw("State reload callback error", "error", err)
		}
	}
	return nil
}

// Stop stops watching for state file changes.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
