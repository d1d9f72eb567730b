package records

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/dagplanner/pkg/push"
)

// DefaultDebounce is how long a record file must be quiet before it is read.
const DefaultDebounce = 300 * time.Millisecond

// Watcher turns record documents written into a [FileStore] directory by
// other processes into push updates.
type Watcher struct {
	store    *FileStore
	debounce time.Duration
	logger   *log.Logger
}

// NewWatcher creates a watcher over the store's directory.
func NewWatcher(store *FileStore, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{store: store, debounce: DefaultDebounce, logger: logger}
}

// WithDebounce sets the debounce duration.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch blocks until ctx is done, calling emit for every record file that
// was created or rewritten. Rapid writes to the same file are coalesced.
// Files that cannot be decoded are logged and skipped.
func (w *Watcher) Watch(ctx context.Context, emit func(push.Update)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.store.Dir()); err != nil {
		return err
	}
	w.logger.Debug("watching records", "dir", w.store.Dir())

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if !IsRecordFile(name) || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := event.Name
			mu.Lock()
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(w.debounce, func() {
				mu.Lock()
				delete(timers, path)
				mu.Unlock()
				if ctx.Err() != nil {
					return
				}
				w.fire(path, emit)
			})
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) fire(path string, emit func(push.Update)) {
	r, err := w.store.ReadFile(path)
	if err != nil {
		w.logger.Warn("skipping changed record", "file", filepath.Base(path), "err", err)
		return
	}
	w.logger.Info("record changed", "file", r.FileName, "layer", r.LayerType)
	emit(push.Update{
		Layer:         string(r.LayerType),
		MermaidSource: r.InputData.MermaidDag,
		Source:        "file:" + r.FileName,
	})
}
