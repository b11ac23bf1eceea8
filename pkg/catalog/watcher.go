package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"assistant/pkg/logx"
)

// DefaultDebounce is how long the watcher waits for writes to settle before reloading.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads an override catalog file into a Store when it changes.
// A document that fails to parse leaves the previous snapshot active.
type Watcher struct {
	store    *Store
	path     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   *logx.Logger

	closeOnce sync.Once
	reloads   chan struct{}
}

// NewWatcher watches the directory containing path. Editors often replace files
// by rename, so watching the file itself would lose the watch.
func NewWatcher(store *Store, path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		store:    store,
		path:     abs,
		debounce: DefaultDebounce,
		fsw:      fsw,
		logger:   logx.NewLogger("catalog"),
		reloads:  make(chan struct{}, 1),
	}, nil
}

// Reloaded signals after each successful reload. Intended for tests.
func (w *Watcher) Reloaded() <-chan struct{} {
	return w.reloads
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error: %v", err)
		case <-timerC:
			timerC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	c, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("keeping previous catalog: %v", err)
		return
	}
	w.store.Swap(c)
	w.logger.Info("reloaded catalog from %s (%d shortcuts, %d actions)", w.path, len(c.Shortcuts), len(c.WindowsActions))
	select {
	case w.reloads <- struct{}{}:
	default:
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}
