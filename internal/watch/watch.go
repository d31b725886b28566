// Package watch reloads strain data when the backing file changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"finitefield.org/seed-web/internal/navigator"
)

// Watcher calls OnChange once per burst of writes to a single file. The parent
// directory is watched so editors that replace the file by rename still fire.
type Watcher struct {
	path     string
	onChange func(context.Context)
	logger   *zap.Logger

	fs       *fsnotify.Watcher
	debounce *navigator.Debouncer

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// New watches path. A non-positive delay uses navigator.DefaultDebounce.
func New(path string, delay time.Duration, onChange func(context.Context), logger *zap.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watch: onChange is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch: add %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		onChange: onChange,
		logger:   logger.With(zap.String("path", abs)),
		fs:       fsw,
		debounce: navigator.NewDebouncer(delay),
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	go w.run(ctx)
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	w.debounce.Stop()
	err := w.fs.Close()
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if running {
		<-w.done
	}
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	w.logger.Info("watch: started")
	for {
		select {
		case <-ctx.Done():
			w.debounce.Stop()
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("watch: change", zap.String("op", ev.Op.String()))
			w.debounce.Trigger(func() {
				w.logger.Info("watch: reloading")
				w.onChange(context.WithoutCancel(ctx))
			})
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch: error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
