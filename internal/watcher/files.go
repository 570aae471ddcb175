package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reports changes to a fixed set of files.
type FileWatcher struct {
	fsw       *fsnotify.Watcher
	files     map[string]struct{}
	debouncer *Debouncer
	logger    *slog.Logger

	events chan []FileEvent
	errors chan error
	stopCh chan struct{}

	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// NewFileWatcher starts watching the parent directories of paths.
func NewFileWatcher(paths []string, opts Options, logger *slog.Logger) (*FileWatcher, error) {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	files := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve absolute path: %w", err)
		}
		files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return &FileWatcher{
		fsw:       fsw,
		files:     files,
		debouncer: NewDebouncer(opts.DebounceWindow, logger),
		logger:    logger,
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}, nil
}

// Files returns the watched files in sorted order.
func (w *FileWatcher) Files() []string {
	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Start processes file system events until ctx is done or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	go w.forward(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *FileWatcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if _, ok := w.files[path]; !ok {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpDelete
	default:
		return
	}

	w.logger.Debug("data_file_event",
		slog.String("path", path),
		slog.String("op", op.String()))
	w.debouncer.Add(FileEvent{Path: path, Operation: op, Timestamp: time.Now()})
}

func (w *FileWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *FileWatcher) emit(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.events <- batch:
	default:
		count := w.droppedBatches.Add(1)
		w.logger.Warn("event_buffer_full",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *FileWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// DroppedBatches returns the number of batches dropped on a full buffer.
func (w *FileWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Events returns the channel of event batches. It is closed by Stop.
func (w *FileWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *FileWatcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the watcher. Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	err := w.fsw.Close()
	close(w.events)
	close(w.errors)
	return err
}
