package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces bursts of file events. Events for one path within
// the window merge as follows:
//   - CREATE then MODIFY stays CREATE
//   - CREATE then DELETE drops the path
//   - DELETE then CREATE becomes MODIFY
//   - otherwise the latest operation wins
type Debouncer struct {
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]FileEvent
	first   map[string]Operation
	timer   *time.Timer
	output  chan []FileEvent
	stopped bool
}

// NewDebouncer creates a debouncer that emits once window has passed
// without new events.
func NewDebouncer(window time.Duration, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window:  window,
		logger:  logger,
		pending: make(map[string]FileEvent),
		first:   make(map[string]Operation),
		output:  make(chan []FileEvent, 10),
	}
}

// Add records an event and restarts the window.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	path := event.Path
	if prev, ok := d.pending[path]; ok {
		merged, keep := merge(d.first[path], prev, event)
		if !keep {
			delete(d.pending, path)
			delete(d.first, path)
		} else {
			d.pending[path] = merged
		}
	} else {
		d.pending[path] = event
		d.first[path] = event.Operation
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func merge(first Operation, prev, next FileEvent) (FileEvent, bool) {
	switch {
	case first == OpCreate && next.Operation == OpModify:
		prev.Timestamp = next.Timestamp
		return prev, true
	case first == OpCreate && next.Operation == OpDelete:
		return FileEvent{}, false
	case first == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
		return next, true
	default:
		return next, true
	}
}

// flush emits the pending events sorted by path.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, e := range d.pending {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	d.pending = make(map[string]FileEvent)
	d.first = make(map[string]Operation)

	select {
	case d.output <- events:
	default:
		d.logger.Warn("debouncer_output_full",
			slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of event batches. It is closed by Stop.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop drops pending events and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
