package store

import (
	"log/slog"
	"sync/atomic"

	"github.com/mitchellh/hashstructure/v2"
)

// Getter derives a watched value from the state.
type Getter func(State) any

// WatchFunc receives the new and previous values of a watched getter.
type WatchFunc func(newValue, oldValue any)

type watcher struct {
	getter   Getter
	callback WatchFunc
	stopped  atomic.Bool

	// guarded by Store.mu
	value any
	hash  uint64
	ok    bool
}

// Watch calls callback whenever the structural hash of getter's value
// changes after a store change. Values that cannot be hashed count as
// changed on every store change. Callbacks run after the store lock is
// released, on the goroutine that made the change.
func (s *Store) Watch(getter Getter, callback WatchFunc) (unwatch func()) {
	w := &watcher{getter: getter, callback: callback}

	s.mu.Lock()
	w.value = getter(State{s: s})
	w.hash, w.ok = s.fingerprint(w.value)
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	return func() {
		if w.stopped.Swap(true) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, cur := range s.watchers {
			if cur == w {
				s.watchers = append(s.watchers[:i:i], s.watchers[i+1:]...)
				break
			}
		}
	}
}

// WatcherCount returns the number of active watchers.
func (s *Store) WatcherCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers)
}

// changedLocked re-evaluates every watcher and returns a function that
// delivers the resulting callbacks. Caller holds s.mu for writing.
func (s *Store) changedLocked() func() {
	type call struct {
		w              *watcher
		newVal, oldVal any
	}
	var calls []call

	view := State{s: s}
	for _, w := range s.watchers {
		value := w.getter(view)
		hash, ok := s.fingerprint(value)
		if ok && w.ok && hash == w.hash {
			continue
		}
		calls = append(calls, call{w: w, newVal: value, oldVal: w.value})
		w.value, w.hash, w.ok = value, hash, ok
	}

	return func() {
		for _, c := range calls {
			if !c.w.stopped.Load() {
				c.w.callback(c.newVal, c.oldVal)
			}
		}
	}
}

func (s *Store) fingerprint(v any) (uint64, bool) {
	h, err := hashstructure.Hash(v, hashstructure.FormatV2, nil)
	if err != nil {
		s.logger.Debug("watch_hash_failed", slog.String("error", err.Error()))
		return 0, false
	}
	return h, true
}
