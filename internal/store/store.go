// Package store is a reactive state container.
//
// The store holds a root key/value map plus namespaced modules. Modules
// change only through committed mutations. Watchers observe derived values
// and fire when the structural hash of a value changes.
package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Aman-CERP/resourcesearch/internal/errors"
)

// Mutation is a typed state change applied by a Module.
type Mutation interface {
	MutationName() string
}

// Module owns a namespaced slice of state.
type Module interface {
	// Apply runs with the store's write lock held. It must not call back
	// into the store.
	Apply(m Mutation) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is safe for concurrent use.
type Store struct {
	logger *slog.Logger

	mu       sync.RWMutex
	root     map[string]any
	modules  map[string]Module
	watchers []*watcher
}

// New creates a store with a copy of initial as its root state.
func New(initial map[string]any, opts ...Option) *Store {
	s := &Store{
		logger:  slog.Default(),
		root:    make(map[string]any, len(initial)),
		modules: make(map[string]Module),
	}
	for k, v := range initial {
		s.root[k] = v
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State is a read view of the store. It is only valid inside the
// callback that received it.
type State struct {
	s *Store
}

// Get returns a root value.
func (v State) Get(key string) any { return v.s.root[key] }

// Keys returns the root keys in sorted order.
func (v State) Keys() []string {
	keys := make([]string, 0, len(v.s.root))
	for k := range v.s.root {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Module returns the module registered under namespace.
func (v State) Module(namespace string) (Module, bool) {
	m, ok := v.s.modules[namespace]
	return m, ok
}

// Read calls fn with a consistent view of the state.
func (s *Store) Read(fn func(State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(State{s: s})
}

// Get returns a root value.
func (s *Store) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root[key]
}

// Set replaces a root value.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.root[key] = value
	s.logger.Debug("state_set", slog.String("key", key))
	fire := s.changedLocked()
	s.mu.Unlock()

	fire()
}

// Update replaces a root value with fn applied to its current value.
func (s *Store) Update(key string, fn func(old any) any) {
	s.mu.Lock()
	s.root[key] = fn(s.root[key])
	s.logger.Debug("state_updated", slog.String("key", key))
	fire := s.changedLocked()
	s.mu.Unlock()

	fire()
}

// Delete removes a root value.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.root, key)
	s.logger.Debug("state_deleted", slog.String("key", key))
	fire := s.changedLocked()
	s.mu.Unlock()

	fire()
}

// RegisterModule adds a module under namespace.
func (s *Store) RegisterModule(namespace string, m Module) error {
	if m == nil {
		return errors.ValidationError(fmt.Sprintf("module %q is nil", namespace), nil)
	}

	s.mu.Lock()
	if _, ok := s.modules[namespace]; ok {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeModuleExists,
			fmt.Sprintf("module %q is already registered", namespace), nil).
			WithDetail("namespace", namespace)
	}
	s.modules[namespace] = m
	s.logger.Debug("module_registered", slog.String("namespace", namespace))
	fire := s.changedLocked()
	s.mu.Unlock()

	fire()
	return nil
}

// UnregisterModule removes the module under namespace, if any.
func (s *Store) UnregisterModule(namespace string) {
	s.mu.Lock()
	if _, ok := s.modules[namespace]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.modules, namespace)
	s.logger.Debug("module_unregistered", slog.String("namespace", namespace))
	fire := s.changedLocked()
	s.mu.Unlock()

	fire()
}

// HasModule reports whether a module is registered under namespace.
func (s *Store) HasModule(namespace string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.modules[namespace]
	return ok
}

// Commit applies m to the module under namespace.
func (s *Store) Commit(namespace string, m Mutation) error {
	s.mu.Lock()
	mod, ok := s.modules[namespace]
	if !ok {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeModuleNotFound,
			fmt.Sprintf("module %q is not registered", namespace), nil).
			WithDetail("namespace", namespace).
			WithDetail("mutation", m.MutationName())
	}
	if err := mod.Apply(m); err != nil {
		s.mu.Unlock()
		return err
	}
	s.logger.Debug("mutation_committed",
		slog.String("namespace", namespace),
		slog.String("mutation", m.MutationName()))
	fire := s.changedLocked()
	s.mu.Unlock()

	fire()
	return nil
}
