// Package searchapi keeps one search engine per resource name and
// publishes search results to subscribers.
//
// At most one search per resource name is in flight. Starting a new one
// cancels the previous one, and a cancelled search never notifies.
package searchapi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Aman-CERP/resourcesearch/internal/engine"
	"github.com/Aman-CERP/resourcesearch/internal/errors"
)

var handles atomic.Uint64

// Option configures an API.
type Option func(*API)

// WithEngineOptions sets the options used for every engine the API builds.
func WithEngineOptions(opts engine.Options) Option {
	return func(a *API) {
		a.newEngine = func() (Engine, error) { return engine.New(opts) }
	}
}

// WithEngineFactory replaces the engine constructor.
func WithEngineFactory(f EngineFactory) Option {
	return func(a *API) {
		if f != nil {
			a.newEngine = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

type flight struct {
	cancel context.CancelFunc
}

type subscription struct {
	onNext   func(Result)
	onError  func(error)
	disposed atomic.Bool
}

// API is the subscribable search facade. It is safe for concurrent use.
//
// Subscriber callbacks run on the search's goroutine, one notification
// at a time. They must not wait for another search to settle.
type API struct {
	handle    Handle
	logger    *slog.Logger
	newEngine EngineFactory

	mu       sync.Mutex
	engines  map[string]Engine
	inflight map[string]*flight
	subs     []*subscription

	// emitMu orders notifications by completion.
	emitMu sync.Mutex
}

// New creates an API with the default engine options.
func New(opts ...Option) *API {
	a := &API{
		handle:   Handle(handles.Add(1)),
		logger:   slog.Default(),
		engines:  make(map[string]Engine),
		inflight: make(map[string]*flight),
	}
	WithEngineOptions(engine.DefaultOptions())(a)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle returns the API's process-unique identity.
func (a *API) Handle() Handle { return a.handle }

// IndexResource builds a fresh engine for req.ResourceName and swaps it
// in. On error the previous engine is kept. A search in flight against
// the replaced engine is cancelled.
func (a *API) IndexResource(req IndexRequest) error {
	populate, err := indexer(req)
	if err != nil {
		return err
	}

	eng, err := a.newEngine()
	if err != nil {
		return errors.InternalError("failed to create search engine", err).
			WithDetail("resource", req.ResourceName)
	}
	if err := populate(eng); err != nil {
		_ = eng.Close()
		return fmt.Errorf("index resource %q: %w", req.ResourceName, err)
	}

	a.mu.Lock()
	old := a.engines[req.ResourceName]
	a.engines[req.ResourceName] = eng
	if f := a.inflight[req.ResourceName]; f != nil {
		f.cancel()
		delete(a.inflight, req.ResourceName)
	}
	a.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	a.logger.Debug("resource_indexed",
		slog.String("resource", req.ResourceName),
		slog.Int("documents", collectionLen(req.Resources)))
	return nil
}

// indexer validates the spec and returns the function that fills an engine.
func indexer(req IndexRequest) (func(Engine) error, error) {
	switch spec := req.Spec.(type) {
	case FieldIndex:
		fields := append([]string(nil), spec...)
		return func(eng Engine) error {
			if req.Resources == nil {
				return nil
			}
			req.Resources.Each(func(doc engine.Document) {
				id := doc.DocumentID()
				for _, field := range fields {
					eng.IndexDocument(id, doc.FieldValue(field))
				}
			})
			return nil
		}, nil
	case IndexFunc:
		if spec == nil {
			return nil, errors.InvalidIndexSpec(req.ResourceName, req.Spec)
		}
		return func(eng Engine) error {
			return spec(IndexFuncArgs{
				IndexDocument: eng.IndexDocument,
				Resources:     req.Resources,
			})
		}, nil
	default:
		return nil, errors.InvalidIndexSpec(req.ResourceName, req.Spec)
	}
}

func collectionLen(c engine.Collection) int {
	if c == nil {
		return 0
	}
	return c.Len()
}

// Indexed reports whether the resource has an engine.
func (a *API) Indexed(resourceName string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.engines[resourceName]
	return ok
}

// PerformSearch searches the resource and blocks until the search settles.
// Any search already in flight for the resource is cancelled first.
func (a *API) PerformSearch(ctx context.Context, resourceName, text string) Outcome {
	return <-a.StartSearch(ctx, resourceName, text)
}

// StartSearch is the asynchronous form of PerformSearch. The search is
// the resource's current one when StartSearch returns; the channel
// receives its outcome.
func (a *API) StartSearch(ctx context.Context, resourceName, text string) <-chan Outcome {
	fctx, cancel := context.WithCancel(ctx)
	f := &flight{cancel: cancel}

	a.mu.Lock()
	if prev := a.inflight[resourceName]; prev != nil {
		prev.cancel()
	}
	a.inflight[resourceName] = f
	eng := a.engines[resourceName]
	a.mu.Unlock()

	done := make(chan Outcome, 1)
	go func() {
		defer cancel()
		done <- a.run(fctx, f, eng, resourceName, text)
	}()
	return done
}

func (a *API) run(ctx context.Context, f *flight, eng Engine, resourceName, text string) Outcome {
	var ids []string
	var err error
	if eng == nil {
		err = errors.ResourceNotFound(resourceName)
	} else {
		ids, err = eng.Search(ctx, text)
	}

	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	a.mu.Lock()
	current := a.inflight[resourceName] == f
	if current {
		delete(a.inflight, resourceName)
	}
	subs := append([]*subscription(nil), a.subs...)
	a.mu.Unlock()

	if !current || ctx.Err() != nil {
		a.logger.Debug("search_cancelled",
			slog.String("resource", resourceName),
			slog.String("text", text))
		return Outcome{Status: Cancelled, IDs: []string{}}
	}

	if err != nil {
		serr := &SearchError{
			ResourceName: resourceName,
			Text:         text,
			Err:          errors.SearchFailure(resourceName, err),
		}
		a.logger.Warn("search_failed",
			slog.String("resource", resourceName),
			slog.String("text", text),
			slog.String("error", err.Error()))
		for _, s := range subs {
			if s.onError != nil && !s.disposed.Load() {
				s.onError(serr)
			}
		}
		return Outcome{Status: Failed, IDs: []string{}, Err: serr}
	}

	if ids == nil {
		ids = []string{}
	}
	result := Result{ResourceName: resourceName, Text: text, IDs: ids}
	for _, s := range subs {
		if s.onNext != nil && !s.disposed.Load() {
			s.onNext(result)
		}
	}
	return Outcome{Status: Succeeded, IDs: append([]string(nil), ids...)}
}

// StopSearch cancels the resource's in-flight search, if any.
func (a *API) StopSearch(resourceName string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if f := a.inflight[resourceName]; f != nil {
		f.cancel()
		delete(a.inflight, resourceName)
	}
}

// Subscribe registers result and error callbacks; either may be nil.
// The returned dispose removes exactly this registration and may be
// called more than once.
func (a *API) Subscribe(onNext func(Result), onError func(error)) (dispose func()) {
	s := &subscription{onNext: onNext, onError: onError}

	a.mu.Lock()
	a.subs = append(a.subs, s)
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.disposed.Store(true)
			a.mu.Lock()
			defer a.mu.Unlock()
			for i, cur := range a.subs {
				if cur == s {
					a.subs = append(a.subs[:i:i], a.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// SubscriberCount returns the number of live subscriptions.
func (a *API) SubscriberCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

// Close cancels every in-flight search and releases all engines.
func (a *API) Close() error {
	a.mu.Lock()
	for name, f := range a.inflight {
		f.cancel()
		delete(a.inflight, name)
	}
	engines := a.engines
	a.engines = make(map[string]Engine)
	a.mu.Unlock()

	var firstErr error
	for _, eng := range engines {
		if err := eng.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
