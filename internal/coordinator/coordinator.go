// Package coordinator connects store-held resource collections to search
// APIs. It keeps each registered resource indexed as its collection
// changes and writes search results back into the store.
package coordinator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Aman-CERP/resourcesearch/internal/engine"
	"github.com/Aman-CERP/resourcesearch/internal/errors"
	"github.com/Aman-CERP/resourcesearch/internal/resource"
	"github.com/Aman-CERP/resourcesearch/internal/searchapi"
	"github.com/Aman-CERP/resourcesearch/internal/store"
	"github.com/Aman-CERP/resourcesearch/internal/telemetry"
)

// DefaultNamespace is the store namespace of the resource module.
const DefaultNamespace = "resourceSearch"

// Getter extracts a resource's collection from the store.
type Getter func(store.State) engine.Collection

// WatchConfig controls reindexing when a collection changes.
type WatchConfig struct {
	Disabled bool
	// Delay debounces bursts of changes. Zero reindexes on the next
	// scheduler turn.
	Delay time.Duration
}

// ResourceConfig describes one searchable resource.
type ResourceConfig struct {
	Getter Getter
	Index  searchapi.IndexSpec
	Watch  WatchConfig
	// SearchAPI overrides the coordinator's default API.
	SearchAPI *searchapi.API
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNamespace sets the store namespace of the resource module.
func WithNamespace(namespace string) Option {
	return func(c *Coordinator) {
		if namespace != "" {
			c.namespace = namespace
		}
	}
}

// WithSearchAPI sets the default search API.
func WithSearchAPI(api *searchapi.API) Option {
	return func(c *Coordinator) { c.api = api }
}

// WithEngineOptions configures the default search API the coordinator
// builds when none is supplied.
func WithEngineOptions(opts engine.Options) Option {
	return func(c *Coordinator) { c.engineOpts = &opts }
}

// WithResources registers resources during New, in name order.
func WithResources(resources map[string]ResourceConfig) Option {
	return func(c *Coordinator) { c.initial = resources }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the collector settled searches are recorded in.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

type registration struct {
	name    string
	cfg     ResourceConfig
	api     *searchapi.API
	unwatch func()
	timer   *time.Timer // guarded by Coordinator.mu
	// latest is the text of the last search issued; results for any
	// other text are superseded. Guarded by Coordinator.mu.
	latest string
}

// ledgerEntry is the one subscription held per search API.
type ledgerEntry struct {
	api         *searchapi.API
	unsubscribe func()
	resources   map[string]struct{}
}

// Coordinator is safe for concurrent use. Its entry points run one at a
// time.
type Coordinator struct {
	store      *store.Store
	namespace  string
	api        *searchapi.API
	ownsAPI    bool
	engineOpts *engine.Options
	initial    map[string]ResourceConfig
	logger     *slog.Logger
	metrics    *telemetry.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	opMu sync.Mutex

	mu     sync.Mutex
	regs   map[string]*registration
	ledger map[searchapi.Handle]*ledgerEntry
	closed bool

	// pending counts searches not yet settled; settled is signalled
	// when it drops to zero.
	pendingMu sync.Mutex
	pending   int
	settled   *sync.Cond
}

// New registers the resource module in s and any initial resources.
func New(s *store.Store, opts ...Option) (*Coordinator, error) {
	if s == nil {
		return nil, errors.ValidationError("coordinator requires a store", nil)
	}

	c := &Coordinator{
		store:     s,
		namespace: DefaultNamespace,
		logger:    slog.Default(),
		regs:      make(map[string]*registration),
		ledger:    make(map[searchapi.Handle]*ledgerEntry),
	}
	c.settled = sync.NewCond(&c.pendingMu)
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = telemetry.New(telemetry.DefaultConfig())
	}
	if c.api == nil {
		apiOpts := []searchapi.Option{searchapi.WithLogger(c.logger)}
		if c.engineOpts != nil {
			apiOpts = append(apiOpts, searchapi.WithEngineOptions(*c.engineOpts))
		}
		c.api = searchapi.New(apiOpts...)
		c.ownsAPI = true
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := s.RegisterModule(c.namespace, resource.NewModule()); err != nil {
		c.cancel()
		if c.ownsAPI {
			_ = c.api.Close()
		}
		return nil, err
	}

	names := make([]string, 0, len(c.initial))
	for name := range c.initial {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.RegisterResource(context.Background(), name, c.initial[name]); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("register resource %q: %w", name, err)
		}
	}

	return c, nil
}

// Metrics returns the collector settled searches are recorded in.
func (c *Coordinator) Metrics() *telemetry.Metrics { return c.metrics }

// Namespace returns the store namespace of the resource module.
func (c *Coordinator) Namespace() string { return c.namespace }

// Store returns the underlying store.
func (c *Coordinator) Store() *store.Store { return c.store }

// SearchAPI returns the default search API.
func (c *Coordinator) SearchAPI() *searchapi.API { return c.api }

// RegisterResource makes name searchable. Its state starts empty, its
// collection is indexed and searched with "" right away, and, unless
// watching is disabled, it is reindexed whenever the collection changes.
// If the initial indexing fails the registration is undone.
//
// Registering a name that is already registered replaces it.
func (c *Coordinator) RegisterResource(ctx context.Context, name string, cfg ResourceConfig) error {
	if cfg.Getter == nil {
		return errors.ValidationError(fmt.Sprintf("resource %q has no getter", name), nil).
			WithDetail("resource", name)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	_, exists := c.regs[name]
	c.mu.Unlock()
	if closed {
		return errors.InternalError("coordinator is closed", nil)
	}
	if exists {
		c.logger.Debug("resource_replaced", slog.String("resource", name))
		c.unregister(name)
	}

	if err := c.store.Commit(c.namespace, resource.SetInitResource{ResourceName: name}); err != nil {
		return err
	}

	api := cfg.SearchAPI
	if api == nil {
		api = c.api
	}
	reg := &registration{name: name, cfg: cfg, api: api}

	c.mu.Lock()
	c.regs[name] = reg
	entry := c.ledger[api.Handle()]
	subscribe := entry == nil
	if subscribe {
		entry = &ledgerEntry{api: api, resources: make(map[string]struct{})}
		c.ledger[api.Handle()] = entry
	}
	entry.resources[name] = struct{}{}
	c.mu.Unlock()

	if subscribe {
		unsubscribe := api.Subscribe(
			func(r searchapi.Result) { c.onResult(api.Handle(), r) },
			func(err error) { c.onSearchError(api.Handle(), err) },
		)
		c.mu.Lock()
		entry.unsubscribe = unsubscribe
		c.mu.Unlock()
	}

	if err := c.reindex(ctx, reg); err != nil {
		c.logger.Warn("resource_register_failed",
			slog.String("resource", name),
			slog.String("error", err.Error()))
		c.unregister(name)
		return err
	}

	if !cfg.Watch.Disabled {
		reg.unwatch = c.store.Watch(
			func(st store.State) any { return cfg.Getter(st) },
			func(_, _ any) { c.schedule(reg) },
		)
	}

	c.logger.Debug("resource_registered",
		slog.String("resource", name),
		slog.String("namespace", c.namespace),
		slog.Bool("watch", !cfg.Watch.Disabled),
		slog.Duration("delay", cfg.Watch.Delay))
	return nil
}

// UnregisterResource stops watching and searching name and removes its
// state.
func (c *Coordinator) UnregisterResource(name string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if !c.unregister(name) {
		return errors.ResourceNotFound(name)
	}
	return nil
}

// unregister tears down a registration. Caller holds c.opMu.
func (c *Coordinator) unregister(name string) bool {
	c.mu.Lock()
	reg, ok := c.regs[name]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.regs, name)
	if reg.timer != nil {
		reg.timer.Stop()
		reg.timer = nil
	}
	var unsubscribe func()
	if entry := c.ledger[reg.api.Handle()]; entry != nil {
		delete(entry.resources, name)
		if len(entry.resources) == 0 {
			unsubscribe = entry.unsubscribe
			delete(c.ledger, reg.api.Handle())
		}
	}
	c.mu.Unlock()

	if reg.unwatch != nil {
		reg.unwatch()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	reg.api.StopSearch(name)

	if err := c.store.Commit(c.namespace, resource.DeleteResource{ResourceName: name}); err != nil {
		c.logger.Warn("resource_delete_failed",
			slog.String("resource", name),
			slog.String("error", err.Error()))
	}
	c.logger.Debug("resource_unregistered", slog.String("resource", name))
	return true
}

// Reindex rebuilds name's index from its current collection and repeats
// its current search.
func (c *Coordinator) Reindex(ctx context.Context, name string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	reg, ok := c.lookup(name)
	if !ok {
		return errors.ResourceNotFound(name)
	}
	return c.reindex(ctx, reg)
}

func (c *Coordinator) reindex(ctx context.Context, reg *registration) error {
	var coll engine.Collection
	var text string
	c.store.Read(func(st store.State) {
		coll = reg.cfg.Getter(st)
		if idx, ok := resource.ResourceIndex(st, c.namespace, reg.name); ok {
			text = idx.Text
		}
	})

	if err := c.indexResource(reg, coll); err != nil {
		return err
	}
	return c.search(ctx, reg.name, text)
}

func (c *Coordinator) indexResource(reg *registration, coll engine.Collection) error {
	return reg.api.IndexResource(searchapi.IndexRequest{
		ResourceName: reg.name,
		Spec:         reg.cfg.Index,
		Resources:    coll,
	})
}

// Search records text as name's query and starts searching for it. The
// result is written to the store when the search settles.
func (c *Coordinator) Search(ctx context.Context, name, text string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.search(ctx, name, text)
}

func (c *Coordinator) search(ctx context.Context, name, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := c.lookup(name); !ok {
		return errors.ResourceNotFound(name)
	}
	if err := c.store.Commit(c.namespace, resource.SetSearch{ResourceName: name, SearchString: text}); err != nil {
		return err
	}
	return c.performSearch(name, text)
}

// performSearch replaces any search in flight for name with one for text.
func (c *Coordinator) performSearch(name, text string) error {
	reg, ok := c.lookup(name)
	if !ok {
		return errors.ResourceNotFound(name)
	}

	c.mu.Lock()
	reg.latest = text
	c.mu.Unlock()

	reg.api.StopSearch(name)
	c.beginSearch()
	done := reg.api.StartSearch(c.ctx, name, text)
	start := time.Now()

	go func() {
		defer c.endSearch()
		out := <-done
		c.metrics.Record(telemetry.SearchEvent{
			Resource:    name,
			Query:       text,
			Status:      out.Status,
			ResultCount: len(out.IDs),
			Latency:     time.Since(start),
		})
		c.logger.Debug("search_settled",
			slog.String("resource", name),
			slog.String("text", text),
			slog.String("status", out.Status.String()),
			slog.Int("results", len(out.IDs)))
	}()
	return nil
}

func (c *Coordinator) beginSearch() {
	c.pendingMu.Lock()
	c.pending++
	c.pendingMu.Unlock()
}

func (c *Coordinator) endSearch() {
	c.pendingMu.Lock()
	c.pending--
	if c.pending == 0 {
		c.settled.Broadcast()
	}
	c.pendingMu.Unlock()
}

// onResult handles a result published by a subscribed API.
func (c *Coordinator) onResult(h searchapi.Handle, r searchapi.Result) {
	if !c.owns(h, r.ResourceName) {
		return
	}
	if !c.isLatest(r.ResourceName, r.Text) {
		c.logger.Debug("search_result_superseded",
			slog.String("resource", r.ResourceName),
			slog.String("text", r.Text))
		return
	}
	c.receiveResult(r.ResourceName, r.IDs, r.Text)
}

func (c *Coordinator) receiveResult(name string, ids []string, text string) {
	err := c.store.Commit(c.namespace, resource.SetSearchResult{
		ResourceName: name,
		Result:       ids,
		Text:         text,
	})
	if err != nil {
		c.logger.Warn("receive_result_failed",
			slog.String("resource", name),
			slog.String("error", err.Error()))
	}
}

// onSearchError settles a failed search.
func (c *Coordinator) onSearchError(h searchapi.Handle, err error) {
	var serr *searchapi.SearchError
	if !stderrors.As(err, &serr) || !c.owns(h, serr.ResourceName) {
		c.logger.Warn("search_error_unrouted", slog.String("error", err.Error()))
		return
	}
	if !c.isLatest(serr.ResourceName, serr.Text) {
		return
	}
	c.logger.Warn("search_error",
		append([]any{slog.String("resource", serr.ResourceName)}, errors.LogAttrs(serr.Err)...)...)

	if cerr := c.store.Commit(c.namespace, resource.SetSearchError{
		ResourceName: serr.ResourceName,
		Text:         serr.Text,
		Err:          serr,
	}); cerr != nil {
		c.logger.Warn("search_error_commit_failed",
			slog.String("resource", serr.ResourceName),
			slog.String("error", cerr.Error()))
	}
}

// owns reports whether name is registered here through the API h.
func (c *Coordinator) owns(h searchapi.Handle, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.ledger[h]
	if entry == nil {
		return false
	}
	_, ok := entry.resources[name]
	return ok
}

// isLatest reports whether text is the last search issued for name.
func (c *Coordinator) isLatest(name, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, ok := c.regs[name]
	return ok && reg.latest == text
}

// schedule debounces a collection change for reg.
func (c *Coordinator) schedule(reg *registration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.regs[reg.name] != reg {
		return
	}
	if reg.timer != nil {
		reg.timer.Stop()
	}
	reg.timer = time.AfterFunc(reg.cfg.Watch.Delay, func() { c.onCollectionChanged(reg) })
}

func (c *Coordinator) onCollectionChanged(reg *registration) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	current := c.regs[reg.name] == reg
	if current {
		reg.timer = nil
	}
	c.mu.Unlock()
	if !current {
		return
	}

	c.logger.Debug("resource_changed", slog.String("resource", reg.name))
	if err := c.reindex(c.ctx, reg); err != nil {
		c.logger.Warn("reindex_failed",
			slog.String("resource", reg.name),
			slog.String("error", err.Error()))
	}
}

func (c *Coordinator) lookup(name string) (*registration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, ok := c.regs[name]
	return reg, ok
}

// ResourceIndex returns name's search state.
func (c *Coordinator) ResourceIndex(name string) (st resource.IndexState, ok bool) {
	c.store.Read(func(s store.State) { st, ok = resource.ResourceIndex(s, c.namespace, name) })
	return st, ok
}

// IsSearching reports whether a search for name is in flight.
func (c *Coordinator) IsSearching(name string) (searching bool) {
	c.store.Read(func(s store.State) { searching = resource.IsSearching(s, c.namespace, name) })
	return searching
}

// Result returns name's last result ids.
func (c *Coordinator) Result(name string) (ids []string) {
	c.store.Read(func(s store.State) { ids = resource.Result(s, c.namespace, name) })
	return ids
}

// ResourceNames returns the names with state in the store.
func (c *Coordinator) ResourceNames() (names []string) {
	c.store.Read(func(s store.State) { names = resource.ResourceNames(s, c.namespace) })
	return names
}

// SubscriptionCount returns the number of search APIs subscribed to.
func (c *Coordinator) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ledger)
}

// Wait blocks until no search is in flight. Searches started while it
// waits, including debounced reindexes, extend the wait.
func (c *Coordinator) Wait() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for c.pending > 0 {
		c.settled.Wait()
	}
}

// Close unregisters every resource, waits for searches to settle and
// removes the resource module from the store.
func (c *Coordinator) Close() error {
	c.opMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.opMu.Unlock()
		return nil
	}
	c.closed = true
	names := make([]string, 0, len(c.regs))
	for name := range c.regs {
		names = append(names, name)
	}
	c.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		c.unregister(name)
	}
	c.cancel()
	c.opMu.Unlock()

	c.Wait()
	c.store.UnregisterModule(c.namespace)

	if c.ownsAPI {
		return c.api.Close()
	}
	return nil
}
