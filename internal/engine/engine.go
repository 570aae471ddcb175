package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	textField        = "text"
	splitTokenizer   = "split"
	resourceAnalyzer = "resource_text"

	// DefaultTokenizePattern splits on runs of whitespace.
	DefaultTokenizePattern = `\s+`

	// DefaultCacheSize is the number of query results kept per engine.
	DefaultCacheSize = 128
)

// IndexMode selects how query tokens are matched against indexed tokens.
type IndexMode int

const (
	// AllSubstrings matches a query token anywhere inside an indexed token.
	AllSubstrings IndexMode = iota
	// Prefixes matches a query token at the start of an indexed token.
	Prefixes
	// ExactWords matches whole indexed tokens only.
	ExactWords
)

// String returns the configuration name of the mode.
func (m IndexMode) String() string {
	switch m {
	case AllSubstrings:
		return "all_substrings"
	case Prefixes:
		return "prefixes"
	case ExactWords:
		return "exact_words"
	default:
		return fmt.Sprintf("IndexMode(%d)", int(m))
	}
}

// ParseIndexMode converts a configuration name into an IndexMode.
func ParseIndexMode(s string) (IndexMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all_substrings":
		return AllSubstrings, nil
	case "prefixes":
		return Prefixes, nil
	case "exact_words":
		return ExactWords, nil
	default:
		return AllSubstrings, fmt.Errorf("unknown index mode %q", s)
	}
}

// Options configures an Engine.
type Options struct {
	IndexMode       IndexMode
	TokenizePattern string
	CaseSensitive   bool
	// CacheSize <= 0 disables the result cache.
	CacheSize int
}

// DefaultOptions returns substring matching on whitespace-separated,
// case-folded tokens.
func DefaultOptions() Options {
	return Options{
		IndexMode:       AllSubstrings,
		TokenizePattern: DefaultTokenizePattern,
		CacheSize:       DefaultCacheSize,
	}
}

// bleveDocument is what gets stored per id: every text indexed for it.
type bleveDocument struct {
	Text []string `json:"text"`
}

// Engine is an in-memory full text index for one resource.
// It is safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	opts      Options
	separator *regexp.Regexp
	index     bleve.Index
	cache     *lru.Cache[string, []string]

	texts  map[string][]string
	order  map[string]int
	dirty  map[string]struct{}
	closed bool
}

// New creates an empty engine.
func New(opts Options) (*Engine, error) {
	if opts.TokenizePattern == "" {
		opts.TokenizePattern = DefaultTokenizePattern
	}
	separator, err := regexp.Compile(opts.TokenizePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid tokenize pattern %q: %w", opts.TokenizePattern, err)
	}

	indexMapping, err := createIndexMapping(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}
	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	e := &Engine{
		opts:      opts,
		separator: separator,
		index:     idx,
		texts:     make(map[string][]string),
		order:     make(map[string]int),
		dirty:     make(map[string]struct{}),
	}
	if opts.CacheSize > 0 {
		e.cache, _ = lru.New[string, []string](opts.CacheSize)
	}
	return e, nil
}

func createIndexMapping(opts Options) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.StoreDynamic = false
	indexMapping.DocValuesDynamic = false

	err := indexMapping.AddCustomTokenizer(splitTokenizer, map[string]interface{}{
		"type":    SplitTokenizerName,
		"pattern": opts.TokenizePattern,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add tokenizer: %w", err)
	}

	filters := []string{}
	if !opts.CaseSensitive {
		filters = append(filters, lowercase.Name)
	}
	err = indexMapping.AddCustomAnalyzer(resourceAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     splitTokenizer,
		"token_filters": filters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = resourceAnalyzer

	return indexMapping, nil
}

// Options returns the options the engine was built with.
func (e *Engine) Options() Options { return e.opts }

// IndexDocument adds text to the document with the given id. Calling it
// again for the same id adds more text; a query token may match any of it.
func (e *Engine) IndexDocument(id, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if _, ok := e.order[id]; !ok {
		e.order[id] = len(e.order)
	}
	e.texts[id] = append(e.texts[id], text)
	e.dirty[id] = struct{}{}
	if e.cache != nil {
		e.cache.Purge()
	}
}

// Len returns the number of distinct document ids.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

// Search returns the ids of documents matching every token of text, in
// insertion order. A query with no tokens returns every id.
func (e *Engine) Search(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("engine is closed")
	}

	if !e.opts.CaseSensitive {
		text = strings.ToLower(text)
	}
	tokens := splitTokens(e.separator, text)
	if len(tokens) == 0 {
		return e.allIDs(), nil
	}

	key := strings.Join(tokens, "\x00")
	if e.cache != nil {
		if ids, ok := e.cache.Get(key); ok {
			return cloneIDs(ids), nil
		}
	}

	if err := e.flush(); err != nil {
		return nil, err
	}

	conjuncts := make([]query.Query, 0, len(tokens))
	for _, tok := range tokens {
		conjuncts = append(conjuncts, e.tokenQuery(tok))
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(conjuncts...))
	req.Size = len(e.order)
	req.Fields = []string{}

	result, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return e.order[ids[i]] < e.order[ids[j]] })

	if e.cache != nil {
		e.cache.Add(key, ids)
	}
	return cloneIDs(ids), nil
}

// cloneIDs copies ids so callers never share the cached slice. No match
// yields an empty, non-nil slice.
func cloneIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Close releases the index. Searches after Close fail.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.cache != nil {
		e.cache.Purge()
	}
	return e.index.Close()
}

func (e *Engine) tokenQuery(tok string) query.Query {
	var q interface {
		query.Query
		SetField(string)
	}
	switch e.opts.IndexMode {
	case Prefixes:
		q = bleve.NewPrefixQuery(tok)
	case ExactWords:
		q = bleve.NewTermQuery(tok)
	default:
		q = bleve.NewRegexpQuery(".*" + regexp.QuoteMeta(tok) + ".*")
	}
	q.SetField(textField)
	return q
}

// flush writes pending texts to the index. Caller holds e.mu.
func (e *Engine) flush() error {
	if len(e.dirty) == 0 {
		return nil
	}

	batch := e.index.NewBatch()
	for id := range e.dirty {
		if err := batch.Index(id, bleveDocument{Text: e.texts[id]}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", id, err)
		}
	}
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	e.dirty = make(map[string]struct{})
	return nil
}

// allIDs returns every id in insertion order. Caller holds e.mu.
func (e *Engine) allIDs() []string {
	ids := make([]string, len(e.order))
	for id, pos := range e.order {
		ids[pos] = id
	}
	return ids
}
