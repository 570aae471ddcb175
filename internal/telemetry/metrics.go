// Package telemetry collects in-memory search metrics per coordinator and
// exposes them as Prometheus series. Nothing is persisted.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/resourcesearch/internal/searchapi"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP1    LatencyBucket = "p1"    // <1ms
	BucketP10   LatencyBucket = "p10"   // 1-10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP250  LatencyBucket = "p250"  // 50-250ms
	BucketP1000 LatencyBucket = "p1000" // >=250ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < time.Millisecond:
		return BucketP1
	case d < 10*time.Millisecond:
		return BucketP10
	case d < 50*time.Millisecond:
		return BucketP50
	case d < 250*time.Millisecond:
		return BucketP250
	default:
		return BucketP1000
	}
}

// SearchEvent is one settled search.
type SearchEvent struct {
	Resource    string
	Query       string
	Status      searchapi.Status
	ResultCount int
	Latency     time.Duration
}

// IsZeroResult reports whether a successful search matched nothing.
func (e SearchEvent) IsZeroResult() bool {
	return e.Status == searchapi.Succeeded && e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// ExtractTerms splits a query into lowercased terms of at least 3 bytes.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable copy of the collected metrics.
type Snapshot struct {
	TotalSearches       int64                   `json:"total_searches"`
	StatusCounts        map[string]int64        `json:"status_counts"`
	ResourceCounts      map[string]int64        `json:"resource_counts"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of successful searches that matched nothing.
func (s Snapshot) ZeroResultPercentage() float64 {
	ok := s.StatusCounts[searchapi.Succeeded.String()]
	if ok == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(ok) * 100
}

// Config configures a Metrics collector.
type Config struct {
	TopTermsCapacity      int // Max terms to track (default: 100)
	ZeroResultsCapacity   int // Max zero-result queries kept (default: 50)
	RecentQueriesCapacity int // Queries remembered for repeat detection (default: 500)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   50,
		RecentQueriesCapacity: 500,
	}
}

// Metrics collects search telemetry. Safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	total           int64
	statuses        map[string]int64
	resources       map[string]int64
	latencies       map[LatencyBucket]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	zeroResultCount int64
	recentQueries   *lru.Cache[string, struct{}]
	exactRepeats    int64
	since           time.Time

	prom *collectors
}

// New creates a collector. Zero config fields take their defaults.
func New(cfg Config) *Metrics {
	defaults := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = defaults.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = defaults.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = defaults.RecentQueriesCapacity
	}

	// lru.New only fails for a non-positive size.
	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	return &Metrics{
		statuses:      make(map[string]int64),
		resources:     make(map[string]int64),
		latencies:     make(map[LatencyBucket]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		recentQueries: recent,
		since:         time.Now(),
		prom:          newCollectors(),
	}
}

// Record captures one settled search.
func (m *Metrics) Record(ev SearchEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.statuses[ev.Status.String()]++
	m.resources[ev.Resource]++
	m.prom.record(ev, ev.Status == searchapi.Succeeded)

	if ev.Status != searchapi.Succeeded {
		return
	}

	m.latencies[LatencyToBucket(ev.Latency)]++
	for _, term := range ExtractTerms(ev.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}
	if ev.IsZeroResult() {
		m.zeroResults.Add(ev.Query)
		m.zeroResultCount++
	}

	key := queryKey(ev.Resource, ev.Query)
	if _, seen := m.recentQueries.Get(key); seen {
		m.exactRepeats++
	}
	m.recentQueries.Add(key, struct{}{})
}

// queryKey hashes a normalized query so long queries do not bloat the cache.
func queryKey(resource, query string) string {
	normalized := resource + "\x00" + strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

// Snapshot returns the current metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var topTerms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.SliceStable(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})

	return Snapshot{
		TotalSearches:       m.total,
		StatusCounts:        copyMap(m.statuses),
		ResourceCounts:      copyMap(m.resources),
		LatencyDistribution: copyMap(m.latencies),
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		ZeroResultCount:     m.zeroResultCount,
		ExactRepeatCount:    m.exactRepeats,
		Since:               m.since,
	}
}

func copyMap[K comparable](src map[K]int64) map[K]int64 {
	dst := make(map[K]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
