package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/resourcesearch/internal/searchapi"
)

func TestMetrics_PrometheusCounters(t *testing.T) {
	// Given: a collector with mixed outcomes
	m := New(DefaultConfig())
	m.Record(SearchEvent{Resource: "documents", Query: "one", Status: searchapi.Succeeded, ResultCount: 1, Latency: time.Millisecond})
	m.Record(SearchEvent{Resource: "documents", Query: "two", Status: searchapi.Succeeded, ResultCount: 0})
	m.Record(SearchEvent{Resource: "documents", Query: "three", Status: searchapi.Cancelled})

	// Then: the counters are labelled by resource and status
	assert.Equal(t, 2.0, testutil.ToFloat64(m.prom.searchesTotal.WithLabelValues("documents", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prom.searchesTotal.WithLabelValues("documents", "cancelled")))

	// And: only successful searches are observed by the histograms
	count, err := testutil.GatherAndCount(m.Registry(), "resourcesearch_search_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a := New(DefaultConfig())
	b := New(DefaultConfig())
	a.Record(SearchEvent{Resource: "documents", Status: searchapi.Failed})

	assert.NotSame(t, a.Registry(), b.Registry())
	assert.Equal(t, 0.0, testutil.ToFloat64(b.prom.searchesTotal.WithLabelValues("documents", "failed")))
}

func TestMetrics_Handler(t *testing.T) {
	// Given: a collector that has recorded a search
	m := New(DefaultConfig())
	m.Record(SearchEvent{Resource: "notes", Query: "milk", Status: searchapi.Succeeded, ResultCount: 3})

	// When: scraping the handler
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// Then: the exposition includes the labelled series
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `resourcesearch_searches_total{resource="notes",status="succeeded"} 1`)
	assert.Contains(t, string(body), `resourcesearch_search_results_count{resource="notes"} 1`)
}
