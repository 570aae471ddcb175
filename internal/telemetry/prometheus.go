package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "resourcesearch"

// collectors mirrors Metrics as Prometheus series. Each Metrics owns its
// registry so several coordinators can run in one process.
type collectors struct {
	registry *prometheus.Registry

	// searchesTotal counts settled searches.
	// Labels: resource, status (succeeded, cancelled, failed)
	searchesTotal *prometheus.CounterVec

	// searchDuration measures successful search latency.
	// Labels: resource
	searchDuration *prometheus.HistogramVec

	// searchResults tracks matched ids per successful search.
	// Labels: resource
	searchResults *prometheus.HistogramVec
}

func newCollectors() *collectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &collectors{
		registry: reg,
		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "searches_total",
			Help:      "Settled searches by resource and status",
		}, []string{"resource", "status"}),
		searchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "search_duration_seconds",
			Help:      "Successful search latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
		}, []string{"resource"}),
		searchResults: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "search_results",
			Help:      "Matched documents per successful search",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 1000},
		}, []string{"resource"}),
	}
}

func (c *collectors) record(ev SearchEvent, succeeded bool) {
	c.searchesTotal.WithLabelValues(ev.Resource, ev.Status.String()).Inc()
	if !succeeded {
		return
	}
	c.searchDuration.WithLabelValues(ev.Resource).Observe(ev.Latency.Seconds())
	c.searchResults.WithLabelValues(ev.Resource).Observe(float64(ev.ResultCount))
}

// Registry returns the Prometheus registry holding the search series.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.prom.registry
}

// Handler serves the search series in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.prom.registry, promhttp.HandlerOpts{})
}
