// Package observability provides Prometheus metrics functionality for monitoring ParkPulse.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tphakala/parkpulse/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Ingest    *metrics.IngestMetrics
	Upstream  *metrics.UpstreamMetrics
	Crowd     *metrics.CrowdMetrics
	Cache     *metrics.CacheMetrics
	Scheduler *metrics.SchedulerMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors
// on a fresh registry together with the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	ingestMetrics, err := metrics.NewIngestMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ingest metrics: %w", err)
	}

	upstreamMetrics, err := metrics.NewUpstreamMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Upstream metrics: %w", err)
	}

	crowdMetrics, err := metrics.NewCrowdMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Crowd metrics: %w", err)
	}

	cacheMetrics, err := metrics.NewCacheMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cache metrics: %w", err)
	}

	schedulerMetrics, err := metrics.NewSchedulerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Scheduler metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Ingest:    ingestMetrics,
		Upstream:  upstreamMetrics,
		Crowd:     crowdMetrics,
		Cache:     cacheMetrics,
		Scheduler: schedulerMetrics,
	}, nil
}

// Registry returns the registry all collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry in Prometheus format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
