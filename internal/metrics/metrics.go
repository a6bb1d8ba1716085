package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
)

// Metrics holds the pipeline's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetchResults   *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	recordsWritten prometheus.Counter
	loadRows       *prometheus.CounterVec
	loadDuration   *prometheus.HistogramVec
}

// New creates and registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		fetchResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pokemon_collector_results_total",
				Help: "Per-id collector outcomes",
			},
			[]string{"outcome"}, // ok, fetch_failed, malformed, duplicate
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pokemon_fetch_duration_seconds",
				Help:    "Duration of single PokeAPI requests",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
		),
		recordsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pokemon_csv_records_written_total",
				Help: "Records written to CSV files",
			},
		),
		loadRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pokemon_loader_rows_total",
				Help: "Loader row outcomes",
			},
			[]string{"outcome"}, // inserted, skipped, failed
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pokemon_loader_stage_duration_seconds",
				Help:    "Duration of loader stages",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
	}

	reg.MustRegister(m.fetchResults, m.fetchDuration, m.recordsWritten, m.loadRows, m.loadDuration)
	return m
}

// Registry exposes the registry (for tests and custom handlers)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CollectorResult(outcome string) {
	if m == nil {
		return
	}
	m.fetchResults.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordsWritten(n int) {
	if m == nil {
		return
	}
	m.recordsWritten.Add(float64(n))
}

func (m *Metrics) LoaderRow(outcome string) {
	if m == nil {
		return
	}
	m.loadRows.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.loadDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, log *logging.Logger) {
	log = log.Component("Metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Infof("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server stopped: %v", err)
		}
	}()
}
