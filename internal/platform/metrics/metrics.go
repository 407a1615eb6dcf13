// Package metrics exposes ingest run counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"market_analyzer/internal/feature/bars/domain"
)

const namespace = "market_analyzer"

// Recorder holds the ingest metrics on a private registry.
type Recorder struct {
	registry    *prometheus.Registry
	fetched     *prometheus.CounterVec
	stored      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewRecorder creates and registers every metric.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "rows_fetched_total",
			Help: "Rows received from the market data provider.",
		}, []string{"ticker"}),
		stored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "rows_stored_total",
			Help: "Canonical bars written to the series store.",
		}, []string{"ticker"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "rows_dropped_total",
			Help: "Rows dropped during normalization.",
		}, []string{"ticker", "reason"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "runs_total",
			Help: "Ingest runs by outcome.",
		}, []string{"ticker", "outcome"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last successful ingest run.",
		}, []string{"ticker"}),
	}
	r.registry.MustRegister(r.fetched, r.stored, r.dropped, r.runs, r.lastSuccess)
	return r
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveIngest records the outcome of one ingest run.
func (r *Recorder) ObserveIngest(ticker string, fetched, stored, nullClose, rowErrors int, err error) {
	r.fetched.WithLabelValues(ticker).Add(float64(fetched))
	r.stored.WithLabelValues(ticker).Add(float64(stored))
	r.dropped.WithLabelValues(ticker, "null_close").Add(float64(nullClose))
	r.dropped.WithLabelValues(ticker, "parse_error").Add(float64(rowErrors))

	outcome := Outcome(stored, err)
	r.runs.WithLabelValues(ticker, outcome).Inc()
	if err == nil {
		r.lastSuccess.WithLabelValues(ticker).Set(float64(time.Now().Unix()))
	}
}

// Outcome classifies a run for the runs_total counter.
func Outcome(stored int, err error) string {
	var stageErr *domain.StageError
	switch {
	case err == nil && stored == 0:
		return "empty"
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrConnection):
		return "connection_error"
	case errors.As(err, &stageErr):
		return stageErr.Stage + "_error"
	default:
		return "error"
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Push sends the registry to a Pushgateway. Batch runs exit before a scrape could happen.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
