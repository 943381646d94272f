// Package metrics exposes Prometheus instrumentation for the impulse scanner
// plus a small HTTP server serving /metrics and /healthz.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	BarsTotal      prometheus.Counter
	BarsDropped    prometheus.Counter
	SignalsTotal   *prometheus.CounterVec // labels: kind
	BarProcessDur  prometheus.Histogram
	ActiveSetups   prometheus.Gauge
	PivotsTracked  *prometheus.GaugeVec // labels: instrument
	BarFailures    prometheus.Counter
	FeedReconnects prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		BarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavescan_bars_total",
			Help: "Total finalized bars processed",
		}),
		BarsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavescan_bars_dropped_total",
			Help: "Bars dropped due to full intake buffer",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavescan_signals_total",
			Help: "Signals emitted, by kind",
		}, []string{"kind"}),
		BarProcessDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wavescan_bar_process_seconds",
			Help:    "Per-bar processing duration (zigzag step + candidate search)",
			Buckets: prometheus.ExponentialBuckets(0.000010, 4, 10),
		}),
		ActiveSetups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavescan_active_setups",
			Help: "Currently armed setups across all instruments",
		}),
		PivotsTracked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wavescan_pivots_tracked",
			Help: "Confirmed zigzag pivots held per instrument",
		}, []string{"instrument"}),
		BarFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavescan_bar_failures_total",
			Help: "Bars whose processing failed and was isolated at the bar boundary",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavescan_feed_reconnects_total",
			Help: "WebSocket feed reconnection attempts",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.BarsTotal, m.BarsDropped, m.SignalsTotal, m.BarProcessDur,
		m.ActiveSetups, m.PivotsTracked, m.BarFailures, m.FeedReconnects,
	)
	return m
}

// HealthCheck reports one dependency's health for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// StartServer serves /metrics and /healthz on addr until ctx is cancelled.
// Runs in a background goroutine; errors are logged, not fatal.
func (m *Metrics) StartServer(ctx context.Context, addr string, checks []HealthCheck) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		cctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		out := make(map[string]string, len(checks))
		for _, hc := range checks {
			if err := hc.Check(cctx); err != nil {
				out[hc.Name] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				out[hc.Name] = "ok"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(out)
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()
	go func() {
		log.Printf("[metrics] serving /metrics and /healthz on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}
