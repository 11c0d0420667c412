// Package metrics mirrors live run samples into a Prometheus registry so a
// long run can be scraped while it is still going.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Exporter implements stats.Observer. It owns a private registry so tests
// and repeated runs never collide on the default one.
type Exporter struct {
	registry *prometheus.Registry

	trendDuration *prometheus.HistogramVec
	checksTotal   *prometheus.CounterVec
	iterations    prometheus.Counter
}

func NewExporter(scenario string) *Exporter {
	constLabels := prometheus.Labels{"scenario": scenario}

	e := &Exporter{
		registry: prometheus.NewRegistry(),
		trendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "hotpath_http_req_duration_seconds",
				Help:        "Latency of hot path calls by trend name",
				Buckets:     prometheus.ExponentialBuckets(0.005, 2, 12),
				ConstLabels: constLabels,
			},
			[]string{"name"},
		),
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "hotpath_checks_total",
				Help:        "Check outcomes by check name",
				ConstLabels: constLabels,
			},
			[]string{"check", "result"},
		),
		iterations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "hotpath_iterations_total",
				Help:        "Completed scenario iterations",
				ConstLabels: constLabels,
			},
		),
	}

	e.registry.MustRegister(e.trendDuration, e.checksTotal, e.iterations)
	return e
}

func (e *Exporter) ObserveTrend(name string, d time.Duration) {
	e.trendDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (e *Exporter) ObserveCheck(name string, ok bool) {
	result := "fail"
	if ok {
		result = "pass"
	}
	e.checksTotal.WithLabelValues(name, result).Inc()
}

func (e *Exporter) ObserveIteration() {
	e.iterations.Inc()
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (e *Exporter) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
