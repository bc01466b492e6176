package loadtest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var _ Sink = (*Metrics)(nil)

// Metrics exports load-test counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseBytes   *prometheus.CounterVec
	activeUsers     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecomprobe_load_requests_total",
				Help: "Requests issued by virtual users",
			},
			[]string{"task", "method", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ecomprobe_load_request_duration_seconds",
				Help:    "Request latency in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"task", "method"},
		),
		responseBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecomprobe_load_response_bytes_total",
				Help: "Response body bytes received",
			},
			[]string{"task"},
		),
		activeUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecomprobe_load_active_users",
			Help: "Virtual users currently running",
		}),
	}
	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.responseBytes, m.activeUsers)
	return m
}

func (m *Metrics) Observe(s Sample) {
	outcome := "success"
	if s.Failed() {
		outcome = "failure"
	}
	m.requestsTotal.WithLabelValues(s.Task, s.Method, outcome).Inc()
	m.requestDuration.WithLabelValues(s.Task, s.Method).Observe(s.Duration.Seconds())
	m.responseBytes.WithLabelValues(s.Task).Add(float64(s.Bytes))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving load-test metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
