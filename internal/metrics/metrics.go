// Package metrics exposes Prometheus instrumentation for transfer sessions.
//
// A nil *Collector is valid and records nothing, so callers that do not
// care about metrics can leave it unset.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	OutcomeSuccess    = "success"
	OutcomeIncomplete = "incomplete"
	OutcomeFailed     = "failed"
)

type Collector struct {
	registry       *prometheus.Registry
	bytes          *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	activeSessions *prometheus.GaugeVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flick_bytes_transferred_total",
			Help: "Total number of file bytes moved over data connections",
		}, []string{"role"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flick_sessions_total",
			Help: "Total number of finished transfer sessions by outcome",
		}, []string{"role", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flick_session_duration_seconds",
			Help:    "Histogram of transfer session durations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"role"}),
		activeSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flick_active_sessions",
			Help: "Current number of running transfer sessions",
		}, []string{"role"}),
	}
	c.registry.MustRegister(c.bytes, c.sessions, c.duration, c.activeSessions)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) SessionStarted(role string) {
	if c == nil {
		return
	}
	c.activeSessions.WithLabelValues(role).Inc()
}

// SessionFinished records the outcome of a session that started at start
// and moved n bytes.
func (c *Collector) SessionFinished(role string, outcome string, n int64, start time.Time) {
	if c == nil {
		return
	}
	c.activeSessions.WithLabelValues(role).Dec()
	c.sessions.WithLabelValues(role, outcome).Inc()
	c.duration.WithLabelValues(role).Observe(time.Since(start).Seconds())
	if n > 0 {
		c.bytes.WithLabelValues(role).Add(float64(n))
	}
}

// Serve exposes /metrics on addr until ctx is done. A bind failure is
// returned before anything waits on ctx.
func (c *Collector) Serve(ctx context.Context, addr string, logger *logrus.Logger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.WithField("addr", listener.Addr().String()).Info("metrics endpoint listening on /metrics")
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
