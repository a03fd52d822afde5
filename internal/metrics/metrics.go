package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_provider_queries_total",
			Help: "Logical keyword queries charged against each provider's quota",
		},
		[]string{"provider"},
	)

	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_provider_requests_total",
			Help: "Outbound provider HTTP attempts by response status",
		},
		[]string{"provider", "status"},
	)

	ProviderRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_provider_retries_total",
			Help: "Backoff retries taken after transient provider failures",
		},
		[]string{"provider"},
	)

	ProviderDomainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_provider_domains_total",
			Help: "Valid domains contributed per provider, before cross-provider dedup",
		},
		[]string{"provider"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_request_duration_seconds",
			Help:    "Duration of outbound provider requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 12},
		},
		[]string{"provider"},
	)
)

// RecordRequest counts one outbound attempt. A transport error is recorded
// with status "error".
func RecordRequest(provider string, status int, err error, d time.Duration) {
	label := strconv.Itoa(status)
	if err != nil {
		label = "error"
	}
	ProviderRequestsTotal.WithLabelValues(provider, label).Inc()
	RequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordQuery counts one logical query against provider.
func RecordQuery(provider string) {
	ProviderQueriesTotal.WithLabelValues(provider).Inc()
}

// RecordRetry counts one backoff retry.
func RecordRetry(provider string) {
	ProviderRetriesTotal.WithLabelValues(provider).Inc()
}

// RecordDomains adds n contributed domains for provider.
func RecordDomains(provider string, n int) {
	if n > 0 {
		ProviderDomainsTotal.WithLabelValues(provider).Add(float64(n))
	}
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "port", port, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
