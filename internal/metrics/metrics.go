// Package metrics provides Prometheus instrumentation for the game engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts trades executed, partitioned by kind (buy/sell).
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinquest_trades_total",
		Help: "Total number of trades executed",
	}, []string{"kind"})

	// TradeLatency tracks trade execution latency, including the oracle call.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coinquest_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// TradesRejectedTotal counts trades rejected before any state change.
	TradesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinquest_trades_rejected_total",
		Help: "Trades rejected by validation",
	}, []string{"reason"})

	// GamesStartedTotal counts new game sessions, partitioned by mode.
	GamesStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinquest_games_started_total",
		Help: "Total game sessions started",
	}, []string{"mode", "difficulty"})

	// GamesWonTotal counts sessions that reached their win condition.
	GamesWonTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinquest_games_won_total",
		Help: "Total game sessions won",
	}, []string{"mode"})

	// AchievementsUnlockedTotal counts achievement unlocks by type.
	AchievementsUnlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinquest_achievements_unlocked_total",
		Help: "Total achievements unlocked",
	}, []string{"type"})

	// OracleRequestsTotal counts price oracle lookups by outcome.
	OracleRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinquest_oracle_requests_total",
		Help: "Price oracle lookups by outcome",
	}, []string{"outcome"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinquest_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinquest_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coinquest_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
