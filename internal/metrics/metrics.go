package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	draws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tambola",
			Subsystem: "game",
			Name:      "draws_total",
			Help:      "Total number of numbers drawn.",
		},
		[]string{"mode"},
	)

	drawFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tambola",
			Subsystem: "game",
			Name:      "draw_failures_total",
			Help:      "Total number of aborted draws.",
		},
		[]string{"code"},
	)

	drawDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tambola",
			Subsystem: "game",
			Name:      "draw_duration_seconds",
			Help:      "Duration of a draw including evaluation and persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	winners = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tambola",
			Subsystem: "game",
			Name:      "winners_total",
			Help:      "Total number of prize slots claimed.",
		},
		[]string{"rule"},
	)

	gamesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tambola",
			Subsystem: "game",
			Name:      "closed_total",
			Help:      "Total number of games closed.",
		},
		[]string{"reason"},
	)

	autoPlayGames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tambola",
			Subsystem: "game",
			Name:      "autoplay_active",
			Help:      "Number of games with an active auto-play timer.",
		},
	)

	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tambola",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Current number of websocket connections.",
		},
	)

	wsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tambola",
			Subsystem: "ws",
			Name:      "dropped_clients_total",
			Help:      "Clients disconnected because their send buffer was full.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tambola",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tambola",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		draws,
		drawFailures,
		drawDuration,
		winners,
		gamesClosed,
		autoPlayGames,
		wsConnections,
		wsDropped,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordDraw records a successful draw.
func RecordDraw(manual bool, d time.Duration) {
	mode := "auto"
	if manual {
		mode = "manual"
	}
	draws.WithLabelValues(mode).Inc()
	drawDuration.Observe(d.Seconds())
}

// RecordDrawFailure records an aborted draw by error code.
func RecordDrawFailure(code string) {
	drawFailures.WithLabelValues(code).Inc()
}

// RecordWinner records a claimed prize slot.
func RecordWinner(rule string) {
	winners.WithLabelValues(rule).Inc()
}

// RecordGameClosed records a terminal transition.
func RecordGameClosed(reason string) {
	gamesClosed.WithLabelValues(reason).Inc()
}

// SetAutoPlayGames sets the number of auto-playing games.
func SetAutoPlayGames(n int) {
	autoPlayGames.Set(float64(n))
}

// ConnectionOpened increments the websocket connection gauge.
func ConnectionOpened() {
	wsConnections.Inc()
}

// ConnectionClosed decrements the websocket connection gauge.
func ConnectionClosed() {
	wsConnections.Dec()
}

// RecordDroppedClient records a slow consumer disconnect.
func RecordDroppedClient() {
	wsDropped.Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
