package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PostsScraped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupwatch_posts_scraped_total",
			Help: "Candidate items produced by extraction, per source.",
		},
		[]string{"source"},
	)
	PostsNew = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupwatch_posts_new_total",
			Help: "Posts that survived deduplication and were inserted.",
		},
	)
	PostsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupwatch_posts_classified_total",
			Help: "Classification cascade outcomes, labeled by result.",
		},
		[]string{"result"},
	)
	NotificationsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupwatch_notifications_sent_total",
			Help: "Posts delivered through the dispatch gate.",
		},
	)
	SourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupwatch_source_errors_total",
			Help: "Per-source failures, labeled by failure kind.",
		},
		[]string{"kind"},
	)
	OpenSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupwatch_open_sessions",
			Help: "Extraction sessions currently open.",
		},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groupwatch_cycle_duration_seconds",
			Help:    "Wall time of one full scrape cycle.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(PostsScraped)
	prometheus.MustRegister(PostsNew)
	prometheus.MustRegister(PostsClassified)
	prometheus.MustRegister(NotificationsSent)
	prometheus.MustRegister(SourceErrors)
	prometheus.MustRegister(OpenSessions)
	prometheus.MustRegister(CycleDuration)
}

// Expose serves the Prometheus scrape endpoint until the process exits.
func Expose(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if logger != nil {
		logger.Info("exposing metrics", "addr", addr)
	}
	if err := http.ListenAndServe(addr, mux); err != nil && logger != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
