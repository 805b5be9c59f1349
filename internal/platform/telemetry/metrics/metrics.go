// Package metrics exposes operational Prometheus collectors for chirper
// services. Collectors cover the write path (commands, chirps), the
// read-side projector, and the timeline enrichment stage.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chirper_entity_commands_total",
		Help: "Total entity commands processed, by command name and result",
	}, []string{"command", "result"})

	ChirpsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chirper_chirps_published_total",
		Help: "Total chirps accepted by the timeline write path",
	})

	ProjectorApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chirper_projector_events_applied_total",
		Help: "Total events applied by the read-side projector",
	})
	ProjectorErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chirper_projector_errors_total",
		Help: "Total projector apply failures (events are redelivered)",
	})

	EnrichmentDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chirper_enrichment_duration_seconds",
		Help:    "Like-count enrichment lookup duration seconds",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(CommandsTotal, ChirpsPublished, ProjectorApplied, ProjectorErrors, EnrichmentDuration)
}

// ObserveEnrichment records one enrichment lookup duration.
func ObserveEnrichment(start time.Time) {
	EnrichmentDuration.Observe(time.Since(start).Seconds())
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
// An empty addr disables the listener.
func StartServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}
