// Package metrics exposes Prometheus instruments for the extender.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ExtendRequests counts extend requests by mode and outcome kind.
	ExtendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loopstretch_extend_requests_total",
			Help: "Extend requests by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	// ExtendDuration observes wall time of successful extend requests.
	ExtendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loopstretch_extend_duration_seconds",
			Help:    "Time spent producing an extended recording.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	// GenerationPolls counts status polls against the generation service.
	GenerationPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loopstretch_generation_polls_total",
			Help: "Status polls sent to the generation service by observed status.",
		},
		[]string{"status"},
	)

	// StoredResults tracks how many results are held for download/preview.
	StoredResults = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loopstretch_stored_results",
		Help: "Results currently held in the in-memory store.",
	})

	// PreviewPeers tracks connected WebRTC preview peers.
	PreviewPeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "loopstretch_preview_peers",
		Help: "Connected WebRTC preview peers.",
	})
)

func init() {
	prometheus.MustRegister(ExtendRequests, ExtendDuration, GenerationPolls, StoredResults, PreviewPeers)
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
