// Package metrics exposes prometheus counters for transcript analysis.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/chatpulse/internal/analysis"
)

// Analysis outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeNoMessages = "no_messages"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

var (
	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatpulse",
			Name:      "analyses_total",
			Help:      "Transcript analyses by outcome.",
		},
		[]string{"outcome"},
	)

	linesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatpulse",
			Name:      "lines_total",
			Help:      "Transcript lines seen, by what the parser made of them.",
		},
		[]string{"result"},
	)
)

// ObserveAnalysis records one finished analysis and its line counts.
func ObserveAnalysis(outcome string, stats analysis.Stats) {
	analysesTotal.WithLabelValues(outcome).Inc()
	linesTotal.WithLabelValues("parsed").Add(float64(stats.Records))
	linesTotal.WithLabelValues("undated").Add(float64(stats.Undated))
	linesTotal.WithLabelValues("skipped").Add(float64(stats.Skipped()))
}

// ObserveRejected records an upload refused before any line was read.
func ObserveRejected() {
	analysesTotal.WithLabelValues(OutcomeRejected).Inc()
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
