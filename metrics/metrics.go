// Package metrics holds the Prometheus collectors exposed on the admin
// router's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ModeGraph      = "graph"
	ModeCandidates = "candidates"
	ModePoint      = "point"
)

var (
	queryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saferoute_queries_total",
		Help: "Total route queries by mode and outcome",
	}, []string{"mode", "outcome"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saferoute_query_duration_seconds",
		Help:    "Route query duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"mode"})

	edgesCosted = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "saferoute_edges_costed",
		Help:    "Number of edges costed per graph query",
		Buckets: prometheus.ExponentialBuckets(16, 4, 8),
	})

	modelFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saferoute_model_fallbacks_total",
		Help: "Predictions that fell back to the heuristic risk",
	})

	reloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saferoute_snapshot_reloads_total",
		Help: "Snapshot reloads by outcome",
	}, []string{"outcome"})

	riskPoints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "saferoute_risk_points",
		Help: "Distinct risk points in the active snapshot",
	})

	modelLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "saferoute_model_loaded",
		Help: "1 when the active snapshot carries a risk model",
	})

	publishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saferoute_event_publish_errors_total",
		Help: "Route events that could not be published, by transport",
	}, []string{"transport"})
)

func ObserveQuery(mode, outcome string, d time.Duration) {
	queryTotal.WithLabelValues(mode, outcome).Inc()
	queryDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func ObserveEdgesCosted(n int) {
	edgesCosted.Observe(float64(n))
}

func AddModelFallbacks(n int64) {
	if n > 0 {
		modelFallbacks.Add(float64(n))
	}
}

func ObserveReload(err error) {
	if err != nil {
		reloadTotal.WithLabelValues("error").Inc()
		return
	}
	reloadTotal.WithLabelValues("ok").Inc()
}

// ObserveSnapshot records the shape of the snapshot queries now run against.
func ObserveSnapshot(points int, withModel bool) {
	riskPoints.Set(float64(points))
	if withModel {
		modelLoaded.Set(1)
	} else {
		modelLoaded.Set(0)
	}
}

func IncPublishError(transport string) {
	publishErrors.WithLabelValues(transport).Inc()
}
