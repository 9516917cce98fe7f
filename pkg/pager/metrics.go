package pager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	navigationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pageview_navigations_total",
		Help: "Total navigation events by result",
	}, []string{"result"}) // "hit", "miss", "noop", "rejected"

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pageview_fetches_total",
		Help: "Total page fetches by outcome",
	}, []string{"status"}) // "ok", "error", "stale", "dropped"

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pageview_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)
