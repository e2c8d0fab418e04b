package commands

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	interactionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hackbot",
		Subsystem: "interactions",
		Name:      "total",
		Help:      "The total number of interactions handled",
	}, []string{"kind", "name", "outcome"})

	interactionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hackbot",
		Subsystem: "interactions",
		Name:      "duration_seconds",
		Help:      "Time spent handling an interaction",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"kind", "name"})
)

const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomePanic   = "panic"
	outcomeUnknown = "unknown"
)
