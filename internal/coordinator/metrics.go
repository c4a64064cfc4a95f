package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of one optimistic mutation.
const (
	outcomeConfirmed  = "confirmed"
	outcomeRolledBack = "rolled_back"
	outcomeStale      = "stale"
	outcomeRejected   = "rejected"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundry_tree_mutations_total",
		Help: "Tree mutations by operation and outcome",
	}, []string{"op", "outcome"})

	refetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundry_tree_refetch_total",
		Help: "Full tree refetches by result",
	}, []string{"result"})

	refetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "foundry_tree_refetch_duration_seconds",
		Help:    "Full tree refetch latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	undoTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foundry_tree_undo_total",
		Help: "Undo requests by kind and result",
	}, []string{"kind", "result"})
)
