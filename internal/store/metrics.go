package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts store operations.
	// Labels: driver, op, result (ok, not_found, duplicate, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskd",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of store operations by result",
		},
		[]string{"driver", "op", "result"},
	)

	// OperationDuration tracks how long store operations take.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskd",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"driver", "op"},
	)

	// PingStatus is 1 when the last ping succeeded, 0 otherwise.
	PingStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "taskd",
			Subsystem: "store",
			Name:      "up",
			Help:      "Whether the last store ping succeeded (1) or failed (0)",
		},
		[]string{"driver"},
	)
)
