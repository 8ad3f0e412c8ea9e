package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_created_total",
			Help: "Total number of scheduled messages accepted, by status after intake",
		},
		[]string{"status"},
	)

	reconcileRequeuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_requeued_total",
			Help: "Total number of processing messages re-published by the reconciliation sweep",
		},
		[]string{"result"},
	)
)
