package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Publish attempts partitioned by broker and outcome (ok, timeout, error)
	deliveryPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_publish_total",
			Help: "Total number of delivery job publish attempts",
		},
		[]string{"broker", "result"},
	)

	deliveryPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_publish_duration_seconds",
			Help:    "Delivery job publish latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"broker"},
	)
)
