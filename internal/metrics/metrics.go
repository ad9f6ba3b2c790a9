package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DonationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodtrack_donations_created_total",
		Help: "Total number of donations successfully created.",
	})

	DonationsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodtrack_donations_accepted_total",
		Help: "Total number of donations claimed by an organization.",
	})

	DonationsDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodtrack_donations_delivered_total",
		Help: "Total number of donations auto-completed as delivered.",
	})

	DonationsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodtrack_donations_cancelled_total",
		Help: "Total number of donations cancelled by their donor.",
	})

	AcceptConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodtrack_accept_conflicts_total",
		Help: "Total number of accept attempts that lost the race for a donation.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodtrack_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation", "kind"},
	)

	PendingCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodtrack_pending_cache_items",
		Help: "Current number of donations in the pending cache.",
	})

	OutboxTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodtrack_outbox_tasks_total",
		Help: "Outbox tasks processed by the audit publisher, by result.",
	},
		[]string{"result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodtrack_http_request_duration_seconds",
		Help:    "Latency of HTTP requests by route and status code.",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"route", "code"},
	)
)
