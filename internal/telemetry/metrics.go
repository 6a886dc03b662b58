// Package telemetry holds the Prometheus collectors exported on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IncidentsTotal counts incident lifecycle events (reported, started, resolved)
	IncidentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slatrack_incidents_total",
		Help: "Incident lifecycle events by event",
	}, []string{"event"})

	// AlertsCreatedTotal counts alerts opened, by alert type
	AlertsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slatrack_alerts_created_total",
		Help: "Alerts created by type",
	}, []string{"type"})

	// AlertsResolvedTotal counts alert resolutions by cause (manual, incidents, sla_normalized)
	AlertsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slatrack_alerts_resolved_total",
		Help: "Alerts resolved by cause",
	}, []string{"cause"})

	MetricCompilationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slatrack_metric_compilations_total",
		Help: "Metric compilations by formula and resulting semaphore",
	}, []string{"formula", "semaphore"})

	BatchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slatrack_batch_items_total",
		Help: "Items processed by the scheduled batch, by outcome",
	}, []string{"outcome"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slatrack_batch_duration_seconds",
		Help:    "Scheduled batch run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// NotificationsTotal counts delivery attempts by channel and result
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slatrack_notifications_total",
		Help: "Notification delivery attempts by channel and result",
	}, []string{"channel", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slatrack_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
