package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order intakes",
	}, []string{"reason"})

	ReservationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_reservation_latency_seconds",
		Help:    "Latency of the transactional order creation with stock reservation",
		Buckets: prometheus.DefBuckets,
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of failed stock reservations",
	}, []string{"reason"})

	NumberCollisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identifier_collisions_total",
		Help: "Total number of order/invoice number collisions requiring a redraw",
	}, []string{"kind"})

	NumberExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identifier_exhausted_total",
		Help: "Total number of generations that ran out of attempts",
	}, []string{"kind"})

	WebhooksProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_webhooks_processed_total",
		Help: "Total number of payment notifications fully reconciled",
	})

	WebhooksDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_webhooks_duplicate_total",
		Help: "Total number of already-paid notifications acknowledged as no-ops",
	})

	WebhooksRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_rejected_total",
		Help: "Total number of rejected payment notifications",
	}, []string{"reason"})

	WebhooksIgnoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_webhooks_ignored_total",
		Help: "Total number of notifications acknowledged for unhandled event kinds",
	})

	StockAdjustmentsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_adjustments_failed_total",
		Help: "Total number of per-item fulfillment adjustments that were skipped",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
