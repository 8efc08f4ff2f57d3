// Package observability exposes Prometheus metrics for the payment
// core: webhook deliveries, capture outcomes, credit grants, refunds.
// Served on /metrics by the API server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Webhook Metrics ────────────────────────────────────────────────────────

// WebhooksReceived tracks inbound webhook deliveries by provider and
// event type. Unverifiable deliveries carry event_type "unknown".
var WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mystic",
	Subsystem: "payments",
	Name:      "webhooks_received_total",
	Help:      "Total inbound webhook deliveries by provider and event type.",
}, []string{"provider", "event_type"})

// WebhooksRejected tracks deliveries that failed signature verification.
var WebhooksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mystic",
	Subsystem: "payments",
	Name:      "webhooks_rejected_total",
	Help:      "Total webhook deliveries rejected for invalid signatures.",
}, []string{"provider"})

// WebhookDuplicates tracks redeliveries absorbed by idempotency checks.
var WebhookDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mystic",
	Subsystem: "payments",
	Name:      "webhook_duplicates_total",
	Help:      "Total duplicate webhook deliveries absorbed as no-ops.",
}, []string{"provider"})

// ─── Capture Metrics ────────────────────────────────────────────────────────

// CapturesTotal tracks capture attempts by provider and outcome.
var CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mystic",
	Subsystem: "payments",
	Name:      "captures_total",
	Help:      "Total capture attempts by provider and outcome.",
}, []string{"provider", "outcome"})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// CreditsGranted tracks credits granted through the ledger.
var CreditsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mystic",
	Subsystem: "payments",
	Name:      "credits_granted_total",
	Help:      "Total credits granted, by provider.",
}, []string{"provider"})

// RefundsTotal tracks refund transactions created.
var RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mystic",
	Subsystem: "payments",
	Name:      "refunds_total",
	Help:      "Total refund transactions created, by provider.",
}, []string{"provider"})
