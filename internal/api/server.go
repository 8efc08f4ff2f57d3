// Package api provides the HTTP server for MysticOracle's payment core.
// It exposes the webhook ingestion endpoint, the client capture and
// checkout calls, and balance/revenue reads.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/louise36-g/mysticoracle/internal/app/capture"
	"github.com/louise36-g/mysticoracle/internal/app/ledger"
	"github.com/louise36-g/mysticoracle/internal/app/webhook"
	"github.com/louise36-g/mysticoracle/internal/domain"
	"github.com/louise36-g/mysticoracle/internal/gateway"
)

// Server is the payment API server.
type Server struct {
	gateways       *gateway.Registry
	ledger         *ledger.Ledger
	capture        *capture.UseCase
	webhooks       *webhook.UseCase
	txs            domain.TransactionStore
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(gateways *gateway.Registry, l *ledger.Ledger, cap *capture.UseCase, wh *webhook.UseCase, txs domain.TransactionStore) *Server {
	return &Server{gateways: gateways, ledger: l, capture: cap, webhooks: wh, txs: txs}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	// Provider-initiated notifications
	r.Post("/api/webhooks/{provider}", s.handleWebhook)

	// Client-facing payment calls
	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/checkout", s.handleCheckout)
		r.Post("/capture", s.handleCapture)
	})

	r.Get("/api/users/{id}/credits", s.handleCredits)
	r.Get("/api/users/{id}/transactions", s.handleTransactions)

	// Reporting, consumed by the admin dashboard
	r.Get("/api/admin/revenue", s.handleRevenue)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}
