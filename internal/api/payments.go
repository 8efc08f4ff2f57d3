package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/louise36-g/mysticoracle/internal/app/capture"
	"github.com/louise36-g/mysticoracle/internal/app/ledger"
	"github.com/louise36-g/mysticoracle/internal/app/webhook"
	"github.com/louise36-g/mysticoracle/internal/domain"
)

// maxWebhookBody bounds inbound webhook payloads (1 MiB).
const maxWebhookBody = 1 << 20

// ─── Webhook Ingestion ──────────────────────────────────────────────────────

// handleWebhook ingests a provider notification.
// POST /api/webhooks/{provider}
//
// Status codes steer provider redelivery: 2xx acknowledges (including
// idempotent no-ops), 400 rejects bad signatures permanently, 5xx asks
// the provider to redeliver.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	headers := map[string]string{
		"Stripe-Signature":        r.Header.Get("Stripe-Signature"),
		"Paypal-Transmission-Sig": r.Header.Get("Paypal-Transmission-Sig"),
		"Paypal-Transmission-Id":  r.Header.Get("Paypal-Transmission-Id"),
		"Webhook-Delivery-Id":     r.Header.Get("Webhook-Delivery-Id"),
	}

	result := s.webhooks.Process(r.Context(), webhook.Input{
		Provider: provider,
		Payload:  payload,
		Headers:  headers,
	})

	writeJSON(w, webhookStatus(result), result)
}

// webhookStatus maps a processing outcome to an HTTP status.
func webhookStatus(result *webhook.Result) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Code {
	case domain.CodeInvalidSignature, domain.CodeUnknownProvider:
		// Permanent rejection: redelivering the same payload cannot help.
		return http.StatusBadRequest
	case domain.CodeProviderNotConfigured:
		// Operator-facing configuration error, not a transient fault.
		return http.StatusServiceUnavailable
	default:
		// Internal error: let the provider redeliver.
		return http.StatusInternalServerError
	}
}

// ─── Checkout ───────────────────────────────────────────────────────────────

type checkoutRequest struct {
	UserID     string `json:"user_id"`
	Provider   string `json:"provider"`
	Credits    int64  `json:"credits"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// handleCheckout starts a credit purchase: creates the provider-hosted
// session and records the PENDING placeholder transaction its webhook
// or capture will later complete.
// POST /api/payments/checkout
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Credits <= 0 || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "user_id, credits and amount are required")
		return
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}

	gw, err := s.gateways.Resolve(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown payment provider")
		return
	}
	if !gw.Configured() {
		writeError(w, http.StatusServiceUnavailable, "payment provider is not configured")
		return
	}

	session, err := gw.CreateCheckoutSession(r.Context(), domain.CheckoutInput{
		UserID:     req.UserID,
		Credits:    req.Credits,
		Amount:     req.Amount,
		Currency:   req.Currency,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if _, err := s.ledger.CreatePendingPurchase(ledger.Grant{
		UserID:        req.UserID,
		Credits:       req.Credits,
		Provider:      gw.Name(),
		PaymentID:     session.PaymentID,
		PaymentAmount: req.Amount,
		Currency:      req.Currency,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// ─── Capture ────────────────────────────────────────────────────────────────

type captureRequest struct {
	UserID   string `json:"user_id"`
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
}

// handleCapture triggers the second phase of an authorize-then-capture
// flow.
// POST /api/payments/capture
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.OrderID == "" || req.Provider == "" {
		writeError(w, http.StatusBadRequest, "user_id, order_id and provider are required")
		return
	}

	result := s.capture.Capture(r.Context(), capture.Input{
		UserID:   req.UserID,
		OrderID:  req.OrderID,
		Provider: req.Provider,
	})

	writeJSON(w, captureStatus(result), result)
}

// captureStatus maps a capture outcome to an HTTP status.
func captureStatus(result *capture.Result) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Code {
	case domain.CodeProviderNotConfigured:
		return http.StatusServiceUnavailable
	case domain.CodeCaptureFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ─── Balance & Reporting ────────────────────────────────────────────────────

// handleCredits returns a user's current credit balance.
// GET /api/users/{id}/credits
func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	balance, err := s.ledger.Balance(userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"credits": balance,
	})
}

// transactionLister is satisfied by the sqlite store; the history
// endpoint degrades to 404 when the store lacks it.
type transactionLister interface {
	ListUserTransactions(userID string, limit int) ([]domain.Transaction, error)
}

// handleTransactions returns a user's recent transactions.
// GET /api/users/{id}/transactions
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	lister, ok := s.txs.(transactionLister)
	if !ok {
		writeError(w, http.StatusNotFound, "transaction history not available")
		return
	}
	txs, err := lister.ListUserTransactions(userID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"transactions": txs,
	})
}

// handleRevenue returns completed-purchase totals, overall and per
// provider.
// GET /api/admin/revenue
func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	credits, revenue, err := s.txs.SumCompletedPurchases()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byProvider, err := s.txs.RevenueByProvider()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credits_sold": credits,
		"revenue":      revenue,
		"by_provider":  byProvider,
	})
}
