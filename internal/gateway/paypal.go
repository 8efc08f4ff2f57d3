// PayPal adapter: order-based wallet.
// PayPal authorizes an order at approval time; funds move only when we
// capture, so this gateway carries the CapturePayment capability.
// Refunds are initiated from the PayPal dashboard — the core only
// consumes the resulting webhook.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louise36-g/mysticoracle/internal/domain"
)

// PayPalConfig holds PayPal credentials and endpoints.
type PayPalConfig struct {
	ClientID      string
	Secret        string
	WebhookSecret string
	BaseURL       string // override for tests; defaults to the live API
}

// PayPal implements Gateway plus the capture capability.
type PayPal struct {
	cfg    PayPalConfig
	client *http.Client
}

// NewPayPal creates a PayPal gateway.
func NewPayPal(cfg PayPalConfig) *PayPal {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-m.paypal.com"
	}
	return &PayPal{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the provider identifier.
func (p *PayPal) Name() domain.Provider { return domain.ProviderPayPal }

// Configured reports whether client credentials and the webhook secret
// are present.
func (p *PayPal) Configured() bool {
	return p.cfg.ClientID != "" && p.cfg.Secret != "" && p.cfg.WebhookSecret != ""
}

// ─── Checkout ───────────────────────────────────────────────────────────────

// CreateCheckoutSession creates a PayPal order. The order id is the
// payment id recorded on the PENDING transaction; the capture call
// later references the same id.
func (p *PayPal) CreateCheckoutSession(ctx context.Context, in domain.CheckoutInput) (*domain.CheckoutSession, error) {
	order := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"custom_id":    fmt.Sprintf("%s:%d", in.UserID, in.Credits),
			"description":  fmt.Sprintf("%d credits", in.Credits),
			"amount": map[string]string{
				"currency_code": in.Currency,
				"value":         minorToDecimal(in.Amount),
			},
		}},
		"application_context": map[string]string{
			"return_url": in.SuccessURL,
			"cancel_url": in.CancelURL,
		},
	}
	body, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	respBody, err := p.post(ctx, "/v2/checkout/orders", body)
	if err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	var created struct {
		ID    string `json:"id"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("paypal create order: decode response: %w", err)
	}

	session := &domain.CheckoutSession{PaymentID: created.ID}
	for _, l := range created.Links {
		if l.Rel == "approve" {
			session.URL = l.Href
		}
	}
	return session, nil
}

// ─── Capture ────────────────────────────────────────────────────────────────

// CapturePayment captures a previously approved order. A provider-side
// decline is reported through CaptureResult, not an error; errors mean
// the call itself failed.
func (p *PayPal) CapturePayment(ctx context.Context, orderID, userID string) (*domain.CaptureResult, error) {
	respBody, err := p.post(ctx, "/v2/checkout/orders/"+orderID+"/capture", []byte("{}"))
	if err != nil {
		return nil, err
	}

	var captured struct {
		Status        string `json:"status"`
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.Unmarshal(respBody, &captured); err != nil {
		return nil, fmt.Errorf("paypal capture: decode response: %w", err)
	}

	result := &domain.CaptureResult{Success: captured.Status == "COMPLETED"}
	if !result.Success {
		result.Err = fmt.Sprintf("capture not completed: order status %s", captured.Status)
	}
	for _, unit := range captured.PurchaseUnits {
		if len(unit.Payments.Captures) > 0 && result.CaptureID == "" {
			result.CaptureID = unit.Payments.Captures[0].ID
		}
		if _, credits, ok := splitCustomID(unit.CustomID); ok {
			result.Credits = credits
		}
	}
	return result, nil
}

// ─── Webhook Verification ───────────────────────────────────────────────────

// VerifyWebhook validates the Paypal-Transmission-Sig header: an
// HMAC-SHA256 of "<transmission-id>|<payload>" keyed by the webhook
// secret. Returns (nil, nil) on any verification failure.
func (p *PayPal) VerifyWebhook(payload []byte, signature string, headers map[string]string) (*domain.WebhookEvent, error) {
	if signature == "" {
		signature = headers["Paypal-Transmission-Sig"]
	}
	transmissionID := headers["Paypal-Transmission-Id"]
	if signature == "" || transmissionID == "" {
		return nil, nil
	}

	mac := hmac.New(sha256.New, []byte(p.cfg.WebhookSecret))
	mac.Write([]byte(transmissionID))
	mac.Write([]byte("|"))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, nil
	}

	return p.parseEvent(payload)
}

// SignPayload produces a valid transmission signature for the payload.
// Used by operator tooling to exercise the webhook path.
func (p *PayPal) SignPayload(payload []byte, transmissionID string) string {
	mac := hmac.New(sha256.New, []byte(p.cfg.WebhookSecret))
	mac.Write([]byte(transmissionID))
	mac.Write([]byte("|"))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// paypalEvent mirrors the subset of PayPal's webhook envelope we consume.
type paypalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		OrderID  string `json:"order_id"` // capture events reference the order
		CustomID string `json:"custom_id"`
		Amount   struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	} `json:"resource"`
}

// parseEvent translates a verified PayPal event into the neutral form.
// Events the payment core does not consume return (nil, nil).
func (p *PayPal) parseEvent(payload []byte) (*domain.WebhookEvent, error) {
	var ev paypalEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("paypal webhook: decode event: %w", err)
	}

	var eventType domain.WebhookEventType
	switch ev.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.COMPLETED":
		eventType = domain.EventPaymentCompleted
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		eventType = domain.EventPaymentFailed
	case "PAYMENT.CAPTURE.REFUNDED":
		eventType = domain.EventPaymentRefunded
	case "CHECKOUT.ORDER.VOIDED":
		eventType = domain.EventSessionExpired
	default:
		return nil, nil
	}

	paymentID := ev.Resource.OrderID
	if paymentID == "" {
		paymentID = ev.Resource.ID
	}
	userID, credits, _ := splitCustomID(ev.Resource.CustomID)

	return &domain.WebhookEvent{
		Type:      eventType,
		EventID:   ev.ID,
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    decimalToMinor(ev.Resource.Amount.Value),
		Credits:   credits,
		Currency:  ev.Resource.Amount.CurrencyCode,
		Raw:       json.RawMessage(payload),
	}, nil
}

// ─── HTTP Helpers ───────────────────────────────────────────────────────────

// post sends an authenticated JSON request. Non-2xx responses become
// errors carrying PayPal's message so operators see the literal text.
func (p *PayPal) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.Secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s", paypalErrorMessage(respBody, resp.StatusCode))
	}
	return respBody, nil
}

// paypalErrorMessage extracts PayPal's error message from a failure
// body, falling back to the HTTP status.
func paypalErrorMessage(body []byte, status int) string {
	var e struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("PayPal API error: HTTP %d", status)
}

// splitCustomID parses the "userID:credits" value we stash in PayPal's
// custom_id field at order creation.
func splitCustomID(s string) (userID string, credits int64, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			credits, err := strconv.ParseInt(s[i+1:], 10, 64)
			if err != nil {
				return "", 0, false
			}
			return s[:i], credits, true
		}
	}
	return "", 0, false
}

// minorToDecimal formats a minor-unit amount as "12.34".
func minorToDecimal(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

// decimalToMinor parses "12.34" into 1234. The fraction is positional:
// "12.3" means 30 cents, not 3. Malformed values become 0.
func decimalToMinor(s string) int64 {
	whole, frac, _ := strings.Cut(s, ".")
	negative := strings.HasPrefix(whole, "-")
	units, err := strconv.ParseInt(strings.TrimPrefix(whole, "-"), 10, 64)
	if err != nil {
		return 0
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(frac[:2], 10, 64)
	if err != nil {
		return 0
	}
	minor := units*100 + cents
	if negative {
		minor = -minor
	}
	return minor
}

// Compile-time capability checks.
var (
	_ Gateway        = (*PayPal)(nil)
	_ CaptureGateway = (*PayPal)(nil)
)
