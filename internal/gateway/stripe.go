// Stripe adapter: card-network checkout.
// Stripe completes payments without a separate capture phase, so this
// gateway has no CapturePayment capability. It can initiate refunds.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/louise36-g/mysticoracle/internal/domain"
)

// signatureTolerance bounds how old a signed webhook timestamp may be.
// Replayed deliveries older than this are rejected.
const signatureTolerance = 5 * time.Minute

// StripeConfig holds Stripe credentials and endpoints.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string // override for tests; defaults to the live API
}

// Stripe implements Gateway for Stripe checkout.
type Stripe struct {
	cfg    StripeConfig
	client *http.Client
	now    func() time.Time // injectable clock for signature tolerance tests
}

// NewStripe creates a Stripe gateway.
func NewStripe(cfg StripeConfig) *Stripe {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	return &Stripe{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
}

// Name returns the provider identifier.
func (s *Stripe) Name() domain.Provider { return domain.ProviderStripe }

// Configured reports whether both the API key and webhook secret are set.
func (s *Stripe) Configured() bool {
	return s.cfg.SecretKey != "" && s.cfg.WebhookSecret != ""
}

// ─── Checkout ───────────────────────────────────────────────────────────────

// CreateCheckoutSession creates a Stripe Checkout session for a credit
// pack. The returned session id is the payment id recorded on the
// PENDING transaction.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, in domain.CheckoutInput) (*domain.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", in.UserID)
	form.Set("success_url", in.SuccessURL)
	form.Set("cancel_url", in.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", in.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(in.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", fmt.Sprintf("%d credits", in.Credits))
	form.Set("metadata[credits]", strconv.FormatInt(in.Credits, 10))
	form.Set("metadata[user_id]", in.UserID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe checkout session: %s", stripeErrorMessage(body, resp.StatusCode))
	}

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("stripe checkout session: decode response: %w", err)
	}
	return &domain.CheckoutSession{PaymentID: session.ID, URL: session.URL}, nil
}

// ─── Webhook Verification ───────────────────────────────────────────────────

// VerifyWebhook validates a Stripe-Signature header of the form
// "t=<unix>,v1=<hmac>" where the HMAC-SHA256 is computed over
// "<unix>.<payload>" with the webhook secret. Returns (nil, nil) on any
// verification failure.
func (s *Stripe) VerifyWebhook(payload []byte, signature string, headers map[string]string) (*domain.WebhookEvent, error) {
	if signature == "" {
		signature = headers["Stripe-Signature"]
	}
	ts, sig := parseStripeSignature(signature)
	if ts == 0 || sig == "" {
		return nil, nil
	}
	if s.now().Sub(time.Unix(ts, 0)) > signatureTolerance {
		return nil, nil
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, nil
	}

	return s.parseEvent(payload)
}

// SignPayload produces a valid Stripe-Signature header value for the
// payload. Used by operator tooling to exercise the webhook path.
func (s *Stripe) SignPayload(payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

// parseStripeSignature extracts timestamp and v1 signature from the header.
func parseStripeSignature(header string) (ts int64, sig string) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, _ = strconv.ParseInt(v, 10, 64)
		case "v1":
			sig = v
		}
	}
	return ts, sig
}

// stripeEvent mirrors the subset of Stripe's event envelope we consume.
type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string            `json:"id"`
			ClientReferenceID string            `json:"client_reference_id"`
			AmountTotal       int64             `json:"amount_total"`
			Currency          string            `json:"currency"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// parseEvent translates a verified Stripe event into the neutral form.
// Events the payment core does not consume return (nil, nil).
func (s *Stripe) parseEvent(payload []byte) (*domain.WebhookEvent, error) {
	var ev stripeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("stripe webhook: decode event: %w", err)
	}

	var eventType domain.WebhookEventType
	switch ev.Type {
	case "checkout.session.completed":
		eventType = domain.EventPaymentCompleted
	case "checkout.session.expired":
		eventType = domain.EventSessionExpired
	case "checkout.session.async_payment_failed", "payment_intent.payment_failed":
		eventType = domain.EventPaymentFailed
	case "charge.refunded":
		eventType = domain.EventPaymentRefunded
	default:
		return nil, nil
	}

	obj := ev.Data.Object
	credits, _ := strconv.ParseInt(obj.Metadata["credits"], 10, 64)
	userID := obj.ClientReferenceID
	if userID == "" {
		userID = obj.Metadata["user_id"]
	}

	return &domain.WebhookEvent{
		Type:      eventType,
		EventID:   ev.ID,
		PaymentID: obj.ID,
		UserID:    userID,
		Amount:    obj.AmountTotal,
		Credits:   credits,
		Currency:  obj.Currency,
		Raw:       json.RawMessage(payload),
	}, nil
}

// ─── Refunds ────────────────────────────────────────────────────────────────

// RefundPayment initiates a refund for a payment. The ledger mutation
// happens later, when the charge.refunded webhook arrives.
func (s *Stripe) RefundPayment(ctx context.Context, paymentID string, amount int64) error {
	form := url.Values{}
	form.Set("payment_intent", paymentID)
	if amount > 0 {
		form.Set("amount", strconv.FormatInt(amount, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/v1/refunds", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe refund: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("stripe refund: %s", stripeErrorMessage(body, resp.StatusCode))
	}
	return nil
}

// stripeErrorMessage extracts Stripe's error message from a failure
// body, falling back to the HTTP status.
func stripeErrorMessage(body []byte, status int) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return fmt.Sprintf("HTTP %d", status)
}

// Compile-time capability checks.
var (
	_ Gateway       = (*Stripe)(nil)
	_ RefundGateway = (*Stripe)(nil)
)
