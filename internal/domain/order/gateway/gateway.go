package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Gateway failures split into two classes the order flow treats differently:
// a rejection is final (the order fails), anything else is retryable.
var (
	ErrRejected    = errors.New("payment rejected by gateway")
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// HoldRequest asks the gateway to freeze funds without charging them.
type HoldRequest struct {
	OrderID     string
	Amount      float64
	Currency    string
	Description string
	ReturnURL   string
}

// HoldResult is the gateway's answer to a hold request. The client finishes
// authorization at ConfirmationURL; the hold is confirmed by webhook.
type HoldResult struct {
	PaymentID       string
	Status          string
	ConfirmationURL string
}

// Gateway is the two-phase payment provider. Every mutating call carries an
// idempotency key so a retried request never doubles the side effect.
type Gateway interface {
	// Hold freezes the amount on the customer's payment method.
	Hold(ctx context.Context, req HoldRequest, idempotencyKey string) (*HoldResult, error)
	// Capture charges a previously held payment, possibly for less than
	// the held amount (the final tier price).
	Capture(ctx context.Context, paymentID string, amount float64, idempotencyKey string) error
	// Void releases a hold without charging.
	Void(ctx context.Context, paymentID string, idempotencyKey string) error
	// Refund returns a captured amount to the customer.
	Refund(ctx context.Context, paymentID string, amount float64, idempotencyKey string) (string, error)
}

// VerifySignature checks the webhook HMAC-SHA256 signature.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Webhook event types delivered by the provider.
const (
	EventWaitingForCapture = "payment.waiting_for_capture"
	EventPaymentSucceeded  = "payment.succeeded"
	EventPaymentCanceled   = "payment.canceled"
	EventRefundSucceeded   = "refund.succeeded"
)

// WebhookEvent is the parsed notification payload.
type WebhookEvent struct {
	Event  string        `json:"event"`
	Object WebhookObject `json:"object"`
}

// WebhookObject carries the payment (or refund) the event refers to.
type WebhookObject struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"` // set on refund events
	Amount    struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
}
