package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"groupbuy_backend/pkg/logger"
	"groupbuy_backend/pkg/metrics"

	"go.uber.org/zap"
)

const yookassaBaseURL = "https://api.yookassa.ru/v3"

// YooKassaGateway implements the two-phase flow against the YooKassa REST
// API: a hold is a payment created with capture=false, confirmed by webhook.
type YooKassaGateway struct {
	shopID    string
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewYooKassaGateway(shopID, secretKey string) *YooKassaGateway {
	return &YooKassaGateway{
		shopID:    shopID,
		secretKey: secretKey,
		baseURL:   yookassaBaseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type yookassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yookassaPayment struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Amount       yookassaAmount `json:"amount"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func amount(value float64, currency string) yookassaAmount {
	if currency == "" {
		currency = "RUB"
	}
	return yookassaAmount{
		Value:    strconv.FormatFloat(value, 'f', 2, 64),
		Currency: currency,
	}
}

func (g *YooKassaGateway) Hold(ctx context.Context, req HoldRequest, idempotencyKey string) (*HoldResult, error) {
	body := map[string]interface{}{
		"amount":  amount(req.Amount, req.Currency),
		"capture": false,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": req.ReturnURL,
		},
		"description": req.Description,
		"metadata":    map[string]string{"order_id": req.OrderID},
	}

	var payment yookassaPayment
	if err := g.call(ctx, "hold", http.MethodPost, "/payments", body, idempotencyKey, &payment); err != nil {
		return nil, err
	}
	return &HoldResult{
		PaymentID:       payment.ID,
		Status:          payment.Status,
		ConfirmationURL: payment.Confirmation.ConfirmationURL,
	}, nil
}

func (g *YooKassaGateway) Capture(ctx context.Context, paymentID string, amt float64, idempotencyKey string) error {
	body := map[string]interface{}{"amount": amount(amt, "")}
	path := fmt.Sprintf("/payments/%s/capture", paymentID)
	return g.call(ctx, "capture", http.MethodPost, path, body, idempotencyKey, nil)
}

func (g *YooKassaGateway) Void(ctx context.Context, paymentID string, idempotencyKey string) error {
	path := fmt.Sprintf("/payments/%s/cancel", paymentID)
	return g.call(ctx, "void", http.MethodPost, path, struct{}{}, idempotencyKey, nil)
}

func (g *YooKassaGateway) Refund(ctx context.Context, paymentID string, amt float64, idempotencyKey string) (string, error) {
	body := map[string]interface{}{
		"payment_id": paymentID,
		"amount":     amount(amt, ""),
	}
	var refund struct {
		ID string `json:"id"`
	}
	if err := g.call(ctx, "refund", http.MethodPost, "/refunds", body, idempotencyKey, &refund); err != nil {
		return "", err
	}
	return refund.ID, nil
}

// call issues one authenticated request and maps the HTTP outcome onto the
// gateway error classes. 4xx means the provider made a final decision.
func (g *YooKassaGateway) call(ctx context.Context, operation, method, path string, body interface{}, idempotencyKey string, out interface{}) error {
	start := time.Now()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.shopID, g.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", idempotencyKey)

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.Default.ObserveGatewayOp(operation, "error", time.Since(start))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.Default.ObserveGatewayOp(operation, "error", time.Since(start))
		return err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.Default.ObserveGatewayOp(operation, "ok", time.Since(start))
		if out != nil {
			return json.Unmarshal(data, out)
		}
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		metrics.Default.ObserveGatewayOp(operation, "rejected", time.Since(start))
		logger.Log.Warn("Gateway rejected request",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", data))
		return fmt.Errorf("%w: http %d", ErrRejected, resp.StatusCode)
	default:
		metrics.Default.ObserveGatewayOp(operation, "error", time.Since(start))
		return fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
}
