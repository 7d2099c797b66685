package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"groupbuy_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	os.Exit(m.Run())
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.succeeded"}`)

	// HMAC-SHA256 of the body with key "secret".
	valid := "7f9ff6a40c74b7d90906be5e23c87826483e8b60c698ebdcc721554646b3f500"

	assert.True(t, VerifySignature("secret", body, valid))
	assert.False(t, VerifySignature("secret", body, "deadbeef"))
	assert.False(t, VerifySignature("other", body, valid))
	assert.False(t, VerifySignature("", body, valid))
	assert.False(t, VerifySignature("secret", body, ""))
}

func newTestGateway(handler http.HandlerFunc) (*YooKassaGateway, *httptest.Server) {
	server := httptest.NewServer(handler)
	gw := NewYooKassaGateway("shop-1", "key-1")
	gw.baseURL = server.URL
	return gw, server
}

func TestHold(t *testing.T) {
	t.Run("creates a two-phase payment", func(t *testing.T) {
		var got map[string]interface{}
		gw, server := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
			user, pass, _ := r.BasicAuth()
			assert.Equal(t, "shop-1", user)
			assert.Equal(t, "key-1", pass)
			assert.Equal(t, "idem-1", r.Header.Get("Idempotence-Key"))
			assert.Equal(t, "/payments", r.URL.Path)

			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"id": "ext-1",
				"status": "pending",
				"confirmation": {"confirmation_url": "https://pay.example/c"}
			}`))
		})
		defer server.Close()

		result, err := gw.Hold(context.Background(), HoldRequest{
			OrderID: "order-1",
			Amount:  1234.5,
		}, "idem-1")
		require.NoError(t, err)

		assert.Equal(t, "ext-1", result.PaymentID)
		assert.Equal(t, "https://pay.example/c", result.ConfirmationURL)

		// The hold must not capture.
		assert.Equal(t, false, got["capture"])
		amount := got["amount"].(map[string]interface{})
		assert.Equal(t, "1234.50", amount["value"])
		assert.Equal(t, "RUB", amount["currency"])
	})

	t.Run("4xx maps to a final rejection", func(t *testing.T) {
		gw, server := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		})
		defer server.Close()

		_, err := gw.Hold(context.Background(), HoldRequest{Amount: 100}, "idem-1")
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("5xx maps to a retryable failure", func(t *testing.T) {
		gw, server := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		defer server.Close()

		_, err := gw.Hold(context.Background(), HoldRequest{Amount: 100}, "idem-1")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestCapture(t *testing.T) {
	gw, server := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/ext-1/capture", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		amount := body["amount"].(map[string]interface{})
		assert.Equal(t, "800.00", amount["value"])

		w.Write([]byte(`{"id":"ext-1","status":"succeeded"}`))
	})
	defer server.Close()

	assert.NoError(t, gw.Capture(context.Background(), "ext-1", 800, "idem-2"))
}

func TestRefund(t *testing.T) {
	gw, server := newTestGateway(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refunds", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ext-1", body["payment_id"])

		w.Write([]byte(`{"id":"refund-1","status":"succeeded"}`))
	})
	defer server.Close()

	refundID, err := gw.Refund(context.Background(), "ext-1", 1000, "idem-3")
	require.NoError(t, err)
	assert.Equal(t, "refund-1", refundID)
}
