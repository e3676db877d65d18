package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	paymentdomain "github.com/MNhat168/careerhub/internal/payment/domain"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.Handler) (*Gateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gateway, err := NewFactory().NewGateway(paymentdomain.GatewayConfig{
		BaseURL:      server.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		ReturnURL:    "https://example.com/confirm",
		CancelURL:    "https://example.com/cancel",
	})
	require.NoError(t, err)
	return gateway.(*Gateway), server
}

func writeToken(w http.ResponseWriter) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "test-token",
		"expires_in":   3600,
	})
}

func TestFactoryRequiresCredentials(t *testing.T) {
	_, err := NewFactory().NewGateway(paymentdomain.GatewayConfig{})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestCreateOrderReturnsApprovalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "client", user)
		require.Equal(t, "secret", pass)
		writeToken(w)
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "CAPTURE", body["intent"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "ORDER-1",
			"status": "CREATED",
			"links": []map[string]string{
				{"rel": "self", "href": "https://api.test/orders/ORDER-1"},
				{"rel": "approve", "href": "https://www.test/checkoutnow?token=ORDER-1"},
			},
		})
	})

	gateway, _ := newTestGateway(t, mux)
	order, err := gateway.CreateOrder(context.Background(), paymentdomain.CreateOrderRequest{
		ReferenceID: "ref-1",
		AmountCents: 2999,
		Currency:    "usd",
	})
	require.NoError(t, err)
	require.Equal(t, "ORDER-1", order.ID)
	require.Equal(t, "https://www.test/checkoutnow?token=ORDER-1", order.ApprovalURL)
	require.Equal(t, int64(2999), order.AmountCents)
}

func TestCaptureOrderSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) { writeToken(w) })
	mux.HandleFunc("/v2/checkout/orders/ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "ORDER-1",
			"status": "COMPLETED",
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]any{{
						"id":     "CAP-9",
						"status": "COMPLETED",
						"amount": map[string]string{"value": "29.99", "currency_code": "USD"},
					}},
				},
			}},
		})
	})

	gateway, _ := newTestGateway(t, mux)
	result, err := gateway.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	require.Equal(t, "CAP-9", result.CaptureID)
	require.Equal(t, int64(2999), result.AmountCents)
	require.Equal(t, "completed", result.Status)
}

func TestCaptureMapsGatewayErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    map[string]any
		wantErr error
	}{
		{
			name:   "already captured",
			status: http.StatusUnprocessableEntity,
			body: map[string]any{
				"name":    "UNPROCESSABLE_ENTITY",
				"details": []map[string]string{{"issue": "ORDER_ALREADY_CAPTURED"}},
			},
			wantErr: paymentdomain.ErrAlreadyCaptured,
		},
		{
			name:   "instrument declined",
			status: http.StatusUnprocessableEntity,
			body: map[string]any{
				"name":    "UNPROCESSABLE_ENTITY",
				"details": []map[string]string{{"issue": "INSTRUMENT_DECLINED"}},
			},
			wantErr: paymentdomain.ErrDeclined,
		},
		{
			name:    "missing order",
			status:  http.StatusNotFound,
			body:    map[string]any{"name": "RESOURCE_NOT_FOUND"},
			wantErr: paymentdomain.ErrOrderNotFound,
		},
		{
			name:    "gateway down",
			status:  http.StatusServiceUnavailable,
			body:    map[string]any{},
			wantErr: paymentdomain.ErrUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) { writeToken(w) })
			mux.HandleFunc("/v2/checkout/orders/ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(tc.body)
			})

			gateway, _ := newTestGateway(t, mux)
			_, err := gateway.CaptureOrder(context.Background(), "ORDER-1")
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		writeToken(w)
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "ORDER-1", "status": "CREATED"})
	})

	gateway, _ := newTestGateway(t, mux)
	for i := 0; i < 3; i++ {
		_, err := gateway.CreateOrder(context.Background(), paymentdomain.CreateOrderRequest{AmountCents: 100})
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), tokenCalls.Load())
}

func TestBadCredentialsSurfaceAsConfigError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	gateway, _ := newTestGateway(t, mux)
	_, err := gateway.CreateOrder(context.Background(), paymentdomain.CreateOrderRequest{AmountCents: 100})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestAmountFormatting(t *testing.T) {
	require.Equal(t, "29.99", formatAmount(2999))
	require.Equal(t, "0.05", formatAmount(5))
	require.Equal(t, "100.00", formatAmount(10000))

	require.Equal(t, int64(2999), parseAmount("29.99"))
	require.Equal(t, int64(500), parseAmount("5"))
	require.Equal(t, int64(510), parseAmount("5.1"))
}
