// Package paypal implements the payment gateway against the PayPal
// Orders v2 API (create order, buyer approval redirect, capture).
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	paymentdomain "github.com/MNhat168/careerhub/internal/payment/domain"
)

const requestTimeout = 15 * time.Second

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "paypal"
}

func (f *Factory) NewGateway(cfg paymentdomain.GatewayConfig) (paymentdomain.Gateway, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api-m.sandbox.paypal.com"
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	return &Gateway{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		returnURL:    strings.TrimSpace(cfg.ReturnURL),
		cancelURL:    strings.TrimSpace(cfg.CancelURL),
		client:       &http.Client{Timeout: requestTimeout},
	}, nil
}

type Gateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	returnURL    string
	cancelURL    string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func (g *Gateway) Provider() string { return "paypal" }

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PurchaseUnits []struct {
		Amount struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount struct {
					Value        string `json:"value"`
					CurrencyCode string `json:"currency_code"`
				} `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

func (g *Gateway) CreateOrder(ctx context.Context, req paymentdomain.CreateOrderRequest) (*paymentdomain.Order, error) {
	if req.AmountCents <= 0 {
		return nil, paymentdomain.ErrInvalidConfig
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.ReferenceID,
			"description":  req.Description,
			"amount": map[string]any{
				"currency_code": currency,
				"value":         formatAmount(req.AmountCents),
			},
		}},
		"application_context": map[string]any{
			"return_url": g.returnURL,
			"cancel_url": g.cancelURL,
		},
	}

	var resp orderResponse
	if err := g.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", body, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.ID) == "" {
		return nil, paymentdomain.ErrUnavailable
	}

	order := &paymentdomain.Order{
		ID:          resp.ID,
		Status:      strings.ToLower(resp.Status),
		AmountCents: req.AmountCents,
		Currency:    currency,
	}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			order.ApprovalURL = link.Href
			break
		}
	}
	return order, nil
}

func (g *Gateway) CaptureOrder(ctx context.Context, orderID string) (*paymentdomain.CaptureResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, paymentdomain.ErrOrderNotFound
	}

	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	var resp orderResponse
	if err := g.doJSON(ctx, http.MethodPost, path, map[string]any{}, &resp); err != nil {
		return nil, err
	}

	result := &paymentdomain.CaptureResult{
		OrderID: orderID,
		Status:  strings.ToLower(resp.Status),
	}
	for _, unit := range resp.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			result.CaptureID = capture.ID
			result.AmountCents = parseAmount(capture.Amount.Value)
			result.Currency = capture.Amount.CurrencyCode
		}
	}
	if !strings.EqualFold(resp.Status, "COMPLETED") {
		return nil, paymentdomain.ErrDeclined
	}
	return result, nil
}

func (g *Gateway) doJSON(ctx context.Context, method, path string, body any, out any) error {
	token, err := g.token(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("%w: bad response body", paymentdomain.ErrUnavailable)
			}
		}
		return nil
	}

	return g.mapError(resp.StatusCode, raw)
}

func (g *Gateway) mapError(status int, raw []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(raw, &apiErr)

	for _, detail := range apiErr.Details {
		switch detail.Issue {
		case "ORDER_ALREADY_CAPTURED":
			return paymentdomain.ErrAlreadyCaptured
		case "INSTRUMENT_DECLINED", "PAYER_CANNOT_PAY", "TRANSACTION_REFUSED":
			return paymentdomain.ErrDeclined
		}
	}

	switch {
	case status == http.StatusNotFound:
		return paymentdomain.ErrOrderNotFound
	case status == http.StatusUnprocessableEntity:
		return paymentdomain.ErrDeclined
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return paymentdomain.ErrInvalidConfig
	case status >= 500:
		return paymentdomain.ErrUnavailable
	default:
		return fmt.Errorf("%w: %s (%d)", paymentdomain.ErrUnavailable, apiErr.Name, status)
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (g *Gateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", paymentdomain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			return "", paymentdomain.ErrInvalidConfig
		}
		return "", paymentdomain.ErrUnavailable
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: bad token response", paymentdomain.ErrUnavailable)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return "", paymentdomain.ErrUnavailable
	}

	g.accessToken = token.AccessToken
	// Refresh one minute early to avoid using a token mid-expiry.
	g.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)
	return g.accessToken, nil
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func parseAmount(value string) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parts := strings.SplitN(value, ".", 2)
	whole, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0
	}
	cents := whole * 100
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err == nil {
			cents += f
		}
	}
	return cents
}
