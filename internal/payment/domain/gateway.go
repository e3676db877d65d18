package domain

import (
	"context"
	"errors"
)

const (
	OrderStatusCreated   = "created"
	OrderStatusApproved  = "approved"
	OrderStatusCompleted = "completed"
)

// Order is a gateway-side payment order awaiting buyer approval.
type Order struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ApprovalURL string `json:"approval_url"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type CreateOrderRequest struct {
	ReferenceID string
	AmountCents int64
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
}

// CaptureResult is the gateway's answer to a capture call.
type CaptureResult struct {
	OrderID     string `json:"order_id"`
	CaptureID   string `json:"capture_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Gateway is the payment capture boundary. Implementations must keep
// capture idempotent at the gateway side: a second capture of the same
// order returns ErrAlreadyCaptured, never a double charge.
type Gateway interface {
	Provider() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error)
}

// GatewayConfig carries provider credentials and redirect endpoints.
type GatewayConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ReturnURL    string
	CancelURL    string
}

// GatewayFactory builds a configured Gateway for one provider.
type GatewayFactory interface {
	Provider() string
	NewGateway(cfg GatewayConfig) (Gateway, error)
}

var (
	ErrDeclined         = errors.New("payment_declined")
	ErrAlreadyCaptured  = errors.New("order_already_captured")
	ErrOrderNotFound    = errors.New("order_not_found")
	ErrUnavailable      = errors.New("gateway_unavailable")
	ErrInvalidConfig    = errors.New("invalid_gateway_config")
	ErrProviderNotFound = errors.New("provider_not_found")
)
