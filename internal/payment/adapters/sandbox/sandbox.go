// Package sandbox is an in-process payment gateway for development and
// tests. Orders live in memory; captures are idempotent the way a real
// gateway's are.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"

	paymentdomain "github.com/MNhat168/careerhub/internal/payment/domain"
	"github.com/google/uuid"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "sandbox"
}

func (f *Factory) NewGateway(cfg paymentdomain.GatewayConfig) (paymentdomain.Gateway, error) {
	return New(), nil
}

type order struct {
	amountCents int64
	currency    string
	captured    bool
	captureID   string
}

type Gateway struct {
	mu     sync.Mutex
	orders map[string]*order

	// DeclineNext makes the next capture fail with ErrDeclined.
	declineNext bool
}

func New() *Gateway {
	return &Gateway{orders: map[string]*order{}}
}

func (g *Gateway) Provider() string { return "sandbox" }

// DeclineNextCapture arms a one-shot decline for the next capture call.
func (g *Gateway) DeclineNextCapture() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declineNext = true
}

func (g *Gateway) CreateOrder(ctx context.Context, req paymentdomain.CreateOrderRequest) (*paymentdomain.Order, error) {
	if req.AmountCents <= 0 {
		return nil, paymentdomain.ErrInvalidConfig
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	id := "SBX-" + uuid.NewString()

	g.mu.Lock()
	g.orders[id] = &order{amountCents: req.AmountCents, currency: currency}
	g.mu.Unlock()

	return &paymentdomain.Order{
		ID:          id,
		Status:      paymentdomain.OrderStatusCreated,
		ApprovalURL: fmt.Sprintf("https://sandbox.invalid/approve/%s", id),
		AmountCents: req.AmountCents,
		Currency:    currency,
	}, nil
}

func (g *Gateway) CaptureOrder(ctx context.Context, orderID string) (*paymentdomain.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	stored, ok := g.orders[strings.TrimSpace(orderID)]
	if !ok {
		return nil, paymentdomain.ErrOrderNotFound
	}
	if stored.captured {
		return nil, paymentdomain.ErrAlreadyCaptured
	}
	if g.declineNext {
		g.declineNext = false
		return nil, paymentdomain.ErrDeclined
	}

	stored.captured = true
	stored.captureID = "CAP-" + uuid.NewString()

	return &paymentdomain.CaptureResult{
		OrderID:     orderID,
		CaptureID:   stored.captureID,
		Status:      paymentdomain.OrderStatusCompleted,
		AmountCents: stored.amountCents,
		Currency:    stored.currency,
	}, nil
}
