package sandbox

import (
	"context"
	"testing"

	paymentdomain "github.com/MNhat168/careerhub/internal/payment/domain"
	"github.com/stretchr/testify/require"
)

func TestCreateAndCapture(t *testing.T) {
	g := New()
	ctx := context.Background()

	order, err := g.CreateOrder(ctx, paymentdomain.CreateOrderRequest{
		ReferenceID: "assignment-1",
		AmountCents: 1999,
		Currency:    "usd",
	})
	require.NoError(t, err)
	require.NotEmpty(t, order.ID)
	require.NotEmpty(t, order.ApprovalURL)
	require.Equal(t, "USD", order.Currency)

	result, err := g.CaptureOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, paymentdomain.OrderStatusCompleted, result.Status)
	require.Equal(t, int64(1999), result.AmountCents)
	require.NotEmpty(t, result.CaptureID)
}

func TestCaptureIdempotent(t *testing.T) {
	g := New()
	ctx := context.Background()

	order, err := g.CreateOrder(ctx, paymentdomain.CreateOrderRequest{AmountCents: 500})
	require.NoError(t, err)

	_, err = g.CaptureOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = g.CaptureOrder(ctx, order.ID)
	require.ErrorIs(t, err, paymentdomain.ErrAlreadyCaptured)
}

func TestCaptureUnknownOrder(t *testing.T) {
	g := New()
	_, err := g.CaptureOrder(context.Background(), "nope")
	require.ErrorIs(t, err, paymentdomain.ErrOrderNotFound)
}

func TestDeclineNextCapture(t *testing.T) {
	g := New()
	ctx := context.Background()

	order, err := g.CreateOrder(ctx, paymentdomain.CreateOrderRequest{AmountCents: 500})
	require.NoError(t, err)

	g.DeclineNextCapture()
	_, err = g.CaptureOrder(ctx, order.ID)
	require.ErrorIs(t, err, paymentdomain.ErrDeclined)

	// The decline is one-shot; a retry succeeds.
	_, err = g.CaptureOrder(ctx, order.ID)
	require.NoError(t, err)
}

func TestRejectsNonPositiveAmount(t *testing.T) {
	g := New()
	_, err := g.CreateOrder(context.Background(), paymentdomain.CreateOrderRequest{AmountCents: 0})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}
