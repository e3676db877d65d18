package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubscribeRequest struct {
	UserID        snowflake.ID
	Tier          Tier
	PaymentMethod string
	BillingPeriod string
}

// SubscribeResponse either reports immediate activation (free plans) or
// carries the gateway approval URL for a pending paid subscription.
type SubscribeResponse struct {
	Assignment  *PlanAssignment `json:"assignment"`
	OrderID     string          `json:"order_id,omitempty"`
	ApprovalURL string          `json:"approval_url,omitempty"`
}

type CancelRequest struct {
	UserID snowflake.ID
	Reason string
}

type CaptureResponse struct {
	Assignment *PlanAssignment `json:"assignment"`
	PaymentID  string          `json:"payment_id"`
	Amount     int64           `json:"amount_cents"`
}

type Service interface {
	ListPlans(ctx context.Context) ([]Plan, error)
	GetPlan(ctx context.Context, tier Tier) (*Plan, error)
	GetCurrent(ctx context.Context, userID snowflake.ID) (*PlanAssignment, error)
	ActivateTrial(ctx context.Context, userID snowflake.ID, tier Tier) (*PlanAssignment, error)
	Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResponse, error)
	HandleCapture(ctx context.Context, orderID string) (*CaptureResponse, error)
	Upgrade(ctx context.Context, userID snowflake.ID, newTier Tier) (*PlanAssignment, error)
	Cancel(ctx context.Context, req CancelRequest) (*PlanAssignment, error)
	ResetUsage(ctx context.Context, userID snowflake.ID, at time.Time) (*PlanAssignment, error)
}

// Notifier receives best-effort lifecycle notifications. Failures are
// logged, never surfaced to the caller.
type Notifier interface {
	NotifyActivated(ctx context.Context, assignment *PlanAssignment)
	NotifyCancelled(ctx context.Context, assignment *PlanAssignment)
}

var (
	ErrPlanNotFound         = errors.New("plan_not_found")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidTier          = errors.New("invalid_tier")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrTrialUnavailable     = errors.New("trial_unavailable")
	ErrTrialAlreadyUsed     = errors.New("trial_already_used")
	ErrAlreadySubscribed    = errors.New("already_subscribed")
	ErrInvalidBillingPeriod = errors.New("invalid_billing_period")
	ErrVersionConflict      = errors.New("version_conflict")
)
