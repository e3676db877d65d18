package domain

import (
	"context"
	"errors"
	"fmt"

	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
	"github.com/bwmarrin/snowflake"
)

const (
	ReasonOK                     = "ok"
	ReasonLimitExceeded          = "limit_exceeded"
	ReasonEnforcementUnavailable = "enforcement_unavailable"
	ReasonTrackingUnavailable    = "tracking_unavailable"
)

// UnlimitedRemaining is the remaining-quota sentinel for unmetered tiers.
const UnlimitedRemaining int64 = -1

// Decision carries the allow/deny verdict plus the quota telemetry a
// client needs to render an upgrade prompt without a second round-trip.
type Decision struct {
	Allowed         bool                    `json:"allowed"`
	Reason          string                  `json:"reason"`
	Action          usagedomain.Action      `json:"action"`
	Tier            subscriptiondomain.Tier `json:"tier"`
	PeriodKey       string                  `json:"period_key"`
	CurrentUsage    int64                   `json:"current_usage"`
	Limit           int64                   `json:"limit"`
	Remaining       int64                   `json:"remaining"`
	Unlimited       bool                    `json:"unlimited"`
	UpgradeRequired bool                    `json:"upgrade_required"`
}

// LimitExceededError is returned when a quota is exhausted. It keeps the
// full decision so transports can surface the telemetry.
type LimitExceededError struct {
	Decision Decision
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("limit_exceeded: action=%s used=%d limit=%d",
		e.Decision.Action, e.Decision.CurrentUsage, e.Decision.Limit)
}

// ClientInfo is request metadata stamped onto recorded usage events.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type ConsumeRequest struct {
	UserID snowflake.ID
	Action usagedomain.Action
	Detail usagedomain.Detail
	Client ClientInfo
}

// UserDirectory answers whether a subject exists. Satisfied by the user
// service; kept as a local interface so enforcement does not depend on
// the account package.
type UserDirectory interface {
	Exists(ctx context.Context, userID snowflake.ID) (bool, error)
}

type Service interface {
	// Check is a dry-run: it computes the decision without appending to
	// the ledger.
	Check(ctx context.Context, userID snowflake.ID, action usagedomain.Action) (Decision, error)
	// Consume computes the decision and records the attempt. A denial
	// returns the decision together with a LimitExceededError.
	Consume(ctx context.Context, req ConsumeRequest) (Decision, error)
}

var (
	ErrUserNotFound = errors.New("user_not_found")
	// ErrTrackingUnavailable is returned when an allowed action could not
	// be recorded; the action is denied rather than left unaccounted.
	ErrTrackingUnavailable = errors.New("tracking_unavailable")
)
