// Package domain contains persistence models for plans and plan assignments.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Tier is the closed set of plan tiers.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// AssignmentStatus represents lifecycle states for a plan assignment.
type AssignmentStatus string

const (
	StatusTrial     AssignmentStatus = "trial"
	StatusPending   AssignmentStatus = "pending"
	StatusActive    AssignmentStatus = "active"
	StatusCancelled AssignmentStatus = "cancelled"
	StatusExpired   AssignmentStatus = "expired"
)

// PaymentStatus mirrors the gateway-side state of the linked order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Plan is one row of the plan catalog.
type Plan struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Tier         Tier              `gorm:"type:text;not null;uniqueIndex" json:"tier"`
	Name         string            `gorm:"type:text;not null" json:"name"`
	PriceCents   int64             `gorm:"not null" json:"price_cents"`
	Currency     string            `gorm:"type:text;not null;default:'USD'" json:"currency"`
	DurationDays int               `gorm:"not null" json:"duration_days"`
	TrialDays    int               `gorm:"not null;default:0" json:"trial_days"`
	Active       bool              `gorm:"not null;default:true" json:"active"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// PlanAssignment captures a user's subscription to a plan. Rows are never
// hard-deleted; terminal states are kept for audit and for the
// single-trial-per-lifetime check.
type PlanAssignment struct {
	ID              snowflake.ID     `gorm:"primaryKey" json:"id"`
	UserID          snowflake.ID     `gorm:"not null;index" json:"user_id"`
	Tier            Tier             `gorm:"type:text;not null" json:"tier"`
	Status          AssignmentStatus `gorm:"type:text;not null" json:"status"`
	Trial           bool             `gorm:"not null;default:false" json:"trial"`
	AutoRenew       bool             `gorm:"not null;default:false" json:"auto_renew"`
	StartAt         time.Time        `gorm:"not null" json:"start_at"`
	ExpiresAt       time.Time        `gorm:"not null" json:"expires_at"`
	CountersResetAt *time.Time       `json:"counters_reset_at,omitempty"`
	LastUsedAt      *time.Time       `json:"last_used_at,omitempty"`
	OrderID         *string          `gorm:"type:text;index" json:"order_id,omitempty"`
	PaymentStatus   PaymentStatus    `gorm:"type:text;not null;default:'pending'" json:"payment_status"`
	CancelReason    *string          `gorm:"type:text" json:"cancel_reason,omitempty"`
	CanceledAt      *time.Time       `json:"canceled_at,omitempty"`
	Version         int64            `gorm:"not null;default:1" json:"-"`
	CreatedAt       time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (PlanAssignment) TableName() string { return "plan_assignments" }

// IsEffectivelyActive is the derived activity check. A stored status of
// active or trial does not grant access past ExpiresAt; reads never flip
// the stored status as a side effect. A cancelled assignment stays
// effective until its paid-for window runs out: cancelling turns off
// renewal, it does not claw back access.
func (a *PlanAssignment) IsEffectivelyActive(now time.Time) bool {
	if a == nil {
		return false
	}
	switch a.Status {
	case StatusActive, StatusTrial, StatusCancelled:
		return a.ExpiresAt.After(now)
	default:
		return false
	}
}

// ValidTier reports whether the tier belongs to the closed enum.
func ValidTier(t Tier) bool {
	switch t {
	case TierFree, TierBasic, TierPremium, TierEnterprise:
		return true
	default:
		return false
	}
}
