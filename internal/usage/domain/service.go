package domain

import (
	"context"
	"errors"
	"time"

	"github.com/MNhat168/careerhub/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

type RecordRequest struct {
	UserID     snowflake.ID
	Action     Action
	PeriodKey  string
	Outcome    Outcome
	Detail     Detail
	ClientIP   string
	UserAgent  string
	RecordedAt time.Time
}

type HistoryRequest struct {
	UserID    snowflake.ID
	Action    string
	Outcome   string
	PeriodKey string
	PageToken string
	PageSize  int32
}

type HistoryResponse struct {
	pagination.PageInfo
	Events []UsageEvent `json:"events"`
}

// ActionStat is one row of the per-period stats view.
type ActionStat struct {
	Action  Action `json:"action"`
	Allowed int64  `json:"allowed"`
	Blocked int64  `json:"blocked"`
}

type AnalyticsRequest struct {
	From time.Time
	To   time.Time
}

type AnalyticsRow struct {
	Action  Action  `gorm:"column:action" json:"action"`
	Outcome Outcome `gorm:"column:outcome" json:"outcome"`
	Count   int64   `gorm:"column:count" json:"count"`
	Users   int64   `gorm:"column:users" json:"users"`
}

type Service interface {
	// Record appends an immutable event. It never mutates existing rows.
	Record(ctx context.Context, req RecordRequest) (*UsageEvent, error)
	// CountInPeriod counts allowed events only; blocked attempts are
	// logged but never consume quota.
	CountInPeriod(ctx context.Context, userID snowflake.ID, action Action, periodKey string) (int64, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
	Stats(ctx context.Context, userID snowflake.ID, periodKey string) ([]ActionStat, error)
	AdminAnalytics(ctx context.Context, req AnalyticsRequest) ([]AnalyticsRow, error)
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidOutcome   = errors.New("invalid_outcome")
	ErrInvalidPeriodKey = errors.New("invalid_period_key")
)
