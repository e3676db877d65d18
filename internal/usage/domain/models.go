// Package domain contains the append-only usage ledger models.
package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Action is the closed set of quota-gated actions.
type Action string

const (
	ActionJobApplication Action = "job_application"
	ActionJobPosting     Action = "job_posting"
	ActionCVView         Action = "cv_view"
	ActionDirectMessage  Action = "direct_message"
	ActionAIMatch        Action = "ai_match"
	ActionFeaturedJob    Action = "featured_job"
)

// Actions lists every known action, in a stable order.
func Actions() []Action {
	return []Action{
		ActionJobApplication,
		ActionJobPosting,
		ActionCVView,
		ActionDirectMessage,
		ActionAIMatch,
		ActionFeaturedJob,
	}
}

// ParseAction validates an action string against the closed enum.
func ParseAction(value string) (Action, error) {
	action := Action(value)
	for _, known := range Actions() {
		if action == known {
			return action, nil
		}
	}
	return "", ErrInvalidAction
}

// Outcome records whether the attempt was admitted.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeBlocked Outcome = "blocked"
)

// UsageEvent is one immutable record of an attempted gated action.
// Rows are append-only; nothing in the application mutates them.
type UsageEvent struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID     snowflake.ID   `gorm:"not null;index:idx_usage_user_period" json:"user_id"`
	Action     Action         `gorm:"type:text;not null;index:idx_usage_user_period" json:"action"`
	PeriodKey  string         `gorm:"type:text;not null;index:idx_usage_user_period" json:"period_key"`
	Outcome    Outcome        `gorm:"type:text;not null" json:"outcome"`
	Detail     datatypes.JSON `gorm:"type:jsonb" json:"detail,omitempty"`
	ClientIP   string         `gorm:"type:text" json:"client_ip,omitempty"`
	UserAgent  string         `gorm:"type:text" json:"user_agent,omitempty"`
	RecordedAt time.Time      `gorm:"not null" json:"recorded_at"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }

// Detail is the tagged union of per-action payloads. Each action carries a
// typed variant instead of a free-form blob.
type Detail interface {
	DetailAction() Action
}

type JobApplicationDetail struct {
	JobID    string `json:"job_id"`
	ResumeID string `json:"resume_id,omitempty"`
}

func (JobApplicationDetail) DetailAction() Action { return ActionJobApplication }

type JobPostingDetail struct {
	JobID string `json:"job_id"`
	Title string `json:"title,omitempty"`
}

func (JobPostingDetail) DetailAction() Action { return ActionJobPosting }

type CVViewDetail struct {
	CandidateID string `json:"candidate_id"`
}

func (CVViewDetail) DetailAction() Action { return ActionCVView }

type DirectMessageDetail struct {
	RecipientID string `json:"recipient_id"`
}

func (DirectMessageDetail) DetailAction() Action { return ActionDirectMessage }

type AIMatchDetail struct {
	JobID   string `json:"job_id"`
	BatchID string `json:"batch_id,omitempty"`
}

func (AIMatchDetail) DetailAction() Action { return ActionAIMatch }

type FeaturedJobDetail struct {
	JobID string `json:"job_id"`
}

func (FeaturedJobDetail) DetailAction() Action { return ActionFeaturedJob }

type detailEnvelope struct {
	Type Action          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalDetail serializes a typed detail with its action tag.
func MarshalDetail(detail Detail) (datatypes.JSON, error) {
	if detail == nil {
		return nil, nil
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(detailEnvelope{Type: detail.DetailAction(), Data: data})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// UnmarshalDetail decodes a stored detail back into its typed variant.
func UnmarshalDetail(raw datatypes.JSON) (Detail, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var envelope detailEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}

	var detail Detail
	switch envelope.Type {
	case ActionJobApplication:
		detail = &JobApplicationDetail{}
	case ActionJobPosting:
		detail = &JobPostingDetail{}
	case ActionCVView:
		detail = &CVViewDetail{}
	case ActionDirectMessage:
		detail = &DirectMessageDetail{}
	case ActionAIMatch:
		detail = &AIMatchDetail{}
	case ActionFeaturedJob:
		detail = &FeaturedJobDetail{}
	default:
		return nil, ErrInvalidAction
	}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, detail); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

var ErrInvalidAction = errors.New("invalid_action")
