package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobOpen   JobStatus = "open"
	JobClosed JobStatus = "closed"
)

type Job struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	EmployerID  snowflake.ID   `gorm:"index;not null" json:"employer_id"`
	Title       string         `gorm:"not null" json:"title"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Description string         `json:"description"`
	Skills      datatypes.JSON `json:"skills"`
	MinYears    int            `json:"min_years"`
	Featured    bool           `gorm:"index" json:"featured"`
	Status      JobStatus      `gorm:"index;default:open" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }

type ApplicationStatus string

const (
	ApplicationSubmitted ApplicationStatus = "submitted"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

type Application struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	JobID       snowflake.ID      `gorm:"index:idx_job_applicant,unique;not null" json:"job_id"`
	UserID      snowflake.ID      `gorm:"index:idx_job_applicant,unique;not null" json:"user_id"`
	Headline    string            `json:"headline"`
	CoverLetter string            `json:"cover_letter"`
	Skills      datatypes.JSON    `json:"skills"`
	Years       int               `json:"years"`
	Status      ApplicationStatus `gorm:"index;default:submitted" json:"status"`

	// Scoring is asynchronous; these stay empty until a worker writes back.
	MatchScore  *float64   `json:"match_score,omitempty"`
	ScoreSource string     `json:"score_source,omitempty"`
	ScoreReason string     `json:"score_reason,omitempty"`
	ScoredAt    *time.Time `json:"scored_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Application) TableName() string { return "job_applications" }

func EncodeSkills(skills []string) (datatypes.JSON, error) {
	if len(skills) == 0 {
		return datatypes.JSON("[]"), nil
	}
	raw, err := json.Marshal(skills)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func DecodeSkills(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var skills []string
	if err := json.Unmarshal(raw, &skills); err != nil {
		return nil
	}
	return skills
}
