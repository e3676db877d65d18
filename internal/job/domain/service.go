package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	enforcerdomain "github.com/MNhat168/careerhub/internal/enforcer/domain"
)

type PostJobRequest struct {
	EmployerID  snowflake.ID
	Title       string
	Description string
	Skills      []string
	MinYears    int
	Featured    bool
	Client      enforcerdomain.ClientInfo
}

type ApplyRequest struct {
	JobID       snowflake.ID
	UserID      snowflake.ID
	Headline    string
	CoverLetter string
	Skills      []string
	Years       int
	Client      enforcerdomain.ClientInfo
}

// MatchRunResult reports an accepted batch-scoring run.
type MatchRunResult struct {
	BatchID    string `json:"batch_id"`
	Candidates int    `json:"candidates"`
}

type Service interface {
	PostJob(ctx context.Context, req PostJobRequest) (*Job, error)
	GetJob(ctx context.Context, id snowflake.ID) (*Job, error)
	GetJobBySlug(ctx context.Context, slug string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]Job, error)
	CloseJob(ctx context.Context, employerID, jobID snowflake.ID) error
	SubmitApplication(ctx context.Context, req ApplyRequest) (*Application, error)
	ListApplications(ctx context.Context, employerID, jobID snowflake.ID) ([]Application, error)
	// TriggerMatching consumes one ai_match unit and enqueues scoring for
	// every unscored application on the job.
	TriggerMatching(ctx context.Context, employerID, jobID snowflake.ID, client enforcerdomain.ClientInfo) (*MatchRunResult, error)
}

var (
	ErrJobNotFound          = errors.New("job_not_found")
	ErrJobClosed            = errors.New("job_closed")
	ErrNotJobOwner          = errors.New("not_job_owner")
	ErrDuplicateApplication = errors.New("duplicate_application")
	ErrFeatureNotAllowed    = errors.New("feature_not_allowed")
	ErrInvalidTitle         = errors.New("invalid_title")
	ErrNothingToScore       = errors.New("nothing_to_score")
)
