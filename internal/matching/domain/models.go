package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// ScoreSource tells consumers whether a score came from the AI scorer or
// from the deterministic fallback heuristic.
type ScoreSource string

const (
	SourceAI       ScoreSource = "ai"
	SourceFallback ScoreSource = "fallback"
)

// JobProfile is the slice of a job posting a scorer needs.
type JobProfile struct {
	JobID       snowflake.ID
	Title       string
	Description string
	Skills      []string
	MinYears    int
}

// Candidate is the slice of an application a scorer needs.
type Candidate struct {
	ApplicationID snowflake.ID
	UserID        snowflake.ID
	Headline      string
	Summary       string
	Skills        []string
	Years         int
}

// Score is a 0..100 fit score for one candidate against one job.
type Score struct {
	Value  float64     `json:"value"`
	Source ScoreSource `json:"source"`
	Scorer string      `json:"scorer"`
	Reason string      `json:"reason,omitempty"`
}

// Scorer scores a single candidate against a job profile.
type Scorer interface {
	Name() string
	Score(ctx context.Context, job JobProfile, cand Candidate) (Score, error)
}

// Sink receives finished scores. The job package implements it so the
// worker never imports the job tables directly.
type Sink interface {
	SaveScore(ctx context.Context, applicationID snowflake.ID, score Score) error
}

// Task is one scoring unit of work.
type Task struct {
	Job       JobProfile
	Candidate Candidate
	BatchID   string
	Attempt   int
}

// Queue accepts scoring tasks. Enqueue never blocks: a full queue is
// reported to the caller, who treats scoring as best-effort.
type Queue interface {
	Enqueue(task Task) error
	ScoreJobCandidates(ctx context.Context, job JobProfile, candidates []Candidate) (string, int, error)
	Depth() int
}

var (
	ErrQueueFull        = errors.New("match queue full")
	ErrScoreUnavailable = errors.New("score unavailable")
	ErrNoCandidates     = errors.New("no candidates to score")
)
