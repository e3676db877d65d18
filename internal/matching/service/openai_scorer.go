package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MNhat168/careerhub/internal/matching/domain"
)

const (
	defaultCallTimeout = 10 * time.Second
	defaultModel       = "gpt-4o-mini"
)

// OpenAIScorer asks a chat model for a 0..100 fit score. Every call is
// bounded by a fixed timeout ceiling so one slow upstream request can
// never stall the worker pool.
type OpenAIScorer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIScorer(apiKey, baseURL, model string, timeout time.Duration) *OpenAIScorer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &OpenAIScorer{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

func (s *OpenAIScorer) Name() string { return "openai" }

type scoreReply struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

func (s *OpenAIScorer) Score(ctx context.Context, job domain.JobProfile, cand domain.Candidate) (domain.Score, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You score how well a candidate fits a job posting. " +
					"Reply with JSON: {\"score\": <0-100 number>, \"reason\": \"<one sentence>\"}.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(job, cand),
			},
		},
	})
	if err != nil {
		return domain.Score{}, fmt.Errorf("%w: %v", domain.ErrScoreUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return domain.Score{}, domain.ErrScoreUnavailable
	}

	var reply scoreReply
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &reply); err != nil {
		return domain.Score{}, fmt.Errorf("%w: bad model reply: %v", domain.ErrScoreUnavailable, err)
	}
	if reply.Score < 0 {
		reply.Score = 0
	}
	if reply.Score > 100 {
		reply.Score = 100
	}
	return domain.Score{
		Value:  reply.Score,
		Source: domain.SourceAI,
		Scorer: s.Name(),
		Reason: reply.Reason,
	}, nil
}

func buildPrompt(job domain.JobProfile, cand domain.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job: %s\n", job.Title)
	if job.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", job.Description)
	}
	if len(job.Skills) > 0 {
		fmt.Fprintf(&b, "Required skills: %s\n", strings.Join(job.Skills, ", "))
	}
	if job.MinYears > 0 {
		fmt.Fprintf(&b, "Minimum experience: %d years\n", job.MinYears)
	}
	fmt.Fprintf(&b, "\nCandidate: %s\n", cand.Headline)
	if cand.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", cand.Summary)
	}
	if len(cand.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(cand.Skills, ", "))
	}
	fmt.Fprintf(&b, "Experience: %d years\n", cand.Years)
	return b.String()
}
