package service

import (
	"context"
	"strings"

	"github.com/MNhat168/careerhub/internal/matching/domain"
)

// RuleScorer is the deterministic fallback: skill overlap plus an
// experience bonus. It never fails, so degraded AI availability still
// produces a usable ordering.
type RuleScorer struct{}

func NewRuleScorer() *RuleScorer { return &RuleScorer{} }

func (s *RuleScorer) Name() string { return "rule" }

func (s *RuleScorer) Score(_ context.Context, job domain.JobProfile, cand domain.Candidate) (domain.Score, error) {
	score := skillOverlap(job.Skills, cand.Skills) * 70

	if job.MinYears <= 0 {
		score += 30
	} else if cand.Years >= job.MinYears {
		score += 30
	} else {
		score += 30 * float64(cand.Years) / float64(job.MinYears)
	}

	if score > 100 {
		score = 100
	}
	return domain.Score{
		Value:  score,
		Source: domain.SourceFallback,
		Scorer: s.Name(),
	}, nil
}

func skillOverlap(want, have []string) float64 {
	if len(want) == 0 {
		return 1
	}
	set := make(map[string]struct{}, len(have))
	for _, s := range have {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	matched := 0
	for _, s := range want {
		if _, ok := set[strings.ToLower(strings.TrimSpace(s))]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(want))
}
