package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/MNhat168/careerhub/internal/clock"
	"github.com/MNhat168/careerhub/internal/config"
	"github.com/MNhat168/careerhub/internal/matching/domain"
	obsmetrics "github.com/MNhat168/careerhub/internal/observability/metrics"
)

type QueueParam struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	Sink    domain.Sink
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Queue runs a bounded pool of scoring workers. Tasks go to the primary
// scorer first; any primary failure on the final attempt degrades to the
// fallback scorer, which always produces a score. A failed score never
// surfaces to the user who triggered it.
type Queue struct {
	log      *zap.Logger
	cfg      config.MatchConfig
	clock    clock.Clock
	primary  domain.Scorer
	fallback domain.Scorer
	sink     domain.Sink
	metrics  *obsmetrics.Metrics

	tasks   chan domain.Task
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	quit    chan struct{}
}

func NewQueue(p QueueParam) *Queue {
	var primary domain.Scorer
	if p.Cfg.OpenAI.APIKey != "" && !p.Cfg.Match.FallbackOnly {
		primary = NewOpenAIScorer(p.Cfg.OpenAI.APIKey, p.Cfg.OpenAI.BaseURL, p.Cfg.OpenAI.Model, p.Cfg.Match.CallTimeout)
	}
	return newQueue(p.Log, p.Cfg.Match, p.Clock, primary, NewRuleScorer(), p.Sink, p.Metrics)
}

func newQueue(log *zap.Logger, cfg config.MatchConfig, clk clock.Clock, primary, fallback domain.Scorer, sink domain.Sink, metrics *obsmetrics.Metrics) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Queue{
		log:      log.Named("matching.queue"),
		cfg:      cfg,
		clock:    clk,
		primary:  primary,
		fallback: fallback,
		sink:     sink,
		metrics:  metrics,
		tasks:    make(chan domain.Task, cfg.QueueSize),
		quit:     make(chan struct{}),
	}
}

// Start launches the worker pool. Stop drains in-flight tasks before
// returning so a deploy never loses an accepted task.
func (q *Queue) Start() {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	close(q.quit)
	close(q.tasks)
	q.wg.Wait()
}

func (q *Queue) Depth() int { return len(q.tasks) }

func (q *Queue) Enqueue(task domain.Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return domain.ErrQueueFull
	}
	select {
	case q.tasks <- task:
		q.metrics.SetMatchQueueDepth(len(q.tasks))
		return nil
	default:
		q.metrics.IncMatchJobError(obsmetrics.MatchJobReasonQueueFull)
		return domain.ErrQueueFull
	}
}

// ScoreJobCandidates feeds candidates in fixed-size batches with a delay
// between batches, so a large job does not monopolize the queue. It
// returns immediately; the feed runs in the background and stops feeding
// on shutdown, but any batch already enqueued runs to completion.
func (q *Queue) ScoreJobCandidates(_ context.Context, job domain.JobProfile, candidates []domain.Candidate) (string, int, error) {
	if len(candidates) == 0 {
		return "", 0, domain.ErrNoCandidates
	}
	q.mu.RLock()
	stopped := q.stopped
	q.mu.RUnlock()
	if stopped {
		return "", 0, domain.ErrQueueFull
	}

	batchID := fmt.Sprintf("batch-%s-%d", job.JobID.String(), q.clock.Now().UnixNano())
	go q.feed(batchID, job, candidates)
	return batchID, len(candidates), nil
}

func (q *Queue) feed(batchID string, job domain.JobProfile, candidates []domain.Candidate) {
	for start := 0; start < len(candidates); start += q.cfg.BatchSize {
		end := start + q.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		for _, cand := range candidates[start:end] {
			if err := q.Enqueue(domain.Task{Job: job, Candidate: cand, BatchID: batchID}); err != nil {
				q.log.Warn("dropping scoring task",
					zap.String("batch_id", batchID),
					zap.String("application_id", cand.ApplicationID.String()),
					zap.Error(err),
				)
			}
		}
		if end < len(candidates) && q.cfg.BatchDelay > 0 {
			select {
			case <-time.After(q.cfg.BatchDelay):
			case <-q.quit:
				return
			}
		}
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.metrics.SetMatchQueueDepth(len(q.tasks))
		q.process(task)
	}
}

func (q *Queue) process(task domain.Task) {
	ctx := context.Background()
	score, err := q.score(ctx, task)
	if err == errRetried {
		return
	}
	if err != nil {
		// Unreachable in practice: the fallback scorer cannot fail.
		q.metrics.IncMatchJob("failed")
		return
	}

	if err := q.sink.SaveScore(ctx, task.Candidate.ApplicationID, score); err != nil {
		q.metrics.IncMatchJobError(obsmetrics.MatchJobReasonDB)
		if q.retry(task) {
			return
		}
		q.metrics.IncMatchJob("failed")
		q.log.Error("dropping score after save failures",
			zap.String("batch_id", task.BatchID),
			zap.String("application_id", task.Candidate.ApplicationID.String()),
			zap.Error(err),
		)
		return
	}

	if score.Source == domain.SourceFallback && q.primary != nil {
		q.metrics.IncMatchJob("fallback")
	} else {
		q.metrics.IncMatchJob("completed")
	}
}

func (q *Queue) score(ctx context.Context, task domain.Task) (domain.Score, error) {
	if q.primary != nil {
		start := time.Now()
		score, err := q.primary.Score(ctx, task.Job, task.Candidate)
		q.metrics.ObserveMatchJobDuration(q.primary.Name(), time.Since(start))
		if err == nil {
			return score, nil
		}

		reason := obsmetrics.MatchJobReasonProvider
		if ctx.Err() != nil || isTimeout(err) {
			reason = obsmetrics.MatchJobReasonTimeout
		}
		q.metrics.IncMatchJobError(reason)
		q.log.Warn("primary scorer failed",
			zap.String("scorer", q.primary.Name()),
			zap.String("application_id", task.Candidate.ApplicationID.String()),
			zap.Int("attempt", task.Attempt+1),
			zap.Error(err),
		)

		if task.Attempt+1 < q.cfg.MaxAttempts {
			if q.retryPrimary(task) {
				return domain.Score{}, errRetried
			}
		} else {
			q.metrics.IncMatchJobError(obsmetrics.MatchJobReasonMaxAttempts)
		}
	}

	start := time.Now()
	score, err := q.fallback.Score(ctx, task.Job, task.Candidate)
	q.metrics.ObserveMatchJobDuration(q.fallback.Name(), time.Since(start))
	return score, err
}

// retryPrimary re-enqueues the task for another primary attempt. A full
// queue falls through to the fallback instead of waiting.
func (q *Queue) retryPrimary(task domain.Task) bool {
	task.Attempt++
	if err := q.Enqueue(task); err != nil {
		return false
	}
	q.metrics.IncMatchJob("retried")
	return true
}

func (q *Queue) retry(task domain.Task) bool {
	if task.Attempt+1 >= q.cfg.MaxAttempts {
		q.metrics.IncMatchJobError(obsmetrics.MatchJobReasonMaxAttempts)
		return false
	}
	return q.retryPrimary(task)
}

var errRetried = fmt.Errorf("task requeued")

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	if te, ok := err.(timeout); ok {
		return te.Timeout()
	}
	return false
}
