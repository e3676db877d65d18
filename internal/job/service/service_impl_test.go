package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MNhat168/careerhub/internal/clock"
	"github.com/MNhat168/careerhub/internal/entitlement"
	enforcerdomain "github.com/MNhat168/careerhub/internal/enforcer/domain"
	jobdomain "github.com/MNhat168/careerhub/internal/job/domain"
	matchingdomain "github.com/MNhat168/careerhub/internal/matching/domain"
	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

// enforcerStub admits everything unless told otherwise and remembers
// every consumed action.
type enforcerStub struct {
	mu       sync.Mutex
	tier     subscriptiondomain.Tier
	denied   map[usagedomain.Action]bool
	consumed []usagedomain.Action
}

func newEnforcerStub(tier subscriptiondomain.Tier) *enforcerStub {
	return &enforcerStub{tier: tier, denied: make(map[usagedomain.Action]bool)}
}

func (s *enforcerStub) Check(_ context.Context, _ snowflake.ID, action usagedomain.Action) (enforcerdomain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decide(action), nil
}

func (s *enforcerStub) Consume(_ context.Context, req enforcerdomain.ConsumeRequest) (enforcerdomain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decision := s.decide(req.Action)
	if !decision.Allowed {
		return decision, &enforcerdomain.LimitExceededError{Decision: decision}
	}
	s.consumed = append(s.consumed, req.Action)
	return decision, nil
}

func (s *enforcerStub) decide(action usagedomain.Action) enforcerdomain.Decision {
	if s.denied[action] {
		return enforcerdomain.Decision{Allowed: false, Reason: enforcerdomain.ReasonLimitExceeded, Action: action, Tier: s.tier}
	}
	return enforcerdomain.Decision{Allowed: true, Reason: enforcerdomain.ReasonOK, Action: action, Tier: s.tier}
}

func (s *enforcerStub) consumedActions() []usagedomain.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]usagedomain.Action(nil), s.consumed...)
}

// queueStub records enqueued tasks instead of running workers.
type queueStub struct {
	mu         sync.Mutex
	tasks      []matchingdomain.Task
	enqueueErr error
	batches    int
}

func (q *queueStub) Enqueue(task matchingdomain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *queueStub) ScoreJobCandidates(_ context.Context, job matchingdomain.JobProfile, candidates []matchingdomain.Candidate) (string, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(candidates) == 0 {
		return "", 0, matchingdomain.ErrNoCandidates
	}
	q.batches++
	for _, c := range candidates {
		q.tasks = append(q.tasks, matchingdomain.Task{Job: job, Candidate: c})
	}
	return "batch-test", len(candidates), nil
}

func (q *queueStub) Depth() int { return 0 }

func (q *queueStub) taskCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type jobFixture struct {
	svc      jobdomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	fake     *clock.FakeClock
	enforcer *enforcerStub
	queue    *queueStub
}

func setupJobService(t *testing.T, tier subscriptiondomain.Tier) *jobFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&jobdomain.Job{}, &jobdomain.Application{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node := mustNode(t)
	fake := clock.NewFakeClock(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC))
	enforcer := newEnforcerStub(tier)
	queue := &queueStub{}

	svc := NewService(ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fake,
		Enforcer: enforcer,
		Table:    entitlement.Default(),
		Queue:    queue,
	})
	return &jobFixture{svc: svc, db: db, node: node, fake: fake, enforcer: enforcer, queue: queue}
}

func (f *jobFixture) postJob(t *testing.T, employerID snowflake.ID) *jobdomain.Job {
	t.Helper()
	job, err := f.svc.PostJob(context.Background(), jobdomain.PostJobRequest{
		EmployerID: employerID,
		Title:      "Senior Backend Engineer",
		Skills:     []string{"go", "postgres"},
		MinYears:   3,
	})
	require.NoError(t, err)
	return job
}

func TestPostJob(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierBasic)
	employer := f.node.Generate()

	job := f.postJob(t, employer)
	require.Equal(t, jobdomain.JobOpen, job.Status)
	require.True(t, strings.HasPrefix(job.Slug, "senior-backend-engineer-"), job.Slug)
	require.True(t, strings.HasSuffix(job.Slug, job.ID.String()), job.Slug)
	require.Equal(t, []usagedomain.Action{usagedomain.ActionJobPosting}, f.enforcer.consumedActions())

	got, err := f.svc.GetJobBySlug(context.Background(), job.Slug)
	require.NoError(t, err)
	require.Equal(t, job.ID, got.ID)
	require.Equal(t, []string{"go", "postgres"}, jobdomain.DecodeSkills(got.Skills))
}

func TestPostJobEmptyTitle(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierBasic)

	_, err := f.svc.PostJob(context.Background(), jobdomain.PostJobRequest{
		EmployerID: f.node.Generate(),
		Title:      "   ",
	})
	require.ErrorIs(t, err, jobdomain.ErrInvalidTitle)
	require.Empty(t, f.enforcer.consumedActions())
}

func TestPostJobQuotaDenied(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierFree)
	f.enforcer.denied[usagedomain.ActionJobPosting] = true

	_, err := f.svc.PostJob(context.Background(), jobdomain.PostJobRequest{
		EmployerID: f.node.Generate(),
		Title:      "Backend Engineer",
	})
	var limitErr *enforcerdomain.LimitExceededError
	require.ErrorAs(t, err, &limitErr)

	var count int64
	require.NoError(t, f.db.Model(&jobdomain.Job{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestPostFeaturedJobPremium(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierPremium)

	job, err := f.svc.PostJob(context.Background(), jobdomain.PostJobRequest{
		EmployerID: f.node.Generate(),
		Title:      "Featured Role",
		Featured:   true,
	})
	require.NoError(t, err)
	require.True(t, job.Featured)
	require.Equal(t,
		[]usagedomain.Action{usagedomain.ActionJobPosting, usagedomain.ActionFeaturedJob},
		f.enforcer.consumedActions(),
	)
}

func TestPostFeaturedJobGatedByTier(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierBasic)

	_, err := f.svc.PostJob(context.Background(), jobdomain.PostJobRequest{
		EmployerID: f.node.Generate(),
		Title:      "Featured Role",
		Featured:   true,
	})
	require.ErrorIs(t, err, jobdomain.ErrFeatureNotAllowed)
	// The gate fires before any quota is consumed.
	require.Empty(t, f.enforcer.consumedActions())
}

func TestSubmitApplication(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierFree)
	employer := f.node.Generate()
	job := f.postJob(t, employer)
	applicant := f.node.Generate()

	app, err := f.svc.SubmitApplication(context.Background(), jobdomain.ApplyRequest{
		JobID:    job.ID,
		UserID:   applicant,
		Headline: "Gopher",
		Skills:   []string{"go"},
		Years:    4,
	})
	require.NoError(t, err)
	require.Equal(t, jobdomain.ApplicationSubmitted, app.Status)
	require.Nil(t, app.MatchScore)

	require.Equal(t, 1, f.queue.taskCount())
	require.Equal(t, app.ID, f.queue.tasks[0].Candidate.ApplicationID)
	require.Equal(t, job.ID, f.queue.tasks[0].Job.JobID)
	require.Contains(t, f.enforcer.consumedActions(), usagedomain.ActionJobApplication)
}

func TestSubmitApplicationDuplicate(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierFree)
	job := f.postJob(t, f.node.Generate())
	applicant := f.node.Generate()

	_, err := f.svc.SubmitApplication(context.Background(), jobdomain.ApplyRequest{JobID: job.ID, UserID: applicant})
	require.NoError(t, err)

	_, err = f.svc.SubmitApplication(context.Background(), jobdomain.ApplyRequest{JobID: job.ID, UserID: applicant})
	require.ErrorIs(t, err, jobdomain.ErrDuplicateApplication)

	// The duplicate never reached the enforcer.
	apps := 0
	for _, a := range f.enforcer.consumedActions() {
		if a == usagedomain.ActionJobApplication {
			apps++
		}
	}
	require.Equal(t, 1, apps)
}

func TestSubmitApplicationClosedJob(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierFree)
	employer := f.node.Generate()
	job := f.postJob(t, employer)
	require.NoError(t, f.svc.CloseJob(context.Background(), employer, job.ID))

	_, err := f.svc.SubmitApplication(context.Background(), jobdomain.ApplyRequest{JobID: job.ID, UserID: f.node.Generate()})
	require.ErrorIs(t, err, jobdomain.ErrJobClosed)
}

func TestSubmitApplicationUnknownJob(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierFree)

	_, err := f.svc.SubmitApplication(context.Background(), jobdomain.ApplyRequest{JobID: f.node.Generate(), UserID: f.node.Generate()})
	require.ErrorIs(t, err, jobdomain.ErrJobNotFound)
}

func TestSubmitApplicationSurvivesFullQueue(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierFree)
	job := f.postJob(t, f.node.Generate())
	f.queue.enqueueErr = matchingdomain.ErrQueueFull

	app, err := f.svc.SubmitApplication(context.Background(), jobdomain.ApplyRequest{JobID: job.ID, UserID: f.node.Generate()})
	require.NoError(t, err)

	var stored jobdomain.Application
	require.NoError(t, f.db.First(&stored, "id = ?", app.ID).Error)
}

func TestCloseJobNotOwner(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierBasic)
	job := f.postJob(t, f.node.Generate())

	err := f.svc.CloseJob(context.Background(), f.node.Generate(), job.ID)
	require.ErrorIs(t, err, jobdomain.ErrNotJobOwner)
}

func TestTriggerMatching(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierPremium)
	employer := f.node.Generate()
	job := f.postJob(t, employer)

	for i := 0; i < 3; i++ {
		_, err := f.svc.SubmitApplication(context.Background(), jobdomain.ApplyRequest{
			JobID: job.ID, UserID: f.node.Generate(), Years: i,
		})
		require.NoError(t, err)
	}
	f.queue.mu.Lock()
	f.queue.tasks = nil // drop the fire-and-forget tasks from submission
	f.queue.mu.Unlock()

	result, err := f.svc.TriggerMatching(context.Background(), employer, job.ID, enforcerdomain.ClientInfo{})
	require.NoError(t, err)
	require.Equal(t, "batch-test", result.BatchID)
	require.Equal(t, 3, result.Candidates)
	require.Equal(t, 3, f.queue.taskCount())
	require.Contains(t, f.enforcer.consumedActions(), usagedomain.ActionAIMatch)
}

func TestTriggerMatchingNotOwner(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierPremium)
	job := f.postJob(t, f.node.Generate())

	_, err := f.svc.TriggerMatching(context.Background(), f.node.Generate(), job.ID, enforcerdomain.ClientInfo{})
	require.ErrorIs(t, err, jobdomain.ErrNotJobOwner)
}

func TestTriggerMatchingNothingToScore(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierPremium)
	employer := f.node.Generate()
	job := f.postJob(t, employer)

	_, err := f.svc.TriggerMatching(context.Background(), employer, job.ID, enforcerdomain.ClientInfo{})
	require.ErrorIs(t, err, jobdomain.ErrNothingToScore)
	require.NotContains(t, f.enforcer.consumedActions(), usagedomain.ActionAIMatch)
}

func TestScoreWriterRoundTrip(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierFree)
	job := f.postJob(t, f.node.Generate())
	app, err := f.svc.SubmitApplication(context.Background(), jobdomain.ApplyRequest{JobID: job.ID, UserID: f.node.Generate()})
	require.NoError(t, err)

	writer := NewScoreWriter(ScoreWriterParam{DB: f.db, Log: zap.NewNop(), Clock: f.fake})
	require.NoError(t, writer.SaveScore(context.Background(), app.ID, matchingdomain.Score{
		Value:  77.5,
		Source: matchingdomain.SourceAI,
		Scorer: "openai",
		Reason: "good overlap",
	}))

	var stored jobdomain.Application
	require.NoError(t, f.db.First(&stored, "id = ?", app.ID).Error)
	require.NotNil(t, stored.MatchScore)
	require.Equal(t, 77.5, *stored.MatchScore)
	require.Equal(t, string(matchingdomain.SourceAI), stored.ScoreSource)
	require.NotNil(t, stored.ScoredAt)

	// A scored application no longer qualifies for batch rescoring.
	_, err = f.svc.TriggerMatching(context.Background(), job.EmployerID, job.ID, enforcerdomain.ClientInfo{})
	require.ErrorIs(t, err, jobdomain.ErrNothingToScore)
}

func TestScoreWriterMissingApplication(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierFree)
	writer := NewScoreWriter(ScoreWriterParam{DB: f.db, Log: zap.NewNop(), Clock: f.fake})

	err := writer.SaveScore(context.Background(), f.node.Generate(), matchingdomain.Score{Value: 10})
	require.NoError(t, err)
}

func TestListApplicationsOrdering(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierFree)
	employer := f.node.Generate()
	job := f.postJob(t, employer)
	writer := NewScoreWriter(ScoreWriterParam{DB: f.db, Log: zap.NewNop(), Clock: f.fake})

	var ids []snowflake.ID
	for i := 0; i < 3; i++ {
		app, err := f.svc.SubmitApplication(context.Background(), jobdomain.ApplyRequest{JobID: job.ID, UserID: f.node.Generate()})
		require.NoError(t, err)
		ids = append(ids, app.ID)
	}
	require.NoError(t, writer.SaveScore(context.Background(), ids[0], matchingdomain.Score{Value: 40, Source: matchingdomain.SourceFallback}))
	require.NoError(t, writer.SaveScore(context.Background(), ids[2], matchingdomain.Score{Value: 90, Source: matchingdomain.SourceAI}))

	apps, err := f.svc.ListApplications(context.Background(), employer, job.ID)
	require.NoError(t, err)
	require.Len(t, apps, 3)
	require.Equal(t, ids[2], apps[0].ID)
	require.Equal(t, ids[0], apps[1].ID)
	require.Equal(t, ids[1], apps[2].ID) // unscored sorts last
}

func TestListJobsFeaturedFirst(t *testing.T) {
	f := setupJobService(t, subscriptiondomain.TierEnterprise)
	employer := f.node.Generate()

	plain := f.postJob(t, employer)
	featured, err := f.svc.PostJob(context.Background(), jobdomain.PostJobRequest{
		EmployerID: employer,
		Title:      "Featured Role",
		Featured:   true,
	})
	require.NoError(t, err)

	jobs, err := f.svc.ListJobs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, featured.ID, jobs[0].ID)
	require.Equal(t, plain.ID, jobs[1].ID)

	require.NoError(t, f.svc.CloseJob(context.Background(), employer, plain.ID))
	jobs, err = f.svc.ListJobs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}
