package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MNhat168/careerhub/internal/clock"
	"github.com/MNhat168/careerhub/internal/entitlement"
	enforcerdomain "github.com/MNhat168/careerhub/internal/enforcer/domain"
	jobdomain "github.com/MNhat168/careerhub/internal/job/domain"
	matchingdomain "github.com/MNhat168/careerhub/internal/matching/domain"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
	"github.com/MNhat168/careerhub/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Enforcer enforcerdomain.Service
	Table    *entitlement.Table
	Queue    matchingdomain.Queue
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	enforcer enforcerdomain.Service
	table    *entitlement.Table
	queue    matchingdomain.Queue

	jobs repository.Repository[jobdomain.Job]
	apps repository.Repository[jobdomain.Application]
}

func NewService(p ServiceParam) jobdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("job.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		enforcer: p.Enforcer,
		table:    p.Table,
		queue:    p.Queue,
		jobs:     repository.ProvideStore[jobdomain.Job](p.DB),
		apps:     repository.ProvideStore[jobdomain.Application](p.DB),
	}
}

func (s *Service) PostJob(ctx context.Context, req jobdomain.PostJobRequest) (*jobdomain.Job, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, jobdomain.ErrInvalidTitle
	}

	if req.Featured {
		// Feature-gate before consuming anything so a forbidden request
		// burns no quota.
		check, err := s.enforcer.Check(ctx, req.EmployerID, usagedomain.ActionFeaturedJob)
		if err != nil {
			return nil, err
		}
		if !s.table.FeaturesFor(check.Tier).CanFeatureJobs {
			return nil, jobdomain.ErrFeatureNotAllowed
		}
	}

	id := s.genID.Generate()
	if _, err := s.enforcer.Consume(ctx, enforcerdomain.ConsumeRequest{
		UserID: req.EmployerID,
		Action: usagedomain.ActionJobPosting,
		Detail: &usagedomain.JobPostingDetail{JobID: id.String(), Title: title},
		Client: req.Client,
	}); err != nil {
		return nil, err
	}

	if req.Featured {
		if _, err := s.enforcer.Consume(ctx, enforcerdomain.ConsumeRequest{
			UserID: req.EmployerID,
			Action: usagedomain.ActionFeaturedJob,
			Detail: &usagedomain.FeaturedJobDetail{JobID: id.String()},
			Client: req.Client,
		}); err != nil {
			return nil, err
		}
	}

	skills, err := jobdomain.EncodeSkills(req.Skills)
	if err != nil {
		return nil, err
	}

	job := &jobdomain.Job{
		ID:          id,
		EmployerID:  req.EmployerID,
		Title:       title,
		Slug:        fmt.Sprintf("%s-%s", slug.Make(title), id.String()),
		Description: req.Description,
		Skills:      skills,
		MinYears:    req.MinYears,
		Featured:    req.Featured,
		Status:      jobdomain.JobOpen,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.log.Info("job posted",
		zap.String("job_id", job.ID.String()),
		zap.String("employer_id", req.EmployerID.String()),
		zap.Bool("featured", job.Featured),
	)
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id snowflake.ID) (*jobdomain.Job, error) {
	job, err := s.jobs.FindOne(ctx, &jobdomain.Job{ID: id})
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, jobdomain.ErrJobNotFound
	}
	return job, nil
}

func (s *Service) GetJobBySlug(ctx context.Context, jobSlug string) (*jobdomain.Job, error) {
	job, err := s.jobs.FindOne(ctx, &jobdomain.Job{Slug: jobSlug})
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, jobdomain.ErrJobNotFound
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]jobdomain.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var jobs []jobdomain.Job
	err := s.db.WithContext(ctx).
		Where("status = ?", jobdomain.JobOpen).
		Order("featured DESC, created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Service) CloseJob(ctx context.Context, employerID, jobID snowflake.ID) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.EmployerID != employerID {
		return jobdomain.ErrNotJobOwner
	}
	return s.db.WithContext(ctx).
		Model(&jobdomain.Job{}).
		Where("id = ?", jobID).
		Update("status", jobdomain.JobClosed).Error
}

func (s *Service) SubmitApplication(ctx context.Context, req jobdomain.ApplyRequest) (*jobdomain.Application, error) {
	job, err := s.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != jobdomain.JobOpen {
		return nil, jobdomain.ErrJobClosed
	}

	existing, err := s.apps.Count(ctx, &jobdomain.Application{JobID: req.JobID, UserID: req.UserID})
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, jobdomain.ErrDuplicateApplication
	}

	if _, err := s.enforcer.Consume(ctx, enforcerdomain.ConsumeRequest{
		UserID: req.UserID,
		Action: usagedomain.ActionJobApplication,
		Detail: &usagedomain.JobApplicationDetail{JobID: req.JobID.String()},
		Client: req.Client,
	}); err != nil {
		return nil, err
	}

	skills, err := jobdomain.EncodeSkills(req.Skills)
	if err != nil {
		return nil, err
	}
	app := &jobdomain.Application{
		ID:          s.genID.Generate(),
		JobID:       req.JobID,
		UserID:      req.UserID,
		Headline:    strings.TrimSpace(req.Headline),
		CoverLetter: req.CoverLetter,
		Skills:      skills,
		Years:       req.Years,
		Status:      jobdomain.ApplicationSubmitted,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, err
	}

	// Scoring is fire-and-forget: the application row is already durable
	// and a full queue must not fail the submission.
	if err := s.queue.Enqueue(matchingdomain.Task{
		Job:       s.jobProfile(job),
		Candidate: s.candidate(app),
	}); err != nil {
		s.log.Warn("scoring enqueue failed",
			zap.String("application_id", app.ID.String()),
			zap.Error(err),
		)
	}
	return app, nil
}

func (s *Service) ListApplications(ctx context.Context, employerID, jobID snowflake.ID) ([]jobdomain.Application, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.EmployerID != employerID {
		return nil, jobdomain.ErrNotJobOwner
	}
	var apps []jobdomain.Application
	err = s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("match_score IS NULL, match_score DESC, created_at ASC").
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *Service) TriggerMatching(ctx context.Context, employerID, jobID snowflake.ID, client enforcerdomain.ClientInfo) (*jobdomain.MatchRunResult, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.EmployerID != employerID {
		return nil, jobdomain.ErrNotJobOwner
	}

	var apps []jobdomain.Application
	err = s.db.WithContext(ctx).
		Where("job_id = ? AND status = ? AND scored_at IS NULL", jobID, jobdomain.ApplicationSubmitted).
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, jobdomain.ErrNothingToScore
	}

	if _, err := s.enforcer.Consume(ctx, enforcerdomain.ConsumeRequest{
		UserID: employerID,
		Action: usagedomain.ActionAIMatch,
		Detail: &usagedomain.AIMatchDetail{JobID: jobID.String()},
		Client: client,
	}); err != nil {
		return nil, err
	}

	candidates := make([]matchingdomain.Candidate, 0, len(apps))
	for i := range apps {
		candidates = append(candidates, s.candidate(&apps[i]))
	}
	batchID, queued, err := s.queue.ScoreJobCandidates(ctx, s.jobProfile(job), candidates)
	if err != nil {
		return nil, err
	}
	return &jobdomain.MatchRunResult{BatchID: batchID, Candidates: queued}, nil
}

func (s *Service) jobProfile(job *jobdomain.Job) matchingdomain.JobProfile {
	return matchingdomain.JobProfile{
		JobID:       job.ID,
		Title:       job.Title,
		Description: job.Description,
		Skills:      jobdomain.DecodeSkills(job.Skills),
		MinYears:    job.MinYears,
	}
}

func (s *Service) candidate(app *jobdomain.Application) matchingdomain.Candidate {
	return matchingdomain.Candidate{
		ApplicationID: app.ID,
		UserID:        app.UserID,
		Headline:      app.Headline,
		Summary:       app.CoverLetter,
		Skills:        jobdomain.DecodeSkills(app.Skills),
		Years:         app.Years,
	}
}
