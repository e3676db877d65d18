package service

import (
	"context"

	"github.com/MNhat168/careerhub/internal/billingperiod"
	"github.com/MNhat168/careerhub/internal/clock"
	enforcerdomain "github.com/MNhat168/careerhub/internal/enforcer/domain"
	"github.com/MNhat168/careerhub/internal/entitlement"
	obsmetrics "github.com/MNhat168/careerhub/internal/observability/metrics"
	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Table   *entitlement.Table
	SubRepo subscriptiondomain.Repository
	Usage   usagedomain.Service
	Users   enforcerdomain.UserDirectory
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	table   *entitlement.Table
	subRepo subscriptiondomain.Repository
	usage   usagedomain.Service
	users   enforcerdomain.UserDirectory
	metrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) enforcerdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("enforcer.service"),
		clock:   p.Clock,
		table:   p.Table,
		subRepo: p.SubRepo,
		usage:   p.Usage,
		users:   p.Users,
		metrics: p.Metrics,
	}
}

func (s *Service) Check(ctx context.Context, userID snowflake.ID, action usagedomain.Action) (enforcerdomain.Decision, error) {
	decision, _, err := s.decide(ctx, userID, action)
	return decision, err
}

func (s *Service) Consume(ctx context.Context, req enforcerdomain.ConsumeRequest) (enforcerdomain.Decision, error) {
	decision, assignment, err := s.decide(ctx, req.UserID, req.Action)
	if err != nil {
		return decision, err
	}

	outcome := usagedomain.OutcomeAllowed
	if !decision.Allowed {
		outcome = usagedomain.OutcomeBlocked
	}

	_, recordErr := s.usage.Record(ctx, usagedomain.RecordRequest{
		UserID:    req.UserID,
		Action:    req.Action,
		PeriodKey: decision.PeriodKey,
		Outcome:   outcome,
		Detail:    req.Detail,
		ClientIP:  req.Client.IP,
		UserAgent: req.Client.UserAgent,
	})
	if recordErr != nil {
		if decision.Allowed {
			// An allowed action we cannot account for is denied rather
			// than granted for free.
			s.log.Error("ledger append failed, denying",
				zap.String("action", string(req.Action)),
				zap.Int64("user_id", int64(req.UserID)),
				zap.Error(recordErr),
			)
			decision.Allowed = false
			decision.Reason = enforcerdomain.ReasonTrackingUnavailable
			s.metrics.IncEnforcerDecision(string(req.Action), "tracking_failed")
			return decision, enforcerdomain.ErrTrackingUnavailable
		}
		// The attempt was already denied; losing its audit row is not
		// worth failing the response over.
		s.log.Warn("blocked attempt not recorded",
			zap.String("action", string(req.Action)),
			zap.Error(recordErr),
		)
	}

	if decision.Allowed && assignment != nil {
		now := s.clock.Now()
		if err := s.db.WithContext(ctx).
			Model(&subscriptiondomain.PlanAssignment{}).
			Where("id = ?", assignment.ID).
			Update("last_used_at", now).Error; err != nil {
			s.log.Warn("last_used_at not updated", zap.Error(err))
		}
	}

	if !decision.Allowed {
		return decision, &enforcerdomain.LimitExceededError{Decision: decision}
	}
	return decision, nil
}

// decide runs the untracked steps: resolve plan, period, quota, usage.
// Any dependency failure denies by default.
func (s *Service) decide(ctx context.Context, userID snowflake.ID, action usagedomain.Action) (enforcerdomain.Decision, *subscriptiondomain.PlanAssignment, error) {
	denied := enforcerdomain.Decision{
		Allowed: false,
		Reason:  enforcerdomain.ReasonEnforcementUnavailable,
		Action:  action,
	}

	if userID == 0 {
		return denied, nil, enforcerdomain.ErrUserNotFound
	}
	if _, err := usagedomain.ParseAction(string(action)); err != nil {
		return denied, nil, err
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		s.metrics.IncEnforcerDecision(string(action), "error")
		return denied, nil, err
	}
	if !exists {
		return denied, nil, enforcerdomain.ErrUserNotFound
	}

	assignment, err := s.subRepo.FindCurrentByUserID(ctx, s.db, userID)
	if err != nil {
		s.metrics.IncEnforcerDecision(string(action), "error")
		return denied, nil, err
	}

	now := s.clock.Now()

	// No assignment, a pending one, or one past expiry all meter as the
	// free tier. Stored status is never rewritten here.
	tier := subscriptiondomain.TierFree
	var effective *subscriptiondomain.PlanAssignment
	if assignment != nil && assignment.IsEffectivelyActive(now) {
		tier = assignment.Tier
		effective = assignment
	}

	period := billingperiod.Resolve(effective, now)
	quota := s.table.QuotaFor(tier, action)

	decision := enforcerdomain.Decision{
		Action:    action,
		Tier:      tier,
		PeriodKey: period.Key,
	}

	if quota.Unlimited {
		decision.Allowed = true
		decision.Reason = enforcerdomain.ReasonOK
		decision.Limit = entitlement.Unlimited
		decision.Remaining = enforcerdomain.UnlimitedRemaining
		decision.Unlimited = true
		s.metrics.IncEnforcerDecision(string(action), "allowed")
		return decision, effective, nil
	}

	used, err := s.usage.CountInPeriod(ctx, userID, action, period.Key)
	if err != nil {
		s.metrics.IncEnforcerDecision(string(action), "error")
		return denied, nil, err
	}

	decision.CurrentUsage = used
	decision.Limit = quota.Limit
	if used < quota.Limit {
		decision.Allowed = true
		decision.Reason = enforcerdomain.ReasonOK
		decision.Remaining = quota.Limit - used
		s.metrics.IncEnforcerDecision(string(action), "allowed")
		return decision, effective, nil
	}

	decision.Reason = enforcerdomain.ReasonLimitExceeded
	decision.Remaining = 0
	decision.UpgradeRequired = tier != subscriptiondomain.TierEnterprise
	s.metrics.IncEnforcerDecision(string(action), "denied")
	s.metrics.IncLimitExceeded(string(action), string(tier))
	return decision, effective, nil
}
