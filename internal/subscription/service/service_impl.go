package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MNhat168/careerhub/internal/clock"
	obsmetrics "github.com/MNhat168/careerhub/internal/observability/metrics"
	paymentdomain "github.com/MNhat168/careerhub/internal/payment/domain"
	"github.com/MNhat168/careerhub/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	billingPeriodMonthly = "monthly"
	billingPeriodYearly  = "yearly"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Gateway  paymentdomain.Gateway
	Notifier domain.Notifier     `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	gateway  paymentdomain.Gateway
	notifier domain.Notifier
	metrics  *obsmetrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("subscription.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		gateway:  p.Gateway,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return s.repo.ListPlans(ctx, s.db)
}

func (s *Service) GetPlan(ctx context.Context, tier domain.Tier) (*domain.Plan, error) {
	if !domain.ValidTier(tier) {
		return nil, domain.ErrInvalidTier
	}
	plan, err := s.repo.FindPlanByTier(ctx, s.db, tier)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) GetCurrent(ctx context.Context, userID snowflake.ID) (*domain.PlanAssignment, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	assignment, err := s.repo.FindCurrentByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return assignment, nil
}

// ActivateTrial starts the tier's trial window. A user gets at most one
// trial per lifetime, across all tiers: any historical trial row blocks
// a second one.
func (s *Service) ActivateTrial(ctx context.Context, userID snowflake.ID, tier domain.Tier) (*domain.PlanAssignment, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if !domain.ValidTier(tier) || tier == domain.TierFree {
		return nil, domain.ErrInvalidTier
	}

	plan, err := s.GetPlan(ctx, tier)
	if err != nil {
		return nil, err
	}
	if plan.TrialDays <= 0 {
		return nil, domain.ErrTrialUnavailable
	}

	now := s.clock.Now()
	current, err := s.repo.FindCurrentByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if current != nil && (current.IsEffectivelyActive(now) || current.Status == domain.StatusPending) {
		return nil, domain.ErrAlreadySubscribed
	}

	used, err := s.repo.HasTrialHistory(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, domain.ErrTrialAlreadyUsed
	}

	s.markExpiredIfStale(ctx, current, now)

	assignment := &domain.PlanAssignment{
		ID:            s.genID.Generate(),
		UserID:        userID,
		Tier:          tier,
		Status:        domain.StatusTrial,
		Trial:         true,
		StartAt:       now,
		ExpiresAt:     now.AddDate(0, 0, plan.TrialDays),
		PaymentStatus: domain.PaymentPending,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, assignment); err != nil {
		return nil, err
	}

	s.log.Info("trial activated",
		zap.Int64("user_id", int64(userID)),
		zap.String("tier", string(tier)),
		zap.Time("expires_at", assignment.ExpiresAt),
	)
	s.notifyActivated(ctx, assignment)
	return assignment, nil
}

// Subscribe opens a paid subscription. Zero-price plans activate
// immediately; priced plans create a gateway order and stay pending
// until HandleCapture confirms payment.
func (s *Service) Subscribe(ctx context.Context, req domain.SubscribeRequest) (*domain.SubscribeResponse, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if !domain.ValidTier(req.Tier) {
		return nil, domain.ErrInvalidTier
	}

	plan, err := s.GetPlan(ctx, req.Tier)
	if err != nil {
		return nil, err
	}

	months, err := billingMonths(req.BillingPeriod)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	current, err := s.repo.FindCurrentByUserID(ctx, s.db, req.UserID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.IsEffectivelyActive(now) && current.Status != domain.StatusCancelled {
		return nil, domain.ErrAlreadySubscribed
	}
	if current != nil && current.Status != domain.StatusPending {
		s.markExpiredIfStale(ctx, current, now)
	}

	duration := time.Duration(plan.DurationDays) * 24 * time.Hour * time.Duration(months)
	if plan.DurationDays <= 0 {
		// Perpetual plan (free tier catalog row).
		duration = 0
	}

	if plan.PriceCents == 0 {
		assignment := &domain.PlanAssignment{
			ID:            s.genID.Generate(),
			UserID:        req.UserID,
			Tier:          req.Tier,
			Status:        domain.StatusActive,
			StartAt:       now,
			ExpiresAt:     expiry(now, duration),
			PaymentStatus: domain.PaymentPaid,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, s.db, assignment); err != nil {
			return nil, err
		}
		s.notifyActivated(ctx, assignment)
		return &domain.SubscribeResponse{Assignment: assignment}, nil
	}

	amount := plan.PriceCents * int64(months)
	order, err := s.gateway.CreateOrder(ctx, paymentdomain.CreateOrderRequest{
		ReferenceID: fmt.Sprintf("user-%d-%s", req.UserID, req.Tier),
		AmountCents: amount,
		Currency:    plan.Currency,
		Description: fmt.Sprintf("%s plan (%s)", plan.Name, normalizeBillingPeriod(req.BillingPeriod)),
	})
	if err != nil {
		s.metrics.IncPaymentEvent(s.gateway.Provider(), "order_failed")
		return nil, err
	}
	s.metrics.IncPaymentEvent(s.gateway.Provider(), "order_created")

	// A still-pending assignment is reused: the old order is superseded
	// by the fresh one rather than piling up pending rows.
	if current != nil && current.Status == domain.StatusPending {
		current.Tier = req.Tier
		current.StartAt = now
		current.ExpiresAt = expiry(now, duration)
		current.OrderID = &order.ID
		current.PaymentStatus = domain.PaymentPending
		current.UpdatedAt = now
		ok, err := s.repo.UpdateVersioned(ctx, s.db, current)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrVersionConflict
		}
		return &domain.SubscribeResponse{
			Assignment:  current,
			OrderID:     order.ID,
			ApprovalURL: order.ApprovalURL,
		}, nil
	}

	assignment := &domain.PlanAssignment{
		ID:            s.genID.Generate(),
		UserID:        req.UserID,
		Tier:          req.Tier,
		Status:        domain.StatusPending,
		StartAt:       now,
		ExpiresAt:     expiry(now, duration),
		OrderID:       &order.ID,
		PaymentStatus: domain.PaymentPending,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, assignment); err != nil {
		return nil, err
	}

	s.log.Info("subscription pending capture",
		zap.Int64("user_id", int64(req.UserID)),
		zap.String("tier", string(req.Tier)),
		zap.String("order_id", order.ID),
	)
	return &domain.SubscribeResponse{
		Assignment:  assignment,
		OrderID:     order.ID,
		ApprovalURL: order.ApprovalURL,
	}, nil
}

// HandleCapture confirms payment for a pending subscription. Activation
// happens exactly once per order; replays surface ErrAlreadyCaptured.
func (s *Service) HandleCapture(ctx context.Context, orderID string) (*domain.CaptureResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, paymentdomain.ErrOrderNotFound
	}

	assignment, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	if assignment.PaymentStatus == domain.PaymentPaid {
		return nil, paymentdomain.ErrAlreadyCaptured
	}
	if assignment.Status != domain.StatusPending {
		return nil, domain.ErrInvalidTransition
	}

	result, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrDeclined) {
			now := s.clock.Now()
			assignment.PaymentStatus = domain.PaymentFailed
			assignment.UpdatedAt = now
			if _, updateErr := s.repo.UpdateVersioned(ctx, s.db, assignment); updateErr != nil {
				s.log.Warn("payment_status not recorded", zap.Error(updateErr))
			}
			s.metrics.IncPaymentEvent(s.gateway.Provider(), "capture_declined")
		}
		return nil, err
	}

	now := s.clock.Now()
	window := assignment.ExpiresAt.Sub(assignment.StartAt)

	assignment.Status = domain.StatusActive
	assignment.StartAt = now
	assignment.ExpiresAt = expiry(now, window)
	assignment.CountersResetAt = &now
	assignment.PaymentStatus = domain.PaymentPaid
	assignment.UpdatedAt = now

	ok, err := s.repo.UpdateVersioned(ctx, s.db, assignment)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent capture won the race; this one did not activate twice.
		return nil, paymentdomain.ErrAlreadyCaptured
	}

	s.metrics.IncPaymentEvent(s.gateway.Provider(), "capture_succeeded")
	s.log.Info("subscription activated",
		zap.Int64("user_id", int64(assignment.UserID)),
		zap.String("tier", string(assignment.Tier)),
		zap.String("order_id", orderID),
		zap.String("capture_id", result.CaptureID),
	)
	s.notifyActivated(ctx, assignment)

	return &domain.CaptureResponse{
		Assignment: assignment,
		PaymentID:  result.CaptureID,
		Amount:     result.AmountCents,
	}, nil
}

// Upgrade switches an active subscription to a new tier. The window
// restarts at now and counters reset; remaining time on the old tier is
// not prorated.
func (s *Service) Upgrade(ctx context.Context, userID snowflake.ID, newTier domain.Tier) (*domain.PlanAssignment, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if !domain.ValidTier(newTier) || newTier == domain.TierFree {
		return nil, domain.ErrInvalidTier
	}

	plan, err := s.GetPlan(ctx, newTier)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	current, err := s.repo.FindCurrentByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	if current.Status == domain.StatusCancelled || !current.IsEffectivelyActive(now) {
		// Expired or cancelled plans are re-subscribed, not upgraded.
		return nil, domain.ErrInvalidTransition
	}
	if current.Tier == newTier {
		return nil, domain.ErrAlreadySubscribed
	}

	current.Tier = newTier
	current.Status = domain.StatusActive
	current.Trial = false
	current.StartAt = now
	current.ExpiresAt = now.AddDate(0, 0, plan.DurationDays)
	current.CountersResetAt = &now
	current.UpdatedAt = now

	ok, err := s.repo.UpdateVersioned(ctx, s.db, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrVersionConflict
	}

	s.log.Info("subscription upgraded",
		zap.Int64("user_id", int64(userID)),
		zap.String("tier", string(newTier)),
	)
	return current, nil
}

// Cancel turns off renewal. Access runs until ExpiresAt; this records the
// intent, it does not cut entitlements at the moment of the call.
func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (*domain.PlanAssignment, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	current, err := s.repo.FindCurrentByUserID(ctx, s.db, req.UserID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	switch current.Status {
	case domain.StatusTrial, domain.StatusActive, domain.StatusPending:
	default:
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	reason := strings.TrimSpace(req.Reason)

	current.Status = domain.StatusCancelled
	current.AutoRenew = false
	current.CanceledAt = &now
	if reason != "" {
		current.CancelReason = &reason
	}
	current.UpdatedAt = now

	ok, err := s.repo.UpdateVersioned(ctx, s.db, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrVersionConflict
	}

	s.log.Info("subscription cancelled",
		zap.Int64("user_id", int64(req.UserID)),
		zap.String("reason", reason),
	)
	s.notifyCancelled(ctx, current)
	return current, nil
}

// ResetUsage is the administrative counter reset: it advances the
// CountersResetAt watermark, which opens a fresh ledger window without
// touching any recorded events.
func (s *Service) ResetUsage(ctx context.Context, userID snowflake.ID, at time.Time) (*domain.PlanAssignment, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	now := s.clock.Now()
	if at.IsZero() {
		at = now
	}

	current, err := s.repo.FindCurrentByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if current == nil || !current.IsEffectivelyActive(now) {
		return nil, domain.ErrSubscriptionNotFound
	}

	current.CountersResetAt = &at
	current.UpdatedAt = now

	ok, err := s.repo.UpdateVersioned(ctx, s.db, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrVersionConflict
	}
	return current, nil
}

// markExpiredIfStale settles a row whose window already ran out. Expiry
// is otherwise lazy (derived on read); only lifecycle writes that are
// about to insert a successor row settle the stored status.
func (s *Service) markExpiredIfStale(ctx context.Context, assignment *domain.PlanAssignment, now time.Time) {
	if assignment == nil || assignment.IsEffectivelyActive(now) {
		return
	}
	switch assignment.Status {
	case domain.StatusTrial, domain.StatusActive, domain.StatusCancelled:
	default:
		return
	}
	assignment.Status = domain.StatusExpired
	assignment.UpdatedAt = now
	if _, err := s.repo.UpdateVersioned(ctx, s.db, assignment); err != nil {
		s.log.Warn("stale assignment not settled", zap.Error(err))
	}
}

func (s *Service) notifyActivated(ctx context.Context, assignment *domain.PlanAssignment) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyActivated(ctx, assignment)
}

func (s *Service) notifyCancelled(ctx context.Context, assignment *domain.PlanAssignment) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyCancelled(ctx, assignment)
}

func billingMonths(period string) (int, error) {
	switch normalizeBillingPeriod(period) {
	case billingPeriodMonthly:
		return 1, nil
	case billingPeriodYearly:
		return 12, nil
	default:
		return 0, domain.ErrInvalidBillingPeriod
	}
}

func normalizeBillingPeriod(period string) string {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		return billingPeriodMonthly
	}
	return period
}

func expiry(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		// Perpetual assignment; far-future expiry keeps comparisons simple.
		return now.AddDate(100, 0, 0)
	}
	return now.Add(window)
}
