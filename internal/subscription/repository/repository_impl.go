package repository

import (
	"context"
	"errors"

	"github.com/MNhat168/careerhub/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repositoryImpl struct{}

func Provide() domain.Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Insert(ctx context.Context, db *gorm.DB, assignment *domain.PlanAssignment) error {
	return db.WithContext(ctx).Create(assignment).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PlanAssignment, error) {
	var assignment domain.PlanAssignment
	err := db.WithContext(ctx).Where("id = ?", id).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// FindCurrentByUserID returns the user's latest non-expired assignment,
// if any. Cancelled rows are included because a cancelled plan keeps its
// access until expiry; callers judge effectiveness via IsEffectivelyActive.
func (r *repositoryImpl) FindCurrentByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.PlanAssignment, error) {
	var assignment domain.PlanAssignment
	err := db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []domain.AssignmentStatus{
			domain.StatusTrial,
			domain.StatusPending,
			domain.StatusActive,
			domain.StatusCancelled,
		}).
		Order("created_at DESC").
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *repositoryImpl) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.PlanAssignment, error) {
	var assignment domain.PlanAssignment
	err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *repositoryImpl) HasTrialHistory(ctx context.Context, db *gorm.DB, userID snowflake.ID) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).
		Model(&domain.PlanAssignment{}).
		Where("user_id = ? AND trial = ?", userID, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) UpdateVersioned(ctx context.Context, db *gorm.DB, assignment *domain.PlanAssignment) (bool, error) {
	currentVersion := assignment.Version
	assignment.Version = currentVersion + 1

	result := db.WithContext(ctx).
		Model(&domain.PlanAssignment{}).
		Where("id = ? AND version = ?", assignment.ID, currentVersion).
		Updates(map[string]any{
			"tier":              assignment.Tier,
			"status":            assignment.Status,
			"trial":             assignment.Trial,
			"auto_renew":        assignment.AutoRenew,
			"start_at":          assignment.StartAt,
			"expires_at":        assignment.ExpiresAt,
			"counters_reset_at": assignment.CountersResetAt,
			"last_used_at":      assignment.LastUsedAt,
			"order_id":          assignment.OrderID,
			"payment_status":    assignment.PaymentStatus,
			"cancel_reason":     assignment.CancelReason,
			"canceled_at":       assignment.CanceledAt,
			"version":           assignment.Version,
			"updated_at":        assignment.UpdatedAt,
		})
	if result.Error != nil {
		assignment.Version = currentVersion
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		assignment.Version = currentVersion
		return false, nil
	}
	return true, nil
}

func (r *repositoryImpl) FindPlanByTier(ctx context.Context, db *gorm.DB, tier domain.Tier) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Where("tier = ? AND active = ?", tier, true).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repositoryImpl) ListPlans(ctx context.Context, db *gorm.DB) ([]domain.Plan, error) {
	var plans []domain.Plan
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("price_cents ASC").
		Find(&plans).Error
	return plans, err
}
