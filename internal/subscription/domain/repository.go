package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, assignment *PlanAssignment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PlanAssignment, error)
	FindCurrentByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*PlanAssignment, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*PlanAssignment, error)
	HasTrialHistory(ctx context.Context, db *gorm.DB, userID snowflake.ID) (bool, error)
	// UpdateVersioned writes the assignment guarded by the optimistic
	// version check; it returns false when the row moved underneath us.
	UpdateVersioned(ctx context.Context, db *gorm.DB, assignment *PlanAssignment) (bool, error)
	FindPlanByTier(ctx context.Context, db *gorm.DB, tier Tier) (*Plan, error)
	ListPlans(ctx context.Context, db *gorm.DB) ([]Plan, error)
}
