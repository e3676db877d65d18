// Package seed bootstraps the plan catalog and a default admin account
// so a fresh install is usable without manual setup.
package seed

import (
	"context"
	"errors"
	"os"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	userdomain "github.com/MNhat168/careerhub/internal/user/domain"
)

const (
	defaultAdminEmail    = "admin@careerhub.local"
	defaultAdminPassword = "change-me-on-first-login"
)

func defaultPlans() []subscriptiondomain.Plan {
	return []subscriptiondomain.Plan{
		{Tier: subscriptiondomain.TierFree, Name: "Free", PriceCents: 0, Currency: "USD", DurationDays: 0, TrialDays: 0, Active: true},
		{Tier: subscriptiondomain.TierBasic, Name: "Basic", PriceCents: 999, Currency: "USD", DurationDays: 30, TrialDays: 7, Active: true},
		{Tier: subscriptiondomain.TierPremium, Name: "Premium", PriceCents: 2999, Currency: "USD", DurationDays: 30, TrialDays: 14, Active: true},
		{Tier: subscriptiondomain.TierEnterprise, Name: "Enterprise", PriceCents: 19999, Currency: "USD", DurationDays: 30, TrialDays: 0, Active: true},
	}
}

// EnsurePlans inserts any missing catalog tier. Existing rows are left
// untouched so operators can reprice without a fight against startup.
func EnsurePlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, plan := range defaultPlans() {
			var count int64
			if err := tx.Model(&subscriptiondomain.Plan{}).
				Where("tier = ?", plan.Tier).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			plan.ID = node.Generate()
			if err := tx.Create(&plan).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureAdmin creates the default admin user once. Credentials come from
// ADMIN_EMAIL / ADMIN_PASSWORD when set.
func EnsureAdmin(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = defaultAdminEmail
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
	}

	var count int64
	if err := db.Model(&userdomain.User{}).
		Where("role = ?", userdomain.RoleAdmin).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Create(&userdomain.User{
		ID:           node.Generate(),
		Email:        email,
		Name:         "Administrator",
		Role:         userdomain.RoleAdmin,
		PasswordHash: string(hash),
		Active:       true,
	}).Error
}
