package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/MNhat168/careerhub/internal/config"
	jobdomain "github.com/MNhat168/careerhub/internal/job/domain"
	"github.com/MNhat168/careerhub/internal/seed"
	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
	userdomain "github.com/MNhat168/careerhub/internal/user/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			err := conn.AutoMigrate(
				&userdomain.User{},
				&subscriptiondomain.Plan{},
				&subscriptiondomain.PlanAssignment{},
				&usagedomain.UsageEvent{},
				&jobdomain.Job{},
				&jobdomain.Application{},
			)
			if err != nil {
				return err
			}
		}

		if err := seed.EnsurePlans(conn); err != nil {
			return err
		}
		return seed.EnsureAdmin(conn)
	}),
)
