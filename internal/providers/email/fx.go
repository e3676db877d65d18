package email

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/MNhat168/careerhub/internal/config"
	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	userdomain "github.com/MNhat168/careerhub/internal/user/domain"
)

var Module = fx.Module("providers.email",
	fx.Provide(
		NewFromConfig,
		func(p Provider, users userdomain.Service, log *zap.Logger) subscriptiondomain.Notifier {
			return NewSubscriptionNotifier(p, users, log)
		},
	),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.SMTP.Host == "" {
		log.Named("email").Info("smtp not configured, notifications disabled")
		return &NoOpProvider{}
	}
	return NewSMTP(Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}
