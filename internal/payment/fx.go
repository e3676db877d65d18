package payment

import (
	"strings"

	"github.com/MNhat168/careerhub/internal/config"
	"github.com/MNhat168/careerhub/internal/payment/adapters"
	"github.com/MNhat168/careerhub/internal/payment/adapters/paypal"
	"github.com/MNhat168/careerhub/internal/payment/adapters/sandbox"
	"github.com/MNhat168/careerhub/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provideGateway(cfg config.Config, registry *adapters.Registry, log *zap.Logger) (domain.Gateway, error) {
	provider := "paypal"
	if strings.TrimSpace(cfg.PayPal.ClientID) == "" || strings.TrimSpace(cfg.PayPal.ClientSecret) == "" {
		provider = "sandbox"
		log.Warn("payment gateway credentials missing, using sandbox gateway")
	}
	return registry.NewGateway(provider, domain.GatewayConfig{
		BaseURL:      cfg.PayPal.BaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		ReturnURL:    cfg.PayPal.ReturnURL,
		CancelURL:    cfg.PayPal.CancelURL,
	})
}

var Module = fx.Module("payment",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			paypal.NewFactory(),
			sandbox.NewFactory(),
		)
	}),
	fx.Provide(provideGateway),
)
