package subscription

import (
	"github.com/MNhat168/careerhub/internal/subscription/repository"
	"github.com/MNhat168/careerhub/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
