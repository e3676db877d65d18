package usage

import (
	"github.com/MNhat168/careerhub/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(
		service.NewService,
	),
)
