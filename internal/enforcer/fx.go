package enforcer

import (
	"github.com/MNhat168/careerhub/internal/enforcer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("enforcer.service",
	fx.Provide(
		service.NewService,
	),
)
