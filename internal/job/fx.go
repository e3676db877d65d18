package job

import (
	"go.uber.org/fx"

	"github.com/MNhat168/careerhub/internal/job/service"
)

var Module = fx.Module("job.service",
	fx.Provide(
		service.NewService,
		service.NewScoreWriter,
	),
)
