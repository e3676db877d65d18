package matching

import (
	"context"

	"go.uber.org/fx"

	"github.com/MNhat168/careerhub/internal/matching/domain"
	"github.com/MNhat168/careerhub/internal/matching/service"
)

var Module = fx.Module("matching",
	fx.Provide(
		service.NewQueue,
		func(q *service.Queue) domain.Queue { return q },
	),
	fx.Invoke(runQueue),
)

func runQueue(lc fx.Lifecycle, q *service.Queue) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			q.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			q.Stop()
			return nil
		},
	})
}
