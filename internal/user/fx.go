package user

import (
	enforcerdomain "github.com/MNhat168/careerhub/internal/enforcer/domain"
	"github.com/MNhat168/careerhub/internal/user/domain"
	"github.com/MNhat168/careerhub/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(
		service.NewService,
		func(svc domain.Service) enforcerdomain.UserDirectory { return svc },
	),
)
