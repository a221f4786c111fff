package withdrawal

import (
	"go.uber.org/fx"

	"github.com/counselhub/counselhub/internal/withdrawal/repository"
	"github.com/counselhub/counselhub/internal/withdrawal/service"
)

var Module = fx.Module("withdrawal.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
