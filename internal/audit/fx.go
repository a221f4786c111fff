package audit

import (
	"github.com/counselhub/counselhub/internal/audit/repository"
	"github.com/counselhub/counselhub/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
