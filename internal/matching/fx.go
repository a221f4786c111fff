package matching

import (
	"go.uber.org/fx"

	"github.com/counselhub/counselhub/internal/matching/repository"
	"github.com/counselhub/counselhub/internal/matching/service"
)

var Module = fx.Module("matching.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
