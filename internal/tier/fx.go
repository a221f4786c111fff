package tier

import (
	"context"

	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	"github.com/counselhub/counselhub/internal/tier/repository"
	"github.com/counselhub/counselhub/internal/tier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tier.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) tierdomain.Service { return s }),
	fx.Invoke(seedDefaults),
)

func seedDefaults(lc fx.Lifecycle, s *service.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.SeedDefaults(ctx)
		},
	})
}
