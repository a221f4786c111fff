package quota

import (
	"go.uber.org/fx"

	"github.com/counselhub/counselhub/internal/quota/repository"
	"github.com/counselhub/counselhub/internal/quota/service"
)

var Module = fx.Module("quota",
	fx.Provide(
		repository.NewStoreCounter,
		service.NewService,
	),
)
