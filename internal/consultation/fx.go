package consultation

import (
	"go.uber.org/fx"

	"github.com/counselhub/counselhub/internal/consultation/repository"
	"github.com/counselhub/counselhub/internal/consultation/service"
)

var Module = fx.Module("consultation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
