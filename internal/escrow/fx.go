package escrow

import (
	"go.uber.org/fx"

	"github.com/counselhub/counselhub/internal/escrow/service"
)

var Module = fx.Module("escrow.service",
	fx.Provide(service.NewService),
)
