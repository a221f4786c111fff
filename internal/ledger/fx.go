package ledger

import (
	"go.uber.org/fx"

	"github.com/counselhub/counselhub/internal/ledger/repository"
	"github.com/counselhub/counselhub/internal/ledger/service"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
