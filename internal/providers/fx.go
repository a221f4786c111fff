package providers

import (
	"go.uber.org/fx"

	"github.com/counselhub/counselhub/internal/providers/email"
	"github.com/counselhub/counselhub/internal/providers/pdf"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
