package scoring

import (
	"github.com/revspine/reconciler/internal/scoring/service"
	"go.uber.org/fx"
)

// Module provides the structural integrity scoring service to the fx graph.
var Module = fx.Module("scoring",
	fx.Provide(service.NewService),
)
