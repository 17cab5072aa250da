package lifecycle

import (
	"github.com/revspine/reconciler/internal/lifecycle/service"
	"go.uber.org/fx"
)

// Module provides the lifecycle segment builder to the fx graph.
var Module = fx.Module("lifecycle",
	fx.Provide(service.NewService),
)
