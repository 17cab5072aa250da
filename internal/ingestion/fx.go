package ingestion

import (
	"github.com/revspine/reconciler/internal/ingestion/service"
	"go.uber.org/fx"
)

// Module provides the ingestion validation service to the fx graph.
var Module = fx.Module("ingestion",
	fx.Provide(service.NewService),
)
