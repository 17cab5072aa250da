package reconciliation

import (
	"github.com/revspine/reconciler/internal/reconciliation/service"
	"go.uber.org/fx"
)

// Module provides the reconciliation engine to the fx graph.
var Module = fx.Module("reconciliation",
	fx.Provide(service.NewService),
)
