package api

import (
	"go.uber.org/fx"
)

var Module = fx.Module("api",
	fx.Provide(NewSystemHandlers),
	fx.Provide(NewObservationHandlers),
	fx.Provide(NewAuditHandlers),
	fx.Provide(NewChangeRequestHandlers),
	fx.Provide(NewActionPlanHandlers),
	fx.Provide(NewInviteHandlers),
	fx.Provide(NewAuditTrailHandlers),
)
