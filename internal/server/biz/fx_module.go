package biz

import (
	"go.uber.org/fx"
)

var Module = fx.Module("biz",
	fx.Provide(NewAbstractService),
	fx.Provide(NewAuthService),
	fx.Provide(NewObservationService),
	fx.Provide(NewAuditService),
	fx.Provide(NewChangeRequestService),
	fx.Provide(NewActionPlanService),
	fx.Provide(NewInviteService),
	fx.Provide(NewAuditTrailService),
)
