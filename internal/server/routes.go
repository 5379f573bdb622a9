package server

import (
	"github.com/gin-contrib/cors"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/server/api"
	"github.com/looplj/auditflow/internal/server/biz"
	"github.com/looplj/auditflow/internal/server/middleware"
	"github.com/looplj/auditflow/internal/workflow"
)

type Handlers struct {
	fx.In

	System        *api.SystemHandlers
	Observation   *api.ObservationHandlers
	Audit         *api.AuditHandlers
	ChangeRequest *api.ChangeRequestHandlers
	ActionPlan    *api.ActionPlanHandlers
	Invite        *api.InviteHandlers
	AuditTrail    *api.AuditTrailHandlers
}

type Services struct {
	fx.In

	AuthService *biz.AuthService
}

func SetupRoutes(server *Server, handlers Handlers, services Services) {
	server.Use(middleware.AccessLog())
	server.Use(middleware.WithLoggingTracing(server.Config.Trace))
	server.Use(middleware.WithMetrics())

	// Setup CORS middleware at server level if enabled
	if server.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = server.Config.CORS.AllowedOrigins
		corsConfig.AllowMethods = server.Config.CORS.AllowedMethods
		corsConfig.AllowHeaders = server.Config.CORS.AllowedHeaders
		corsConfig.ExposeHeaders = server.Config.CORS.ExposedHeaders
		corsConfig.AllowCredentials = server.Config.CORS.AllowCredentials
		corsConfig.MaxAge = server.Config.CORS.MaxAge

		corsHandler := cors.New(corsConfig)
		server.Use(corsHandler)
		server.OPTIONS("*any", corsHandler)
	}

	base := server.Group(server.Config.BasePath, middleware.WithTimeout(server.Config.RequestTimeout))

	// Health check and version - no authentication required
	base.GET("/health", handlers.System.Health)
	base.GET("/version", handlers.System.Version)

	v1 := base.Group("/api/v1", middleware.WithJWTAuth(services.AuthService))
	{
		audits := v1.Group("/audits")
		audits.POST("", handlers.Audit.CreateAudit)
		audits.GET("", handlers.Audit.ListAudits)
		audits.GET("/:id", handlers.Audit.GetAudit)
		audits.PATCH("/:id", handlers.Audit.UpdateAudit)
		audits.PUT("/:id/head", handlers.Audit.SetAuditHead)
		audits.POST("/:id/lock", handlers.Audit.LockAudit)
		audits.POST("/:id/unlock", handlers.Audit.UnlockAudit)
		audits.POST("/:id/complete", handlers.Audit.CompleteAudit)
	}

	{
		observations := v1.Group("/observations")
		observations.POST("", handlers.Observation.CreateObservation)
		observations.GET("", handlers.Observation.ListObservations)
		observations.GET("/:id", handlers.Observation.GetObservation)
		observations.PATCH("/:id", handlers.Observation.UpdateFields)
		observations.PUT("/:id/locked-fields", handlers.Observation.SetLockedFields)
		observations.GET("/:id/history", handlers.Observation.History)

		observations.POST("/:id/submit", handlers.Observation.Transition(workflow.Submit))
		observations.POST("/:id/approve", handlers.Observation.Transition(workflow.Approve))
		observations.POST("/:id/reject", handlers.Observation.Transition(workflow.Reject))
		observations.POST("/:id/publish", handlers.Observation.Transition(workflow.Publish))
		observations.POST("/:id/unpublish", handlers.Observation.Transition(workflow.Unpublish))

		observations.POST("/bulk/approve", handlers.Observation.BulkTransition(workflow.Approve))
		observations.POST("/bulk/reject", handlers.Observation.BulkTransition(workflow.Reject))
		observations.POST("/bulk/publish", handlers.Observation.BulkTransition(workflow.Publish))
		observations.POST("/bulk/unpublish", handlers.Observation.BulkTransition(workflow.Unpublish))

		observations.POST("/:id/change-requests", handlers.ChangeRequest.CreateChangeRequest)
		observations.GET("/:id/change-requests", handlers.ChangeRequest.ListChangeRequests)
		observations.POST("/:id/action-plans", handlers.ActionPlan.CreateActionPlan)
		observations.GET("/:id/action-plans", handlers.ActionPlan.ListActionPlans)
	}

	{
		changeRequests := v1.Group("/change-requests")
		changeRequests.GET("/:id", handlers.ChangeRequest.GetChangeRequest)
		changeRequests.POST("/:id/approve", handlers.ChangeRequest.ApproveChangeRequest)
		changeRequests.POST("/:id/deny", handlers.ChangeRequest.DenyChangeRequest)
	}

	v1.PATCH("/action-plans/:id", handlers.ActionPlan.UpdateActionPlan)

	v1.POST("/invites", handlers.Invite.IssueInvite)
	v1.POST("/invites/redeem", handlers.Invite.RedeemInvite)

	v1.GET("/audit-trail", handlers.AuditTrail.QueryEntries)
}
