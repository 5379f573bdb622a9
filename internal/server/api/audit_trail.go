package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/audittrail"
	"github.com/looplj/auditflow/internal/server/biz"
)

type AuditTrailHandlersParams struct {
	fx.In

	AuditTrailService *biz.AuditTrailService
}

type AuditTrailHandlers struct {
	AuditTrailService *biz.AuditTrailService
}

func NewAuditTrailHandlers(params AuditTrailHandlersParams) *AuditTrailHandlers {
	return &AuditTrailHandlers{
		AuditTrailService: params.AuditTrailService,
	}
}

type QueryAuditTrailRequest struct {
	EntityType string     `form:"entityType"`
	EntityID   string     `form:"entityId"`
	ActorID    string     `form:"actorId"`
	Action     string     `form:"action"`
	Since      *time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Until      *time.Time `form:"until" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit      int        `form:"limit"`
}

// GET /api/v1/audit-trail.
func (h *AuditTrailHandlers) QueryEntries(c *gin.Context) {
	var req QueryAuditTrailRequest
	if !bindQuery(c, &req) {
		return
	}

	entries, err := h.AuditTrailService.QueryEntries(c.Request.Context(), audittrail.Filter{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		ActorID:    req.ActorID,
		Action:     req.Action,
		Since:      req.Since,
		Until:      req.Until,
		Limit:      req.Limit,
	})
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
