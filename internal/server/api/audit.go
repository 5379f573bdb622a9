package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/server/biz"
)

type AuditHandlersParams struct {
	fx.In

	AuditService *biz.AuditService
}

type AuditHandlers struct {
	AuditService *biz.AuditService
}

func NewAuditHandlers(params AuditHandlersParams) *AuditHandlers {
	return &AuditHandlers{
		AuditService: params.AuditService,
	}
}

type SetAuditHeadRequest struct {
	UserID string `json:"userId"`
}

// POST /api/v1/audits.
func (h *AuditHandlers) CreateAudit(c *gin.Context) {
	var req biz.CreateAuditInput
	if !bindJSON(c, &req) {
		return
	}

	audit, err := h.AuditService.CreateAudit(c.Request.Context(), req)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusCreated, audit)
}

// GET /api/v1/audits.
func (h *AuditHandlers) ListAudits(c *gin.Context) {
	var req biz.ListAuditsInput
	if !bindQuery(c, &req) {
		return
	}

	audits, err := h.AuditService.ListAudits(c.Request.Context(), req)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": audits})
}

// GET /api/v1/audits/:id.
func (h *AuditHandlers) GetAudit(c *gin.Context) {
	audit, err := h.AuditService.GetAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, audit)
}

// PATCH /api/v1/audits/:id.
func (h *AuditHandlers) UpdateAudit(c *gin.Context) {
	var req biz.UpdateAuditInput
	if !bindJSON(c, &req) {
		return
	}

	audit, err := h.AuditService.UpdateAudit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, audit)
}

// PUT /api/v1/audits/:id/head, an empty user id clears the head.
func (h *AuditHandlers) SetAuditHead(c *gin.Context) {
	var req SetAuditHeadRequest
	if !bindJSON(c, &req) {
		return
	}

	audit, err := h.AuditService.SetAuditHead(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, audit)
}

// POST /api/v1/audits/:id/lock.
func (h *AuditHandlers) LockAudit(c *gin.Context) {
	h.respond(c, h.AuditService.LockAudit)
}

// POST /api/v1/audits/:id/unlock.
func (h *AuditHandlers) UnlockAudit(c *gin.Context) {
	h.respond(c, h.AuditService.UnlockAudit)
}

// POST /api/v1/audits/:id/complete.
func (h *AuditHandlers) CompleteAudit(c *gin.Context) {
	h.respond(c, h.AuditService.CompleteAudit)
}

func (h *AuditHandlers) respond(c *gin.Context, op func(ctx context.Context, id string) (*objects.Audit, error)) {
	audit, err := op(c.Request.Context(), c.Param("id"))
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, audit)
}
