package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/server/biz"
	"github.com/looplj/auditflow/internal/workflow"
)

type ObservationHandlersParams struct {
	fx.In

	ObservationService *biz.ObservationService
}

type ObservationHandlers struct {
	ObservationService *biz.ObservationService
}

func NewObservationHandlers(params ObservationHandlersParams) *ObservationHandlers {
	return &ObservationHandlers{
		ObservationService: params.ObservationService,
	}
}

type ListObservationsRequest struct {
	AuditID        string `form:"auditId"`
	ApprovalStatus string `form:"approvalStatus"`
	IsPublished    *bool  `form:"isPublished"`
	Limit          int    `form:"limit"`
	Offset         int    `form:"offset"`
}

type TransitionRequest struct {
	Comment string `json:"comment"`
}

type BulkTransitionRequest struct {
	IDs     []string `json:"ids" binding:"required"`
	Comment string   `json:"comment"`
}

type LockedFieldsRequest struct {
	Fields []string `json:"fields"`
}

// CreateObservation creates a draft observation.
// POST /api/v1/observations.
func (h *ObservationHandlers) CreateObservation(c *gin.Context) {
	var req biz.CreateObservationInput
	if !bindJSON(c, &req) {
		return
	}

	update, err := h.ObservationService.CreateObservation(c.Request.Context(), req)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusCreated, update)
}

// GET /api/v1/observations/:id.
func (h *ObservationHandlers) GetObservation(c *gin.Context) {
	obs, err := h.ObservationService.GetObservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, obs)
}

// GET /api/v1/observations.
func (h *ObservationHandlers) ListObservations(c *gin.Context) {
	var req ListObservationsRequest
	if !bindQuery(c, &req) {
		return
	}

	list, err := h.ObservationService.ListObservations(c.Request.Context(), objects.ObservationFilter{
		AuditID:        req.AuditID,
		ApprovalStatus: objects.ApprovalStatus(req.ApprovalStatus),
		IsPublished:    req.IsPublished,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"observations": list})
}

// UpdateFields applies a partial edit, the body is a JSON object of field values.
// PATCH /api/v1/observations/:id.
func (h *ObservationHandlers) UpdateFields(c *gin.Context) {
	var raw json.RawMessage
	if !bindJSON(c, &raw) {
		return
	}

	update, err := h.ObservationService.UpdateFields(c.Request.Context(), c.Param("id"), raw)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, update)
}

// PUT /api/v1/observations/:id/locked-fields.
func (h *ObservationHandlers) SetLockedFields(c *gin.Context) {
	var req LockedFieldsRequest
	if !bindJSON(c, &req) {
		return
	}

	obs, err := h.ObservationService.SetLockedFields(c.Request.Context(), c.Param("id"), req.Fields)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, obs)
}

// GET /api/v1/observations/:id/history.
func (h *ObservationHandlers) History(c *gin.Context) {
	history, err := h.ObservationService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"approvals": history})
}

// Transition returns the handler of POST /api/v1/observations/:id/<transition>.
func (h *ObservationHandlers) Transition(t workflow.Transition) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransitionRequest
		if !bindOptionalJSON(c, &req) {
			return
		}

		obs, err := h.ObservationService.Transition(c.Request.Context(), t, c.Param("id"), req.Comment)
		if err != nil {
			JSONError(c, err)
			return
		}

		c.JSON(http.StatusOK, obs)
	}
}

// BulkTransition returns the handler of POST /api/v1/observations/bulk/<transition>.
// A rejected batch answers 400 with one failure per offending id.
func (h *ObservationHandlers) BulkTransition(t workflow.Transition) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BulkTransitionRequest
		if !bindJSON(c, &req) {
			return
		}

		result, err := h.ObservationService.BulkTransition(c.Request.Context(), t, req.IDs, req.Comment)
		if err != nil {
			JSONError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
