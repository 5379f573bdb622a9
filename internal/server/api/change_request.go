package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/objects"
	"github.com/looplj/auditflow/internal/server/biz"
)

type ChangeRequestHandlersParams struct {
	fx.In

	ChangeRequestService *biz.ChangeRequestService
}

type ChangeRequestHandlers struct {
	ChangeRequestService *biz.ChangeRequestService
}

func NewChangeRequestHandlers(params ChangeRequestHandlersParams) *ChangeRequestHandlers {
	return &ChangeRequestHandlers{
		ChangeRequestService: params.ChangeRequestService,
	}
}

type ListChangeRequestsRequest struct {
	Status string `form:"status"`
}

type DecisionRequest struct {
	Comment string `json:"comment"`
}

// POST /api/v1/observations/:id/change-requests.
func (h *ChangeRequestHandlers) CreateChangeRequest(c *gin.Context) {
	var req biz.CreateChangeRequestInput
	if !bindJSON(c, &req) {
		return
	}

	cr, err := h.ChangeRequestService.CreateChangeRequest(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cr)
}

// GET /api/v1/observations/:id/change-requests.
func (h *ChangeRequestHandlers) ListChangeRequests(c *gin.Context) {
	var req ListChangeRequestsRequest
	if !bindQuery(c, &req) {
		return
	}

	list, err := h.ChangeRequestService.ListChangeRequests(c.Request.Context(), c.Param("id"), objects.ChangeRequestStatus(req.Status))
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"changeRequests": list})
}

// GET /api/v1/change-requests/:id.
func (h *ChangeRequestHandlers) GetChangeRequest(c *gin.Context) {
	cr, err := h.ChangeRequestService.GetChangeRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, cr)
}

// POST /api/v1/change-requests/:id/approve.
func (h *ChangeRequestHandlers) ApproveChangeRequest(c *gin.Context) {
	var req DecisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	cr, err := h.ChangeRequestService.ApproveChangeRequest(c.Request.Context(), c.Param("id"), req.Comment)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, cr)
}

// POST /api/v1/change-requests/:id/deny.
func (h *ChangeRequestHandlers) DenyChangeRequest(c *gin.Context) {
	var req DecisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	cr, err := h.ChangeRequestService.DenyChangeRequest(c.Request.Context(), c.Param("id"), req.Comment)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, cr)
}
