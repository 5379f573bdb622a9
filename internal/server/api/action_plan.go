package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/server/biz"
)

type ActionPlanHandlersParams struct {
	fx.In

	ActionPlanService *biz.ActionPlanService
}

type ActionPlanHandlers struct {
	ActionPlanService *biz.ActionPlanService
}

func NewActionPlanHandlers(params ActionPlanHandlersParams) *ActionPlanHandlers {
	return &ActionPlanHandlers{
		ActionPlanService: params.ActionPlanService,
	}
}

// POST /api/v1/observations/:id/action-plans.
func (h *ActionPlanHandlers) CreateActionPlan(c *gin.Context) {
	var req biz.ActionPlanInput
	if !bindJSON(c, &req) {
		return
	}

	plan, err := h.ActionPlanService.CreateActionPlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// GET /api/v1/observations/:id/action-plans.
func (h *ActionPlanHandlers) ListActionPlans(c *gin.Context) {
	plans, err := h.ActionPlanService.ListActionPlans(c.Request.Context(), c.Param("id"))
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"actionPlans": plans})
}

// PATCH /api/v1/action-plans/:id.
func (h *ActionPlanHandlers) UpdateActionPlan(c *gin.Context) {
	var req biz.ActionPlanInput
	if !bindJSON(c, &req) {
		return
	}

	plan, err := h.ActionPlanService.UpdateActionPlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}
