package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/auditflow/internal/server/biz"
)

type InviteHandlersParams struct {
	fx.In

	InviteService *biz.InviteService
}

type InviteHandlers struct {
	InviteService *biz.InviteService
}

func NewInviteHandlers(params InviteHandlersParams) *InviteHandlers {
	return &InviteHandlers{
		InviteService: params.InviteService,
	}
}

type RedeemInviteRequest struct {
	Token string `json:"token" binding:"required"`
}

// POST /api/v1/invites.
func (h *InviteHandlers) IssueInvite(c *gin.Context) {
	var req biz.IssueInviteInput
	if !bindJSON(c, &req) {
		return
	}

	invite, err := h.InviteService.IssueInvite(c.Request.Context(), req)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invite)
}

// POST /api/v1/invites/redeem.
func (h *InviteHandlers) RedeemInvite(c *gin.Context) {
	var req RedeemInviteRequest
	if !bindJSON(c, &req) {
		return
	}

	invite, err := h.InviteService.RedeemInvite(c.Request.Context(), req.Token)
	if err != nil {
		JSONError(c, err)
		return
	}

	c.JSON(http.StatusOK, invite)
}
