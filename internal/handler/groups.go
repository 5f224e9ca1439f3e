package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Narimm/OpenVPMS-sub018/internal/apierror"
	"github.com/Narimm/OpenVPMS-sub018/internal/service"
)

type GroupsHandler struct{ svc service.GroupService }

func NewGroupsHandler(svc service.GroupService) *GroupsHandler {
	return &GroupsHandler{svc: svc}
}

// List godoc
// @Summary List pricing groups
// @Tags groups
// @Produce json
// @Success 200 {array} model.PricingGroup
// @Security BearerAuth
// @Router /v1/pricing-groups [get]
func (h *GroupsHandler) List(c *gin.Context) {
	groups, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("could not list pricing groups"))
		return
	}
	c.JSON(http.StatusOK, groups)
}

// Sync godoc
// @Summary Refresh pricing groups from the classification service
// @Tags groups
// @Produce json
// @Success 200 {object} map[string]int
// @Failure 502 {object} apierror.APIError
// @Security BearerAuth
// @Router /v1/pricing-groups/sync [post]
func (h *GroupsHandler) Sync(c *gin.Context) {
	synced, err := h.svc.Sync(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, apierror.New("classification service unavailable"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": synced})
}
