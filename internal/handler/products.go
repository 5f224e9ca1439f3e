package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Narimm/OpenVPMS-sub018/internal/apierror"
	"github.com/Narimm/OpenVPMS-sub018/internal/dto"
	"github.com/Narimm/OpenVPMS-sub018/internal/service"
)

type ProductsHandler struct{ svc service.ProductService }

func NewProductsHandler(svc service.ProductService) *ProductsHandler {
	return &ProductsHandler{svc: svc}
}

// List godoc
// @Summary List catalogue products
// @Tags products
// @Produce json
// @Param name query string false "Filter by name (partial match)"
// @Param active query string false "true (default) | false | all"
// @Param template query string false "Filter template products"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} dto.ProductListResponse
// @Security BearerAuth
// @Router /v1/products [get]
func (h *ProductsHandler) List(c *gin.Context) {
	var filter dto.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid query parameters: "+err.Error()))
		return
	}

	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("could not list products"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Get a product with its prices
// @Tags products
// @Produce json
// @Param id path string true "Product id"
// @Success 200 {object} dto.ProductResponse
// @Failure 404 {object} apierror.APIError
// @Security BearerAuth
// @Router /v1/products/{id} [get]
func (h *ProductsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product id"))
		return
	}

	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, apierror.New("product not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New("could not fetch product"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Deactivate godoc
// @Summary Deactivate a product
// @Tags products
// @Param id path string true "Product id"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Security BearerAuth
// @Router /v1/products/{id} [delete]
func (h *ProductsHandler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product id"))
		return
	}

	if err := h.svc.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, apierror.New("product not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New("could not deactivate product"))
		return
	}
	c.Status(http.StatusNoContent)
}

// History godoc
// @Summary Price change history for a product
// @Tags products
// @Produce json
// @Param id path string true "Product id"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} dto.PriceChangeListResponse
// @Failure 404 {object} apierror.APIError
// @Security BearerAuth
// @Router /v1/products/{id}/history [get]
func (h *ProductsHandler) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product id"))
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	resp, err := h.svc.History(c.Request.Context(), id, page, limit)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, apierror.New("product not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New("could not fetch price history"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
