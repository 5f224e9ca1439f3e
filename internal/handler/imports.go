package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Narimm/OpenVPMS-sub018/internal/apierror"
	"github.com/Narimm/OpenVPMS-sub018/internal/middleware"
	"github.com/Narimm/OpenVPMS-sub018/internal/service"
)

type ImportsHandler struct {
	svc      service.ImportService
	maxBytes int64
}

func NewImportsHandler(svc service.ImportService, maxBytes int64) *ImportsHandler {
	return &ImportsHandler{svc: svc, maxBytes: maxBytes}
}

// Upload godoc
// @Summary Upload a price list document
// @Description Accepts a CSV price list. Small files are reconciled within the
// @Description request; larger ones are queued and processed asynchronously.
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV price list"
// @Param notify_email formData string false "Address to mail the batch report to"
// @Success 200 {object} dto.ImportBatchResponse
// @Failure 400 {object} apierror.APIError
// @Failure 413 {object} apierror.APIError
// @Security BearerAuth
// @Router /v1/imports [post]
func (h *ImportsHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, apierror.New("file exceeds the upload size limit"))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New("a file field is required"))
		return
	}
	defer file.Close()

	notifyEmail := c.PostForm("notify_email")

	var uploadedBy *uuid.UUID
	if claims := middleware.GetClaims(c); claims != nil {
		if uid, err := uuid.Parse(claims.UserID); err == nil {
			uploadedBy = &uid
		}
	}

	resp, err := h.svc.Upload(c.Request.Context(), header.Filename, file, notifyEmail, uploadedBy)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDocument) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New("could not process upload"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Get an import batch with its error report
// @Tags imports
// @Produce json
// @Param id path string true "Batch id"
// @Success 200 {object} dto.ImportBatchResponse
// @Failure 404 {object} apierror.APIError
// @Security BearerAuth
// @Router /v1/imports/{id} [get]
func (h *ImportsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid batch id"))
		return
	}

	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, apierror.New("import batch not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New("could not fetch batch"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary List import batches, newest first
// @Tags imports
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} dto.ImportBatchListResponse
// @Security BearerAuth
// @Router /v1/imports [get]
func (h *ImportsHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	resp, err := h.svc.List(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("could not list batches"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
