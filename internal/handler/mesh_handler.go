package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/internal/service"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
	"github.com/openheritage/arkmesh/pkg/response"
)

// MeshHandler exposes mesh endpoints.
type MeshHandler struct {
	meshes *service.MeshService
}

// NewMeshHandler constructs MeshHandler.
func NewMeshHandler(meshes *service.MeshService) *MeshHandler {
	return &MeshHandler{meshes: meshes}
}

// ListPublic godoc
// @Summary List public meshes
// @Tags Meshes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meshes [get]
func (h *MeshHandler) ListPublic(c *gin.Context) {
	meshes, err := h.meshes.ListPublic(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meshes, nil)
}

// List godoc
// @Summary List meshes with filters
// @Tags Meshes
// @Produce json
// @Param search query string false "Search by name or slug"
// @Param status query string false "Filter by lifecycle status"
// @Param completed query bool false "Filter by intake gate"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/meshes [get]
func (h *MeshHandler) List(c *gin.Context) {
	var filter models.MeshFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Status = models.MeshStatus(c.Query("status"))
	if completed := c.Query("completed"); completed != "" {
		if completed == "true" {
			v := true
			filter.Completed = &v
		} else if completed == "false" {
			v := false
			filter.Completed = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	meshes, pagination, err := h.meshes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meshes, pagination)
}

// Get godoc
// @Summary Get mesh detail
// @Tags Meshes
// @Produce json
// @Param id path string true "Mesh ID or verbose ID"
// @Success 200 {object} response.Envelope
// @Router /meshes/{id} [get]
func (h *MeshHandler) Get(c *gin.Context) {
	id := c.Param("id")
	mesh, err := h.meshes.Get(c.Request.Context(), id)
	if err != nil && strings.Contains(id, "__") {
		mesh, err = h.meshes.GetByVerboseID(c.Request.Context(), id)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mesh, nil)
}

// Create godoc
// @Summary Register a mesh
// @Tags Meshes
// @Accept json
// @Produce json
// @Param payload body service.CreateMeshRequest true "Mesh payload"
// @Success 201 {object} response.Envelope
// @Router /admin/meshes [post]
func (h *MeshHandler) Create(c *gin.Context) {
	var req service.CreateMeshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mesh, err := h.meshes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mesh)
}

// Update godoc
// @Summary Update a mesh
// @Tags Meshes
// @Accept json
// @Produce json
// @Param id path string true "Mesh ID"
// @Param payload body service.UpdateMeshRequest true "Mesh payload"
// @Success 200 {object} response.Envelope
// @Router /admin/meshes/{id} [put]
func (h *MeshHandler) Update(c *gin.Context) {
	var req service.UpdateMeshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mesh, err := h.meshes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mesh, nil)
}

type toggleRequest struct {
	Value bool `json:"value"`
}

// SetCompleted godoc
// @Summary Toggle the intake gate
// @Tags Meshes
// @Accept json
// @Produce json
// @Param id path string true "Mesh ID"
// @Param payload body toggleRequest true "Gate value"
// @Success 204
// @Router /admin/meshes/{id}/completed [put]
func (h *MeshHandler) SetCompleted(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.meshes.SetCompleted(c.Request.Context(), c.Param("id"), req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetHidden godoc
// @Summary Toggle public visibility
// @Tags Meshes
// @Accept json
// @Produce json
// @Param id path string true "Mesh ID"
// @Param payload body toggleRequest true "Visibility value"
// @Success 204
// @Router /admin/meshes/{id}/hidden [put]
func (h *MeshHandler) SetHidden(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.meshes.SetHidden(c.Request.Context(), c.Param("id"), req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadThumbnail godoc
// @Summary Upload and normalise the mesh thumbnail
// @Tags Meshes
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Mesh ID"
// @Param file formData file true "Thumbnail image"
// @Success 204
// @Router /admin/meshes/{id}/thumbnail [put]
func (h *MeshHandler) UploadThumbnail(c *gin.Context) {
	data, err := h.readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.meshes.SaveThumbnail(c.Request.Context(), c.Param("id"), data); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadPreview godoc
// @Summary Upload and normalise the mesh preview
// @Tags Meshes
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Mesh ID"
// @Param file formData file true "Preview image"
// @Success 204
// @Router /admin/meshes/{id}/preview [put]
func (h *MeshHandler) UploadPreview(c *gin.Context) {
	data, err := h.readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.meshes.SavePreview(c.Request.Context(), c.Param("id"), data); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *MeshHandler) readUpload(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required")
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload")
	}
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload")
	}
	return data, nil
}
