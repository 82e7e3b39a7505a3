package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openheritage/arkmesh/internal/service"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
	"github.com/openheritage/arkmesh/pkg/response"
)

// RunHandler exposes reconstruction-run endpoints.
type RunHandler struct {
	runs *service.RunService
}

// NewRunHandler constructs RunHandler.
func NewRunHandler(runs *service.RunService) *RunHandler {
	return &RunHandler{runs: runs}
}

// Start godoc
// @Summary Start a reconstruction run
// @Tags Runs
// @Accept json
// @Produce json
// @Param id path string true "Mesh ID"
// @Param payload body service.StartRunRequest false "Rotation override"
// @Success 201 {object} response.Envelope
// @Router /admin/meshes/{id}/runs [post]
func (h *RunHandler) Start(c *gin.Context) {
	var req service.StartRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	run, err := h.runs.Start(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, run)
}

// Retry godoc
// @Summary Retry reconstruction after a failure
// @Tags Runs
// @Produce json
// @Param id path string true "Mesh ID"
// @Success 201 {object} response.Envelope
// @Router /admin/meshes/{id}/runs/retry [post]
func (h *RunHandler) Retry(c *gin.Context) {
	run, err := h.runs.Retry(c.Request.Context(), c.Param("id"), service.StartRunRequest{})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, run)
}

// ListByMesh godoc
// @Summary List runs for a mesh
// @Tags Runs
// @Produce json
// @Param id path string true "Mesh ID"
// @Success 200 {object} response.Envelope
// @Router /meshes/{id}/runs [get]
func (h *RunHandler) ListByMesh(c *gin.Context) {
	runs, err := h.runs.ListByMesh(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, nil)
}

// Get godoc
// @Summary Get run detail
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Cancel godoc
// @Summary Cancel an in-flight run
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 204
// @Router /admin/runs/{id}/cancel [post]
func (h *RunHandler) Cancel(c *gin.Context) {
	if err := h.runs.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a run record
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 204
// @Router /admin/runs/{id} [delete]
func (h *RunHandler) Delete(c *gin.Context) {
	if err := h.runs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Citation godoc
// @Summary Download the citation record for an archived run
// @Tags Runs
// @Produce application/pdf
// @Param id path string true "Run ID"
// @Success 200 {file} binary
// @Router /runs/{id}/citation [get]
func (h *RunHandler) Citation(c *gin.Context) {
	pdf, err := h.runs.Citation(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=citation-%s.pdf", c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
