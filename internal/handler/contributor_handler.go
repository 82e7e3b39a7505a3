package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openheritage/arkmesh/internal/service"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
	"github.com/openheritage/arkmesh/pkg/response"
)

// ContributorHandler exposes contributor endpoints.
type ContributorHandler struct {
	contributors *service.ContributorService
}

// NewContributorHandler constructs ContributorHandler.
func NewContributorHandler(contributors *service.ContributorService) *ContributorHandler {
	return &ContributorHandler{contributors: contributors}
}

// Register godoc
// @Summary Register a contributor
// @Tags Contributors
// @Accept json
// @Produce json
// @Param payload body service.RegisterContributorRequest true "Contributor payload"
// @Success 201 {object} response.Envelope
// @Router /contributors [post]
func (h *ContributorHandler) Register(c *gin.Context) {
	var req service.RegisterContributorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	contributor, err := h.contributors.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, contributor)
}

// Get godoc
// @Summary Get contributor detail
// @Tags Contributors
// @Produce json
// @Param id path string true "Contributor ID"
// @Success 200 {object} response.Envelope
// @Router /contributors/{id} [get]
func (h *ContributorHandler) Get(c *gin.Context) {
	contributor, err := h.contributors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contributor, nil)
}

// List godoc
// @Summary List contributors
// @Tags Contributors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/contributors [get]
func (h *ContributorHandler) List(c *gin.Context) {
	contributors, err := h.contributors.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contributors, nil)
}

// Ban godoc
// @Summary Ban a contributor from intake
// @Tags Contributors
// @Accept json
// @Produce json
// @Param id path string true "Contributor ID"
// @Param payload body service.BanContributorRequest true "Ban reason"
// @Success 204
// @Router /admin/contributors/{id}/ban [post]
func (h *ContributorHandler) Ban(c *gin.Context) {
	var req service.BanContributorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.contributors.Ban(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unban godoc
// @Summary Lift a contributor's intake ban
// @Tags Contributors
// @Produce json
// @Param id path string true "Contributor ID"
// @Success 204
// @Router /admin/contributors/{id}/ban [delete]
func (h *ContributorHandler) Unban(c *gin.Context) {
	if err := h.contributors.Unban(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
