package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/internal/service"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
	"github.com/openheritage/arkmesh/pkg/response"
)

// ARKHandler exposes the resolver and binding-correction endpoints.
type ARKHandler struct {
	arks *service.ARKService
}

// NewARKHandler constructs ARKHandler.
func NewARKHandler(arks *service.ARKService) *ARKHandler {
	return &ARKHandler{arks: arks}
}

// Resolve godoc
// @Summary Resolve an ARK to its bound record
// @Tags ARK
// @Produce json
// @Param ark path string true "ARK identifier, e.g. 99999/fk4abc123"
// @Success 200 {object} response.Envelope
// @Router /ark/{ark} [get]
func (h *ARKHandler) Resolve(c *gin.Context) {
	// Wildcard route: the param arrives with a leading slash.
	record, err := h.arks.Resolve(c.Request.Context(), c.Param("ark"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// UpdateBindingRequest holds the correction payload for an ARK binding.
type UpdateBindingRequest struct {
	URL      string             `json:"url"`
	Metadata models.ARKMetadata `json:"metadata"`
}

// UpdateBinding godoc
// @Summary Correct the URL and metadata bound to an ARK
// @Tags ARK
// @Accept json
// @Produce json
// @Param ark path string true "ARK identifier"
// @Param payload body UpdateBindingRequest true "Binding payload"
// @Success 200 {object} response.Envelope
// @Router /admin/ark/{ark} [put]
func (h *ARKHandler) UpdateBinding(c *gin.Context) {
	var req UpdateBindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.arks.UpdateBinding(c.Request.Context(), c.Param("ark"), req.URL, req.Metadata)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
