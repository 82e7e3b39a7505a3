package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openheritage/arkmesh/internal/service"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
	"github.com/openheritage/arkmesh/pkg/response"
)

// ContributionHandler exposes the intake and curation endpoints.
type ContributionHandler struct {
	intake *service.IntakeService
}

// NewContributionHandler constructs ContributionHandler.
func NewContributionHandler(intake *service.IntakeService) *ContributionHandler {
	return &ContributionHandler{intake: intake}
}

// Submit godoc
// @Summary Contribute images to a mesh
// @Tags Contributions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Mesh ID"
// @Param contributor_id formData string true "Contributor ID"
// @Param images formData file true "Image files"
// @Success 201 {object} response.Envelope
// @Router /meshes/{id}/contributions [post]
func (h *ContributionHandler) Submit(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart form required"))
		return
	}

	contributorID := c.PostForm("contributor_id")
	files := form.File["images"]
	uploads := make([]service.IntakeUpload, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
			return
		}
		data, err := io.ReadAll(file)
		file.Close() //nolint:errcheck,gosec
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
			return
		}
		uploads = append(uploads, service.IntakeUpload{FileName: header.Filename, Data: data})
	}

	contribution, err := h.intake.Submit(c.Request.Context(), c.Param("id"), contributorID, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, contribution)
}

// Get godoc
// @Summary Get a contribution with its images
// @Tags Contributions
// @Produce json
// @Param id path string true "Contribution ID"
// @Success 200 {object} response.Envelope
// @Router /contributions/{id} [get]
func (h *ContributionHandler) Get(c *gin.Context) {
	contribution, err := h.intake.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contribution, nil)
}

// ListByMesh godoc
// @Summary List contributions for a mesh
// @Tags Contributions
// @Produce json
// @Param id path string true "Mesh ID"
// @Param unprocessed query bool false "Only unprocessed contributions"
// @Success 200 {object} response.Envelope
// @Router /admin/meshes/{id}/contributions [get]
func (h *ContributionHandler) ListByMesh(c *gin.Context) {
	unprocessedOnly := c.Query("unprocessed") == "true"
	contributions, err := h.intake.ListByMesh(c.Request.Context(), c.Param("id"), unprocessedOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contributions, nil)
}

// LabelImage godoc
// @Summary Record the vetting outcome for an image
// @Tags Contributions
// @Accept json
// @Produce json
// @Param id path string true "Image ID"
// @Param payload body service.LabelImageRequest true "Label payload"
// @Success 200 {object} response.Envelope
// @Router /admin/images/{id}/label [put]
func (h *ContributionHandler) LabelImage(c *gin.Context) {
	var req service.LabelImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	image, err := h.intake.LabelImage(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, image, nil)
}

// MarkProcessed godoc
// @Summary Finish vetting a contribution
// @Tags Contributions
// @Produce json
// @Param id path string true "Contribution ID"
// @Success 204
// @Router /admin/contributions/{id}/processed [post]
func (h *ContributionHandler) MarkProcessed(c *gin.Context) {
	if err := h.intake.MarkProcessed(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
