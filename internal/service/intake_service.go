package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/internal/repository"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
	"github.com/openheritage/arkmesh/pkg/ident"
	"github.com/openheritage/arkmesh/pkg/paths"
)

type contributionRepository interface {
	Intake(ctx context.Context, contribution *models.Contribution) error
	MarkProcessed(ctx context.Context, id string, processedAt time.Time) error
	FindByID(ctx context.Context, id string) (*models.Contribution, error)
	ListByMesh(ctx context.Context, meshID string, unprocessedOnly bool) ([]models.Contribution, error)
}

type imageCurationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Image, error)
	UpdateLabel(ctx context.Context, id string, label models.ImageLabel, remark string) error
}

// IntakeUpload is one image payload arriving with a contribution.
type IntakeUpload struct {
	FileName string
	Data     []byte
}

// LabelImageRequest holds payload for the image curation endpoint.
type LabelImageRequest struct {
	Label  models.ImageLabel `json:"label"`
	Remark string            `json:"remark"`
}

// IntakeService accepts contributions and handles post-intake curation.
// The atomicity boundary is the database transaction inside the
// repository; image payloads hit disk only after the rows are committed.
type IntakeService struct {
	contributions contributionRepository
	images        imageCurationRepository
	media         MediaWriter
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewIntakeService constructs the intake service.
func NewIntakeService(contributions contributionRepository, images imageCurationRepository, media MediaWriter, metrics *MetricsService, logger *zap.Logger) *IntakeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{
		contributions: contributions,
		images:        images,
		media:         media,
		metrics:       metrics,
		logger:        logger,
	}
}

// Submit accepts a contribution of one or more images for a mesh. The
// whole contribution is rejected when the mesh is closed or the
// contributor is banned; no partial state survives a rejection.
func (s *IntakeService) Submit(ctx context.Context, meshID, contributorID string, uploads []IntakeUpload) (*models.Contribution, error) {
	if meshID == "" || contributorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mesh id and contributor id are required")
	}
	if len(uploads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a contribution needs at least one image")
	}

	contribution := &models.Contribution{
		MeshID:        meshID,
		ContributorID: contributorID,
		ContributedAt: time.Now().UTC(),
		Images:        make([]models.Image, len(uploads)),
	}
	for i, upload := range uploads {
		if len(upload.Data) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "empty image payload")
		}
		imageID := ident.NewUUID()
		contribution.Images[i] = models.Image{
			ID:       imageID,
			FilePath: paths.ImageFile(meshID, imageID, upload.FileName),
		}
	}

	if err := s.contributions.Intake(ctx, contribution); err != nil {
		switch {
		case errors.Is(err, repository.ErrMeshCompleted):
			s.metrics.RecordIntakeRejected("mesh_completed")
			return nil, appErrors.Clone(appErrors.ErrIntakeRejected, "mesh is no longer accepting contributions")
		case errors.Is(err, repository.ErrContributorBanned):
			s.metrics.RecordIntakeRejected("contributor_banned")
			return nil, appErrors.Clone(appErrors.ErrIntakeRejected, "contributor is banned from contributing")
		case errors.Is(err, sql.ErrNoRows):
			s.metrics.RecordIntakeRejected("not_found")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mesh or contributor not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record contribution")
		}
	}

	for i, upload := range uploads {
		if err := s.media.Save(contribution.Images[i].FilePath, upload.Data); err != nil {
			s.logger.Error("image payload write failed",
				zap.String("contribution_id", contribution.ID),
				zap.String("path", contribution.Images[i].FilePath),
				zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image payload")
		}
	}

	s.metrics.RecordIntakeAccepted()
	s.logger.Info("contribution accepted",
		zap.String("contribution_id", contribution.ID),
		zap.String("mesh_id", meshID),
		zap.String("contributor_id", contributorID),
		zap.Int("images", len(uploads)))
	return contribution, nil
}

// Get fetches a contribution with its images.
func (s *IntakeService) Get(ctx context.Context, id string) (*models.Contribution, error) {
	contribution, err := s.contributions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contribution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contribution")
	}
	return contribution, nil
}

// ListByMesh returns contributions for a mesh.
func (s *IntakeService) ListByMesh(ctx context.Context, meshID string, unprocessedOnly bool) ([]models.Contribution, error) {
	contributions, err := s.contributions.ListByMesh(ctx, meshID, unprocessedOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contributions")
	}
	return contributions, nil
}

// LabelImage records the vetting outcome for one image.
func (s *IntakeService) LabelImage(ctx context.Context, imageID string, req LabelImageRequest) (*models.Image, error) {
	if !req.Label.Valid() || req.Label == models.ImageLabelNone {
		return nil, appErrors.Clone(appErrors.ErrValidation, "label must be one of nsfw, good, bad")
	}
	if _, err := s.images.FindByID(ctx, imageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "image not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load image")
	}
	if err := s.images.UpdateLabel(ctx, imageID, req.Label, req.Remark); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to label image")
	}
	return s.images.FindByID(ctx, imageID)
}

// MarkProcessed finishes vetting for a contribution, exactly once.
func (s *IntakeService) MarkProcessed(ctx context.Context, id string) error {
	err := s.contributions.MarkProcessed(ctx, id, time.Now().UTC())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrAlreadyProcessed):
		return appErrors.Clone(appErrors.ErrIllegalTransition, "contribution already processed")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "contribution not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark contribution processed")
	}
}
