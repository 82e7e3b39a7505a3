package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/internal/repository"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
	"github.com/openheritage/arkmesh/pkg/imaging"
)

type meshRepository interface {
	Create(ctx context.Context, mesh *models.Mesh) error
	Update(ctx context.Context, mesh *models.Mesh) error
	UpdateStatus(ctx context.Context, id string, status models.MeshStatus, reconstructedAt *time.Time) error
	SetCompleted(ctx context.Context, id string, completed bool) error
	SetHidden(ctx context.Context, id string, hidden bool) error
	FindByID(ctx context.Context, id string) (*models.Mesh, error)
	FindByVerboseID(ctx context.Context, verboseID string) (*models.Mesh, error)
	ListPublic(ctx context.Context) ([]models.Mesh, error)
	List(ctx context.Context, filter models.MeshFilter) ([]models.Mesh, int, error)
}

// MediaWriter persists media payloads at canonical relative paths.
type MediaWriter interface {
	Save(relPath string, data []byte) error
}

// CreateMeshRequest holds payload for registering a mesh.
type CreateMeshRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Country     string `json:"country" validate:"required"`
	State       string `json:"state" validate:"required"`
	District    string `json:"district" validate:"required"`
	CenterImage string `json:"center_image"`
	RotaX       int    `json:"rota_x"`
	RotaY       int    `json:"rota_y"`
	RotaZ       int    `json:"rota_z"`
	OrientMesh  bool   `json:"orient_mesh"`
	MinObsAngle int    `json:"min_obs_angle"`
	Denoise     bool   `json:"denoise"`
}

// UpdateMeshRequest holds payload for updating a mesh.
type UpdateMeshRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Country     string `json:"country" validate:"required"`
	State       string `json:"state" validate:"required"`
	District    string `json:"district" validate:"required"`
	CenterImage string `json:"center_image"`
	RotaX       int    `json:"rota_x"`
	RotaY       int    `json:"rota_y"`
	RotaZ       int    `json:"rota_z"`
	OrientMesh  bool   `json:"orient_mesh"`
	MinObsAngle int    `json:"min_obs_angle"`
	Denoise     bool   `json:"denoise"`
}

// MeshService handles mesh registration, curation toggles and listings.
type MeshService struct {
	repo      meshRepository
	media     MediaWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger

	thumbMinDim  int
	thumbQuality int
	listingTTL   time.Duration
}

// NewMeshService constructs the mesh service.
func NewMeshService(repo meshRepository, media MediaWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, thumbMinDim, thumbQuality int, listingTTL time.Duration) *MeshService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if thumbMinDim <= 0 {
		thumbMinDim = imaging.DefaultMinDimension
	}
	if thumbQuality <= 0 {
		thumbQuality = imaging.DefaultJPEGQuality
	}
	return &MeshService{
		repo:         repo,
		media:        media,
		cache:        cache,
		validator:    validate,
		logger:       logger,
		thumbMinDim:  thumbMinDim,
		thumbQuality: thumbQuality,
		listingTTL:   listingTTL,
	}
}

// Create registers a new mesh.
func (s *MeshService) Create(ctx context.Context, req CreateMeshRequest) (*models.Mesh, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mesh payload")
	}

	mesh := &models.Mesh{
		Name:        req.Name,
		Description: req.Description,
		Country:     req.Country,
		State:       req.State,
		District:    req.District,
		CenterImage: req.CenterImage,
		RotaX:       req.RotaX,
		RotaY:       req.RotaY,
		RotaZ:       req.RotaZ,
		OrientMesh:  req.OrientMesh,
		MinObsAngle: req.MinObsAngle,
		Denoise:     req.Denoise,
	}
	if err := s.repo.Create(ctx, mesh); err != nil {
		if errors.Is(err, repository.ErrVerboseIDTaken) {
			return nil, appErrors.Clone(appErrors.ErrUniqueness, "a mesh with this name already exists at this location")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mesh")
	}

	s.invalidateListing(ctx)
	s.logger.Info("mesh created", zap.String("mesh_id", mesh.ID), zap.String("verbose_id", mesh.VerboseID))
	return mesh, nil
}

// Update modifies an existing mesh. The location slug is recomputed on
// every save.
func (s *MeshService) Update(ctx context.Context, id string, req UpdateMeshRequest) (*models.Mesh, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mesh payload")
	}

	mesh, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	mesh.Name = req.Name
	mesh.Description = req.Description
	mesh.Country = req.Country
	mesh.State = req.State
	mesh.District = req.District
	mesh.CenterImage = req.CenterImage
	mesh.RotaX = req.RotaX
	mesh.RotaY = req.RotaY
	mesh.RotaZ = req.RotaZ
	mesh.OrientMesh = req.OrientMesh
	mesh.MinObsAngle = req.MinObsAngle
	mesh.Denoise = req.Denoise

	if err := s.repo.Update(ctx, mesh); err != nil {
		if errors.Is(err, repository.ErrVerboseIDTaken) {
			return nil, appErrors.Clone(appErrors.ErrUniqueness, "a mesh with this name already exists at this location")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mesh")
	}

	s.invalidateListing(ctx)
	return mesh, nil
}

// Get fetches a mesh by short ID.
func (s *MeshService) Get(ctx context.Context, id string) (*models.Mesh, error) {
	mesh, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mesh not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mesh")
	}
	return mesh, nil
}

// GetByVerboseID fetches a mesh by its location slug.
func (s *MeshService) GetByVerboseID(ctx context.Context, verboseID string) (*models.Mesh, error) {
	mesh, err := s.repo.FindByVerboseID(ctx, verboseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mesh not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mesh")
	}
	return mesh, nil
}

// List returns meshes matching the filter with pagination metadata.
func (s *MeshService) List(ctx context.Context, filter models.MeshFilter) ([]models.Mesh, *models.Pagination, error) {
	meshes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meshes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return meshes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListPublic returns the non-hidden meshes, cached when redis is enabled.
func (s *MeshService) ListPublic(ctx context.Context) ([]models.Mesh, error) {
	if cached, hit := s.cache.PublicMeshes(ctx); hit {
		return cached, nil
	}

	meshes, err := s.repo.ListPublic(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meshes")
	}

	_ = s.cache.StorePublicMeshes(ctx, meshes, s.listingTTL)
	return meshes, nil
}

// SetCompleted toggles the intake gate. Contributions accepted before the
// gate closed stay valid.
func (s *MeshService) SetCompleted(ctx context.Context, id string, completed bool) error {
	if err := s.repo.SetCompleted(ctx, id, completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "mesh not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mesh")
	}
	s.invalidateListing(ctx)
	s.logger.Info("mesh intake gate toggled", zap.String("mesh_id", id), zap.Bool("completed", completed))
	return nil
}

// SetHidden toggles public visibility.
func (s *MeshService) SetHidden(ctx context.Context, id string, hidden bool) error {
	if err := s.repo.SetHidden(ctx, id, hidden); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "mesh not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mesh")
	}
	s.invalidateListing(ctx)
	return nil
}

// SavePreview re-encodes and stores the preview image for a mesh.
func (s *MeshService) SavePreview(ctx context.Context, id string, data []byte) error {
	mesh, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.saveNormalized(ctx, mesh.Preview, data)
}

// SaveThumbnail re-encodes and stores the listing thumbnail for a mesh.
// The shorter dimension is normalised; images already smaller are stored
// as-is re-encoded.
func (s *MeshService) SaveThumbnail(ctx context.Context, id string, data []byte) error {
	mesh, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.saveNormalized(ctx, mesh.Thumbnail, data); err != nil {
		return err
	}
	s.invalidateListing(ctx)
	return nil
}

func (s *MeshService) saveNormalized(_ context.Context, relPath string, data []byte) error {
	encoded, err := imaging.Reencode(data, relPath, s.thumbMinDim, s.thumbQuality)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable image payload")
	}
	if s.media == nil {
		return appErrors.Clone(appErrors.ErrInternal, "media store not configured")
	}
	if err := s.media.Save(relPath, encoded); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}
	return nil
}

func (s *MeshService) invalidateListing(ctx context.Context) {
	_ = s.cache.InvalidatePublicMeshes(ctx)
}
