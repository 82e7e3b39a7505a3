package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/internal/repository"
	"github.com/openheritage/arkmesh/pkg/config"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
	"github.com/openheritage/arkmesh/pkg/ident"
)

type arkRepository interface {
	Create(ctx context.Context, ark *models.ARK) error
	FindByArk(ctx context.Context, ark string) (*models.ARK, error)
	UpdateBinding(ctx context.Context, ark string, url string, metadata models.ARKMetadata) error
}

// ARKService mints and resolves permanent archival identifiers. Minting
// allocates a fresh betanumeric assigned name under the configured NAAN
// and shoulder; a name collision is re-allocated and retried once.
type ARKService struct {
	repo    arkRepository
	cfg     config.ARKConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewARKService constructs the ARK service.
func NewARKService(repo arkRepository, cfg config.ARKConfig, metrics *MetricsService, logger *zap.Logger) *ARKService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ARKService{repo: repo, cfg: cfg, metrics: metrics, logger: logger}
}

// Mint creates a permanent identifier bound to the given URL and metadata.
func (s *ARKService) Mint(ctx context.Context, url string, metadata models.ARKMetadata) (*models.ARK, error) {
	if url == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "bound url is required")
	}
	if len(metadata) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "bound metadata is required")
	}

	ark := s.build(url, metadata)
	err := s.repo.Create(ctx, ark)
	if errors.Is(err, repository.ErrArkTaken) {
		s.logger.Warn("ark name collision, reallocating", zap.String("ark", ark.Ark))
		ark = s.build(url, metadata)
		err = s.repo.Create(ctx, ark)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint ark")
	}

	s.metrics.RecordArkMinted()
	s.logger.Info("ark minted", zap.String("ark", ark.Ark), zap.String("url", url))
	return ark, nil
}

// Resolve looks up an ARK by its identifier, with or without the "ark:/"
// prefix.
func (s *ARKService) Resolve(ctx context.Context, raw string) (*models.ARK, error) {
	id := strings.TrimPrefix(raw, "/")
	id = strings.TrimPrefix(id, "ark:/")
	id = strings.TrimPrefix(id, "/")
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ark identifier is required")
	}
	record, err := s.repo.FindByArk(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ark not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve ark")
	}
	return record, nil
}

// UpdateBinding corrects the URL and metadata bound to an existing ARK.
// The identifier itself never changes.
func (s *ARKService) UpdateBinding(ctx context.Context, raw, url string, metadata models.ARKMetadata) (*models.ARK, error) {
	record, err := s.Resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	if url == "" {
		url = record.URL
	}
	if metadata == nil {
		metadata = record.Metadata
	}
	if err := s.repo.UpdateBinding(ctx, record.Ark, url, metadata); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ark binding")
	}
	s.logger.Info("ark binding updated", zap.String("ark", record.Ark))
	return s.Resolve(ctx, record.Ark)
}

// ResolverURL renders the public resolver address for an ARK.
func (s *ARKService) ResolverURL(ark string) string {
	return strings.TrimRight(s.cfg.ResolverBase, "/") + "/" + ark
}

func (s *ARKService) build(url string, metadata models.ARKMetadata) *models.ARK {
	name := ident.NewNoid(s.cfg.NameLength)
	return &models.ARK{
		Ark:          s.cfg.NAAN + s.cfg.Shoulder + name,
		NAAN:         s.cfg.NAAN,
		Shoulder:     s.cfg.Shoulder,
		AssignedName: name,
		CreatedAt:    time.Now().UTC(),
		URL:          url,
		Metadata:     metadata,
		Commitment:   s.cfg.Commitment,
	}
}
