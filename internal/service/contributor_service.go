package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/internal/repository"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
)

type contributorRepository interface {
	Create(ctx context.Context, contributor *models.Contributor) error
	FindByID(ctx context.Context, id string) (*models.Contributor, error)
	FindByEmail(ctx context.Context, email string) (*models.Contributor, error)
	SetBanned(ctx context.Context, id string, banned bool, reason string) error
	List(ctx context.Context) ([]models.Contributor, error)
}

// RegisterContributorRequest holds payload for registering a contributor.
type RegisterContributorRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// BanContributorRequest holds payload for banning a contributor.
type BanContributorRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ContributorService handles contributor registration and moderation.
type ContributorService struct {
	repo      contributorRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewContributorService constructs the contributor service.
func NewContributorService(repo contributorRepository, validate *validator.Validate, logger *zap.Logger) *ContributorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContributorService{repo: repo, validator: validate, logger: logger}
}

// Register creates a contributor account.
func (s *ContributorService) Register(ctx context.Context, req RegisterContributorRequest) (*models.Contributor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contributor payload")
	}
	contributor := &models.Contributor{Name: req.Name, Email: req.Email, Active: true}
	if err := s.repo.Create(ctx, contributor); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, appErrors.Clone(appErrors.ErrUniqueness, "email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register contributor")
	}
	s.logger.Info("contributor registered", zap.String("contributor_id", contributor.ID))
	return contributor, nil
}

// Get fetches a contributor by ID.
func (s *ContributorService) Get(ctx context.Context, id string) (*models.Contributor, error) {
	contributor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contributor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contributor")
	}
	return contributor, nil
}

// List returns all contributors.
func (s *ContributorService) List(ctx context.Context) ([]models.Contributor, error) {
	contributors, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contributors")
	}
	return contributors, nil
}

// Ban blocks a contributor from future intake. Existing contributions are
// unaffected.
func (s *ContributorService) Ban(ctx context.Context, id string, req BanContributorRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "ban reason is required")
	}
	if err := s.repo.SetBanned(ctx, id, true, req.Reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "contributor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ban contributor")
	}
	s.logger.Info("contributor banned", zap.String("contributor_id", id), zap.String("reason", req.Reason))
	return nil
}

// Unban lifts the intake ban.
func (s *ContributorService) Unban(ctx context.Context, id string) error {
	if err := s.repo.SetBanned(ctx, id, false, ""); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "contributor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unban contributor")
	}
	return nil
}
