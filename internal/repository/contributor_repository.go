package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/pkg/ident"
)

// ContributorRepository manages persistence for contributor records.
type ContributorRepository struct {
	db *sqlx.DB
}

// NewContributorRepository constructs a ContributorRepository.
func NewContributorRepository(db *sqlx.DB) *ContributorRepository {
	return &ContributorRepository{db: db}
}

// Create inserts a new contributor.
func (r *ContributorRepository) Create(ctx context.Context, contributor *models.Contributor) error {
	if contributor.ID == "" {
		contributor.ID = ident.NewUUID()
	}
	now := time.Now().UTC()
	if contributor.CreatedAt.IsZero() {
		contributor.CreatedAt = now
	}
	contributor.UpdatedAt = now
	const query = `INSERT INTO contributors (id, name, email, active, banned, ban_reason, created_at, updated_at)
		VALUES (:id, :name, :email, :active, :banned, :ban_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, contributor); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create contributor: %w", ErrEmailTaken)
		}
		return fmt.Errorf("create contributor: %w", err)
	}
	return nil
}

// FindByID fetches a contributor by UUID.
func (r *ContributorRepository) FindByID(ctx context.Context, id string) (*models.Contributor, error) {
	var contributor models.Contributor
	const query = `SELECT id, name, email, active, banned, ban_reason, created_at, updated_at
		FROM contributors WHERE id = $1`
	if err := r.db.GetContext(ctx, &contributor, query, id); err != nil {
		return nil, err
	}
	return &contributor, nil
}

// FindByEmail fetches a contributor by email.
func (r *ContributorRepository) FindByEmail(ctx context.Context, email string) (*models.Contributor, error) {
	var contributor models.Contributor
	const query = `SELECT id, name, email, active, banned, ban_reason, created_at, updated_at
		FROM contributors WHERE email = $1`
	if err := r.db.GetContext(ctx, &contributor, query, email); err != nil {
		return nil, err
	}
	return &contributor, nil
}

// SetBanned toggles the intake ban, recording the reason.
func (r *ContributorRepository) SetBanned(ctx context.Context, id string, banned bool, reason string) error {
	const query = `UPDATE contributors SET banned = $2, ban_reason = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, banned, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set contributor banned: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns contributors ordered by name.
func (r *ContributorRepository) List(ctx context.Context) ([]models.Contributor, error) {
	var contributors []models.Contributor
	const query = `SELECT id, name, email, active, banned, ban_reason, created_at, updated_at
		FROM contributors ORDER BY name`
	if err := r.db.SelectContext(ctx, &contributors, query); err != nil {
		return nil, fmt.Errorf("list contributors: %w", err)
	}
	return contributors, nil
}
