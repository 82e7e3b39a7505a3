package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openheritage/arkmesh/internal/models"
)

// ARKRepository manages persistence for archival identifiers. The record
// is validated on every write, and the type deliberately exposes no
// delete operation: an ARK, once issued, is permanent.
type ARKRepository struct {
	db *sqlx.DB
}

// NewARKRepository constructs an ARKRepository.
func NewARKRepository(db *sqlx.DB) *ARKRepository {
	return &ARKRepository{db: db}
}

// Create mints a new ARK record. Returns ErrArkTaken on an assigned-name
// collision so the caller can re-allocate and retry.
func (r *ARKRepository) Create(ctx context.Context, ark *models.ARK) error {
	if err := ark.Validate(); err != nil {
		return fmt.Errorf("validate ark: %w", err)
	}
	if ark.CreatedAt.IsZero() {
		ark.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO arks (ark, naan, shoulder, assigned_name, created_at, url, metadata, commitment)
		VALUES (:ark, :naan, :shoulder, :assigned_name, :created_at, :url, :metadata, :commitment)`
	if _, err := r.db.NamedExecContext(ctx, query, ark); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create ark: %w", ErrArkTaken)
		}
		return fmt.Errorf("create ark: %w", err)
	}
	return nil
}

// FindByArk fetches an ARK by its full identifier string.
func (r *ARKRepository) FindByArk(ctx context.Context, ark string) (*models.ARK, error) {
	var record models.ARK
	const query = `SELECT ark, naan, shoulder, assigned_name, created_at, url, metadata, commitment
		FROM arks WHERE ark = $1`
	if err := r.db.GetContext(ctx, &record, query, ark); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateBinding corrects the bound URL and metadata of an existing ARK.
// Identifying fields are immutable; the full record is revalidated before
// the write so no code path can persist an inconsistent identifier.
func (r *ARKRepository) UpdateBinding(ctx context.Context, ark string, url string, metadata models.ARKMetadata) error {
	record, err := r.FindByArk(ctx, ark)
	if err != nil {
		return err
	}
	record.URL = url
	record.Metadata = metadata
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validate ark: %w", err)
	}
	const query = `UPDATE arks SET url = $2, metadata = $3 WHERE ark = $1`
	if _, err := r.db.ExecContext(ctx, query, ark, record.URL, record.Metadata); err != nil {
		return fmt.Errorf("update ark binding: %w", err)
	}
	return nil
}
