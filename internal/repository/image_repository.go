package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openheritage/arkmesh/internal/models"
)

// ImageRepository manages curation and selection queries over contributed
// images.
type ImageRepository struct {
	db *sqlx.DB
}

// NewImageRepository constructs an ImageRepository.
func NewImageRepository(db *sqlx.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// FindByID fetches an image by UUID.
func (r *ImageRepository) FindByID(ctx context.Context, id string) (*models.Image, error) {
	var image models.Image
	const query = `SELECT id, contribution_id, file_path, label, remark, created_at
		FROM images WHERE id = $1`
	if err := r.db.GetContext(ctx, &image, query, id); err != nil {
		return nil, err
	}
	return &image, nil
}

// UpdateLabel records the vetting outcome for an image.
func (r *ImageRepository) UpdateLabel(ctx context.Context, id string, label models.ImageLabel, remark string) error {
	const query = `UPDATE images SET label = $2, remark = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, label, remark)
	if err != nil {
		return fmt.Errorf("update image label: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update image label: image %s not found", id)
	}
	return nil
}

// ListUsableByMesh returns the vetted-good images from processed
// contributions, the set a reconstruction run consumes.
func (r *ImageRepository) ListUsableByMesh(ctx context.Context, meshID string) ([]models.Image, error) {
	const query = `SELECT i.id, i.contribution_id, i.file_path, i.label, i.remark, i.created_at
		FROM images i
		JOIN contributions c ON c.id = i.contribution_id
		WHERE c.mesh_id = $1 AND c.processed = true AND i.label = $2
		ORDER BY i.created_at ASC`
	var images []models.Image
	if err := r.db.SelectContext(ctx, &images, query, meshID, models.ImageLabelGood); err != nil {
		return nil, fmt.Errorf("list usable images: %w", err)
	}
	return images, nil
}

// ContributorIDs returns the distinct contributors behind a set of images.
func (r *ImageRepository) ContributorIDs(ctx context.Context, imageIDs []string) ([]string, error) {
	if len(imageIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT DISTINCT c.contributor_id
		FROM contributions c
		JOIN images i ON i.contribution_id = c.id
		WHERE i.id = ANY($1)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(imageIDs)); err != nil {
		return nil, fmt.Errorf("resolve image contributors: %w", err)
	}
	return ids, nil
}
