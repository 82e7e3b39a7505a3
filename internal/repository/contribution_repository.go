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

// ContributionRepository manages persistence for contributions and their
// images. Intake is transactional: the mesh and contributor gates are
// re-checked under row locks so a concurrent toggle cannot race past
// them, and rejection leaves no partial rows behind.
type ContributionRepository struct {
	db *sqlx.DB
}

// NewContributionRepository constructs a ContributionRepository.
func NewContributionRepository(db *sqlx.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

// Intake records a contribution and its images in one transaction.
// Returns ErrMeshCompleted or ErrContributorBanned when the respective
// gate is closed; sql.ErrNoRows when either entity is missing.
func (r *ContributionRepository) Intake(ctx context.Context, contribution *models.Contribution) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin intake: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var completed bool
	if err := tx.GetContext(ctx, &completed,
		`SELECT completed FROM meshes WHERE id = $1 FOR UPDATE`, contribution.MeshID); err != nil {
		return fmt.Errorf("lock mesh: %w", err)
	}
	if completed {
		return ErrMeshCompleted
	}

	var banned bool
	if err := tx.GetContext(ctx, &banned,
		`SELECT banned FROM contributors WHERE id = $1 FOR UPDATE`, contribution.ContributorID); err != nil {
		return fmt.Errorf("lock contributor: %w", err)
	}
	if banned {
		return ErrContributorBanned
	}

	if contribution.ID == "" {
		contribution.ID = ident.NewUUID()
	}
	if contribution.ContributedAt.IsZero() {
		contribution.ContributedAt = time.Now().UTC()
	}
	const insertContribution = `INSERT INTO contributions (id, mesh_id, contributor_id, contributed_at, processed, processed_at)
		VALUES (:id, :mesh_id, :contributor_id, :contributed_at, :processed, :processed_at)`
	if _, err := tx.NamedExecContext(ctx, insertContribution, contribution); err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}

	const insertImage = `INSERT INTO images (id, contribution_id, file_path, label, remark, created_at)
		VALUES (:id, :contribution_id, :file_path, :label, :remark, :created_at)`
	for i := range contribution.Images {
		img := &contribution.Images[i]
		if img.ID == "" {
			img.ID = ident.NewUUID()
		}
		img.ContributionID = contribution.ID
		if img.CreatedAt.IsZero() {
			img.CreatedAt = contribution.ContributedAt
		}
		if _, err := tx.NamedExecContext(ctx, insertImage, img); err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit intake: %w", err)
	}
	return nil
}

// MarkProcessed flips the processed flag exactly once, stamping
// processed_at on that transition. A second call returns
// ErrAlreadyProcessed.
func (r *ContributionRepository) MarkProcessed(ctx context.Context, id string, processedAt time.Time) error {
	const query = `UPDATE contributions SET processed = true, processed_at = $2
		WHERE id = $1 AND processed = false`
	res, err := r.db.ExecContext(ctx, query, id, processedAt.UTC())
	if err != nil {
		return fmt.Errorf("mark contribution processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark contribution processed: %w", err)
	}
	if n == 0 {
		var exists int
		if err := r.db.GetContext(ctx, &exists,
			`SELECT 1 FROM contributions WHERE id = $1`, id); err != nil {
			if err == sql.ErrNoRows {
				return sql.ErrNoRows
			}
			return fmt.Errorf("mark contribution processed: %w", err)
		}
		return ErrAlreadyProcessed
	}
	return nil
}

// FindByID fetches a contribution with its images.
func (r *ContributionRepository) FindByID(ctx context.Context, id string) (*models.Contribution, error) {
	var contribution models.Contribution
	const query = `SELECT id, mesh_id, contributor_id, contributed_at, processed, processed_at
		FROM contributions WHERE id = $1`
	if err := r.db.GetContext(ctx, &contribution, query, id); err != nil {
		return nil, err
	}
	const imageQuery = `SELECT id, contribution_id, file_path, label, remark, created_at
		FROM images WHERE contribution_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &contribution.Images, imageQuery, id); err != nil {
		return nil, fmt.Errorf("load contribution images: %w", err)
	}
	return &contribution, nil
}

// ListByMesh returns contributions for a mesh, newest first.
func (r *ContributionRepository) ListByMesh(ctx context.Context, meshID string, unprocessedOnly bool) ([]models.Contribution, error) {
	query := `SELECT id, mesh_id, contributor_id, contributed_at, processed, processed_at
		FROM contributions WHERE mesh_id = $1`
	if unprocessedOnly {
		query += " AND processed = false"
	}
	query += " ORDER BY contributed_at DESC"
	var contributions []models.Contribution
	if err := r.db.SelectContext(ctx, &contributions, query, meshID); err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	return contributions, nil
}
