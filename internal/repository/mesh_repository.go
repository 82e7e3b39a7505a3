package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/pkg/ident"
	"github.com/openheritage/arkmesh/pkg/paths"
)

// MeshRepository manages persistence for mesh records. The verbose_id is
// recomputed from location+name inside every write path, never trusted
// from the caller.
type MeshRepository struct {
	db *sqlx.DB
}

// NewMeshRepository constructs a MeshRepository.
func NewMeshRepository(db *sqlx.DB) *MeshRepository {
	return &MeshRepository{db: db}
}

const meshInsert = `INSERT INTO meshes
	(id, name, description, country, state, district, preview, thumbnail, verbose_id, status,
	 completed, hidden, center_image, rota_x, rota_y, rota_z, orient_mesh, min_obs_angle, denoise,
	 created_at, updated_at, reconstructed_at)
	VALUES (:id, :name, :description, :country, :state, :district, :preview, :thumbnail, :verbose_id, :status,
	 :completed, :hidden, :center_image, :rota_x, :rota_y, :rota_z, :orient_mesh, :min_obs_angle, :denoise,
	 :created_at, :updated_at, :reconstructed_at)`

// Create inserts a new mesh. An identifier collision is retried once with
// a fresh allocation; a verbose_id collision surfaces to the caller.
func (r *MeshRepository) Create(ctx context.Context, mesh *models.Mesh) error {
	if mesh.ID == "" {
		mesh.ID = ident.NewShortID()
	}
	now := time.Now().UTC()
	if mesh.CreatedAt.IsZero() {
		mesh.CreatedAt = now
	}
	mesh.UpdatedAt = now
	if mesh.Status == "" {
		mesh.Status = models.MeshStatusPending
	}
	mesh.Preview = paths.MeshPreview(mesh.ID)
	mesh.Thumbnail = paths.MeshThumbnail(mesh.ID)
	mesh.VerboseID = mesh.DeriveVerboseID()

	_, err := r.db.NamedExecContext(ctx, meshInsert, mesh)
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		if constraintName(err) == "meshes_pkey" {
			mesh.ID = ident.NewShortID()
			mesh.Preview = paths.MeshPreview(mesh.ID)
			mesh.Thumbnail = paths.MeshThumbnail(mesh.ID)
			if _, retryErr := r.db.NamedExecContext(ctx, meshInsert, mesh); retryErr != nil {
				return fmt.Errorf("create mesh: %w", retryErr)
			}
			return nil
		}
		return fmt.Errorf("create mesh: %w", ErrVerboseIDTaken)
	}
	return fmt.Errorf("create mesh: %w", err)
}

// Update modifies an existing mesh, recomputing and revalidating the
// verbose_id regardless of which fields changed.
func (r *MeshRepository) Update(ctx context.Context, mesh *models.Mesh) error {
	mesh.UpdatedAt = time.Now().UTC()
	mesh.VerboseID = mesh.DeriveVerboseID()
	const query = `UPDATE meshes SET name = :name, description = :description,
		country = :country, state = :state, district = :district,
		verbose_id = :verbose_id, center_image = :center_image,
		rota_x = :rota_x, rota_y = :rota_y, rota_z = :rota_z,
		orient_mesh = :orient_mesh, min_obs_angle = :min_obs_angle, denoise = :denoise,
		updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, mesh); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update mesh: %w", ErrVerboseIDTaken)
		}
		return fmt.Errorf("update mesh: %w", err)
	}
	return nil
}

// UpdateStatus moves the mesh lifecycle state, optionally stamping the
// last-reconstructed timestamp.
func (r *MeshRepository) UpdateStatus(ctx context.Context, id string, status models.MeshStatus, reconstructedAt *time.Time) error {
	const query = `UPDATE meshes SET status = $2, reconstructed_at = COALESCE($3, reconstructed_at), updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, reconstructedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update mesh status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetCompleted toggles the intake gate.
func (r *MeshRepository) SetCompleted(ctx context.Context, id string, completed bool) error {
	const query = `UPDATE meshes SET completed = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, completed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set mesh completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetHidden toggles the visibility gate.
func (r *MeshRepository) SetHidden(ctx context.Context, id string, hidden bool) error {
	const query = `UPDATE meshes SET hidden = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, hidden, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set mesh hidden: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const meshColumns = `id, name, description, country, state, district, preview, thumbnail, verbose_id, status,
	completed, hidden, center_image, rota_x, rota_y, rota_z, orient_mesh, min_obs_angle, denoise,
	created_at, updated_at, reconstructed_at`

// FindByID fetches a mesh by its short ID.
func (r *MeshRepository) FindByID(ctx context.Context, id string) (*models.Mesh, error) {
	var mesh models.Mesh
	query := fmt.Sprintf("SELECT %s FROM meshes WHERE id = $1", meshColumns)
	if err := r.db.GetContext(ctx, &mesh, query, id); err != nil {
		return nil, err
	}
	return &mesh, nil
}

// FindByVerboseID fetches a mesh by its location slug.
func (r *MeshRepository) FindByVerboseID(ctx context.Context, verboseID string) (*models.Mesh, error) {
	var mesh models.Mesh
	query := fmt.Sprintf("SELECT %s FROM meshes WHERE verbose_id = $1", meshColumns)
	if err := r.db.GetContext(ctx, &mesh, query, verboseID); err != nil {
		return nil, err
	}
	return &mesh, nil
}

// ListPublic returns non-hidden meshes, newest activity first.
func (r *MeshRepository) ListPublic(ctx context.Context) ([]models.Mesh, error) {
	var meshes []models.Mesh
	query := fmt.Sprintf("SELECT %s FROM meshes WHERE hidden = false ORDER BY updated_at DESC", meshColumns)
	if err := r.db.SelectContext(ctx, &meshes, query); err != nil {
		return nil, fmt.Errorf("list public meshes: %w", err)
	}
	return meshes, nil
}

// List returns meshes matching the provided filters.
func (r *MeshRepository) List(ctx context.Context, filter models.MeshFilter) ([]models.Mesh, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Completed != nil {
		conditions = append(conditions, fmt.Sprintf("completed = $%d", len(args)+1))
		args = append(args, *filter.Completed)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(verbose_id) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM meshes WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d",
		meshColumns, where, size, offset)

	var meshes []models.Mesh
	if err := r.db.SelectContext(ctx, &meshes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list meshes: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM meshes WHERE %s", where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count meshes: %w", err)
	}
	return meshes, total, nil
}

// ListReconstructible returns IDs of meshes eligible for a new run: at
// least minImages vetted-good images in processed contributions and no
// run currently in flight.
func (r *MeshRepository) ListReconstructible(ctx context.Context, minImages int) ([]string, error) {
	const query = `SELECT m.id FROM meshes m
		WHERE m.completed = false
		  AND NOT EXISTS (SELECT 1 FROM runs r WHERE r.mesh_id = m.id AND r.status = 'Processing')
		  AND (SELECT COUNT(*) FROM images i
		         JOIN contributions c ON c.id = i.contribution_id
		        WHERE c.mesh_id = m.id AND c.processed = true AND i.label = 'good') >= $1
		ORDER BY m.updated_at ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, minImages); err != nil {
		return nil, fmt.Errorf("list reconstructible meshes: %w", err)
	}
	return ids, nil
}
