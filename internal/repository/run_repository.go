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

// RunRepository manages persistence for reconstruction runs. The
// directory is assigned in a second, single-field write after the insert
// (the derivation needs the allocated ID and start timestamp) and is
// never recomputed once set. Deleting a run never touches its ARK: the
// runs.ark column only references the arks table, so the archival record
// outlives the run by construction.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository constructs a RunRepository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runInsert = `INSERT INTO runs (id, mesh_id, ark, started_at, ended_at, directory, status, rota_x, rota_y, rota_z)
	VALUES (:id, :mesh_id, :ark, :started_at, :ended_at, :directory, :status, :rota_x, :rota_y, :rota_z)`

// Create inserts a new run in Processing state. An identifier collision
// is retried once with a fresh allocation. The partial unique index on
// active runs rejects a second Processing run for the same mesh, which
// closes the gap between a HasActive check and the insert.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = ident.NewShortID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.RunStatusProcessing
	}

	_, err := r.db.NamedExecContext(ctx, runInsert, run)
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		switch constraintName(err) {
		case "runs_one_active":
			return fmt.Errorf("create run: %w", ErrActiveRunExists)
		case "runs_pkey":
			run.ID = ident.NewShortID()
			if _, retryErr := r.db.NamedExecContext(ctx, runInsert, run); retryErr != nil {
				return fmt.Errorf("create run: %w", retryErr)
			}
			return nil
		}
	}
	return fmt.Errorf("create run: %w", err)
}

// AssignDirectory performs the second phase of run creation. The guarded
// UPDATE only fires while the directory is still empty, which makes the
// step idempotent under retry: a repeat with the same derived value is a
// no-op, a repeat with a different value is rejected.
func (r *RunRepository) AssignDirectory(ctx context.Context, id, directory string) error {
	const query = `UPDATE runs SET directory = $2 WHERE id = $1 AND directory = ''`
	res, err := r.db.ExecContext(ctx, query, id, directory)
	if err != nil {
		return fmt.Errorf("assign run directory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign run directory: %w", err)
	}
	if n == 1 {
		return nil
	}

	var existing string
	if err := r.db.GetContext(ctx, &existing, `SELECT directory FROM runs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("assign run directory: %w", err)
	}
	if existing == directory {
		return nil
	}
	return ErrDirectoryAssigned
}

// BindArk attaches the minted ARK to a run, at most once.
func (r *RunRepository) BindArk(ctx context.Context, id, ark string) error {
	const query = `UPDATE runs SET ark = $2 WHERE id = $1 AND ark IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, ark)
	if err != nil {
		return fmt.Errorf("bind ark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bind ark: %w", err)
	}
	if n == 0 {
		var exists int
		if err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM runs WHERE id = $1`, id); err != nil {
			return fmt.Errorf("bind ark: %w", err)
		}
		return ErrArkAlreadyBound
	}
	return nil
}

// Archive moves a Processing run to its terminal Archived state. Only
// permitted once an ARK is bound; the guarded UPDATE cannot archive an
// unbound or already-terminal run.
func (r *RunRepository) Archive(ctx context.Context, id string, endedAt time.Time) error {
	const query = `UPDATE runs SET status = $2, ended_at = $3
		WHERE id = $1 AND status = $4 AND ark IS NOT NULL`
	res, err := r.db.ExecContext(ctx, query, id, models.RunStatusArchived, endedAt.UTC(), models.RunStatusProcessing)
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	if n == 1 {
		return nil
	}

	run, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if run.Ark == nil {
		return ErrArkNotBound
	}
	return ErrTerminalState
}

// Fail moves a Processing run to its terminal Error state.
func (r *RunRepository) Fail(ctx context.Context, id string, endedAt time.Time) error {
	const query = `UPDATE runs SET status = $2, ended_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.RunStatusError, endedAt.UTC(), models.RunStatusProcessing)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	if n == 0 {
		var exists int
		if err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM runs WHERE id = $1`, id); err != nil {
			return err
		}
		return ErrTerminalState
	}
	return nil
}

// AttachContributors records the set of contributors a run consumed.
func (r *RunRepository) AttachContributors(ctx context.Context, runID string, contributorIDs []string) error {
	const query = `INSERT INTO run_contributors (run_id, contributor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, id := range contributorIDs {
		if _, err := r.db.ExecContext(ctx, query, runID, id); err != nil {
			return fmt.Errorf("attach run contributor: %w", err)
		}
	}
	return nil
}

// AttachImages records the set of images a run consumed.
func (r *RunRepository) AttachImages(ctx context.Context, runID string, imageIDs []string) error {
	const query = `INSERT INTO run_images (run_id, image_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, id := range imageIDs {
		if _, err := r.db.ExecContext(ctx, query, runID, id); err != nil {
			return fmt.Errorf("attach run image: %w", err)
		}
	}
	return nil
}

// CountAttachments returns how many contributors and images a run used.
func (r *RunRepository) CountAttachments(ctx context.Context, runID string) (contributors, images int, err error) {
	if err = r.db.GetContext(ctx, &contributors,
		`SELECT COUNT(*) FROM run_contributors WHERE run_id = $1`, runID); err != nil {
		return 0, 0, fmt.Errorf("count run contributors: %w", err)
	}
	if err = r.db.GetContext(ctx, &images,
		`SELECT COUNT(*) FROM run_images WHERE run_id = $1`, runID); err != nil {
		return 0, 0, fmt.Errorf("count run images: %w", err)
	}
	return contributors, images, nil
}

const runColumns = `id, mesh_id, ark, started_at, ended_at, directory, status, rota_x, rota_y, rota_z`

// FindByID fetches a run by its short ID.
func (r *RunRepository) FindByID(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	query := fmt.Sprintf("SELECT %s FROM runs WHERE id = $1", runColumns)
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListByMesh returns runs for a mesh, newest first.
func (r *RunRepository) ListByMesh(ctx context.Context, meshID string) ([]models.Run, error) {
	var runs []models.Run
	query := fmt.Sprintf("SELECT %s FROM runs WHERE mesh_id = $1 ORDER BY started_at DESC", runColumns)
	if err := r.db.SelectContext(ctx, &runs, query, meshID); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// HasActive reports whether the mesh has a run still in Processing.
func (r *RunRepository) HasActive(ctx context.Context, meshID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists,
		`SELECT 1 FROM runs WHERE mesh_id = $1 AND status = $2 LIMIT 1`, meshID, models.RunStatusProcessing)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active run: %w", err)
	}
	return true, nil
}

// Delete removes a run and its join rows. The ARK row, if any, is left
// untouched: archival identifiers outlive the runs they were minted for.
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_contributors WHERE run_id = $1`, id); err != nil {
		return fmt.Errorf("delete run contributors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_images WHERE run_id = $1`, id); err != nil {
		return fmt.Errorf("delete run images: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run delete: %w", err)
	}
	return nil
}
