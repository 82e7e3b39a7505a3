package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openheritage/arkmesh/internal/models"
)

func newRunMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func runRow(ark *string, status models.RunStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "mesh_id", "ark", "started_at", "ended_at", "directory", "status", "rota_x", "rota_y", "rota_z"}).
		AddRow("run1", "mesh1", ark, time.Now(), nil, "mesh1/cache/2024-03-02-10-15-00__run1", status, nil, nil, nil)
}

func TestRunRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(anyArgs(10)...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.Run{MeshID: "mesh1"}
	require.NoError(t, repo.Create(context.Background(), run))

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunStatusProcessing, run.Status)
	assert.False(t, run.StartedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryCreateNilRotationBindsNull(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	// The rotation override is optional; an omitted override must land
	// as NULL, not zero.
	args := anyArgs(7)
	args = append(args, nil, nil, nil)
	mock.ExpectExec("INSERT INTO runs").
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), &models.Run{MeshID: "mesh1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryCreateRejectsSecondActiveRun(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(anyArgs(10)...).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "runs_one_active"})

	err := repo.Create(context.Background(), &models.Run{MeshID: "mesh1"})
	assert.ErrorIs(t, err, ErrActiveRunExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryAssignDirectory(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec("UPDATE runs SET directory").
		WithArgs("run1", "mesh1/cache/2024-03-02-10-15-00__run1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AssignDirectory(context.Background(), "run1", "mesh1/cache/2024-03-02-10-15-00__run1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryAssignDirectoryRepeatSameValue(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	directory := "mesh1/cache/2024-03-02-10-15-00__run1"
	mock.ExpectExec("UPDATE runs SET directory").
		WithArgs("run1", directory).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT directory FROM runs").
		WithArgs("run1").
		WillReturnRows(sqlmock.NewRows([]string{"directory"}).AddRow(directory))

	require.NoError(t, repo.AssignDirectory(context.Background(), "run1", directory))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryAssignDirectoryConflict(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec("UPDATE runs SET directory").
		WithArgs("run1", "mesh1/cache/2024-03-02-11-00-00__run1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT directory FROM runs").
		WithArgs("run1").
		WillReturnRows(sqlmock.NewRows([]string{"directory"}).AddRow("mesh1/cache/2024-03-02-10-15-00__run1"))

	err := repo.AssignDirectory(context.Background(), "run1", "mesh1/cache/2024-03-02-11-00-00__run1")
	assert.ErrorIs(t, err, ErrDirectoryAssigned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryBindArkOnce(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec("UPDATE runs SET ark").
		WithArgs("run1", "99999/fk4abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.BindArk(context.Background(), "run1", "99999/fk4abc123"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryBindArkAlreadyBound(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec("UPDATE runs SET ark").
		WithArgs("run1", "99999/fk4xyz789").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM runs").
		WithArgs("run1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	err := repo.BindArk(context.Background(), "run1", "99999/fk4xyz789")
	assert.ErrorIs(t, err, ErrArkAlreadyBound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryArchiveRequiresArk(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	ended := time.Now().UTC()
	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("run1", models.RunStatusArchived, ended, models.RunStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").
		WithArgs("run1").
		WillReturnRows(runRow(nil, models.RunStatusProcessing))

	err := repo.Archive(context.Background(), "run1", ended)
	assert.ErrorIs(t, err, ErrArkNotBound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryArchiveTerminal(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	ark := "99999/fk4abc123"
	ended := time.Now().UTC()
	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("run1", models.RunStatusArchived, ended, models.RunStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").
		WithArgs("run1").
		WillReturnRows(runRow(&ark, models.RunStatusArchived))

	err := repo.Archive(context.Background(), "run1", ended)
	assert.ErrorIs(t, err, ErrTerminalState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryArchive(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	ended := time.Now().UTC()
	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("run1", models.RunStatusArchived, ended, models.RunStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Archive(context.Background(), "run1", ended))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryDeleteKeepsArk(t *testing.T) {
	db, mock, cleanup := newRunMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM run_contributors").
		WithArgs("run1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM run_images").
		WithArgs("run1").
		WillReturnResult(sqlmock.NewResult(0, 40))
	mock.ExpectExec("DELETE FROM runs").
		WithArgs("run1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "run1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
