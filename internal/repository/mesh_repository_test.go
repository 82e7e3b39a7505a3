package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/pkg/ident"
)

func newMeshMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func TestMeshRepositoryCreateDerivesFields(t *testing.T) {
	db, mock, cleanup := newMeshMock(t)
	defer cleanup()
	repo := NewMeshRepository(db)

	mock.ExpectExec("INSERT INTO meshes").
		WithArgs(anyArgs(22)...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mesh := &models.Mesh{
		Name:     "Lingaraj Temple",
		Country:  "India",
		State:    "Odisha",
		District: "Khordha",
	}
	require.NoError(t, repo.Create(context.Background(), mesh))

	assert.Len(t, mesh.ID, ident.ShortIDLength)
	assert.Equal(t, "India__Odisha__Khordha__Lingaraj_Temple", mesh.VerboseID)
	assert.Equal(t, "models/"+mesh.ID+"/"+mesh.ID+"_prev.png", mesh.Preview)
	assert.Equal(t, "models/"+mesh.ID+"/"+mesh.ID+"_thumb.png", mesh.Thumbnail)
	assert.Equal(t, models.MeshStatusPending, mesh.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeshRepositoryCreateRetriesIDCollision(t *testing.T) {
	db, mock, cleanup := newMeshMock(t)
	defer cleanup()
	repo := NewMeshRepository(db)

	mock.ExpectExec("INSERT INTO meshes").
		WithArgs(anyArgs(22)...).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "meshes_pkey"})
	mock.ExpectExec("INSERT INTO meshes").
		WithArgs(anyArgs(22)...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mesh := &models.Mesh{Name: "Konark Sun Temple", Country: "India", State: "Odisha", District: "Puri"}
	require.NoError(t, repo.Create(context.Background(), mesh))

	assert.Contains(t, mesh.Preview, mesh.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeshRepositoryCreateVerboseIDTaken(t *testing.T) {
	db, mock, cleanup := newMeshMock(t)
	defer cleanup()
	repo := NewMeshRepository(db)

	mock.ExpectExec("INSERT INTO meshes").
		WithArgs(anyArgs(22)...).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "meshes_verbose_id_key"})

	err := repo.Create(context.Background(), &models.Mesh{Name: "Dup", Country: "X", State: "Y", District: "Z"})
	assert.ErrorIs(t, err, ErrVerboseIDTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeshRepositoryUpdateRecomputesVerboseID(t *testing.T) {
	db, mock, cleanup := newMeshMock(t)
	defer cleanup()
	repo := NewMeshRepository(db)

	mock.ExpectExec("UPDATE meshes SET").
		WithArgs(anyArgs(15)...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mesh := &models.Mesh{
		ID:       "M0000000000000001",
		Name:     "Renamed Temple",
		Country:  "India",
		State:    "Odisha",
		District: "Khordha",
		// Stale slug from before the rename.
		VerboseID: "India__Odisha__Khordha__Old_Name",
	}
	require.NoError(t, repo.Update(context.Background(), mesh))

	assert.Equal(t, "India__Odisha__Khordha__Renamed_Temple", mesh.VerboseID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeshRepositorySetCompletedNotFound(t *testing.T) {
	db, mock, cleanup := newMeshMock(t)
	defer cleanup()
	repo := NewMeshRepository(db)

	mock.ExpectExec("UPDATE meshes SET completed").
		WithArgs("missing", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetCompleted(context.Background(), "missing", true)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeshRepositoryListReconstructible(t *testing.T) {
	db, mock, cleanup := newMeshMock(t)
	defer cleanup()
	repo := NewMeshRepository(db)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("meshA").AddRow("meshB")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT m.id FROM meshes m")).
		WithArgs(25).
		WillReturnRows(rows)

	ids, err := repo.ListReconstructible(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, []string{"meshA", "meshB"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
