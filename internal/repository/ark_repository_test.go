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

func newArkMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func testARK() *models.ARK {
	return &models.ARK{
		Ark:          "99999/fk4abc123",
		NAAN:         "99999",
		Shoulder:     "/fk4",
		AssignedName: "abc123",
		URL:          "https://arkmesh.example.org/models/M0000000000000001",
		Metadata:     models.ARKMetadata{"monument": "Lingaraj Temple"},
		Commitment:   "preserved indefinitely",
	}
}

func TestARKRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newArkMock(t)
	defer cleanup()
	repo := NewARKRepository(db)

	mock.ExpectExec("INSERT INTO arks").
		WithArgs(anyArgs(8)...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), testARK()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestARKRepositoryCreateRejectsInvalidRecord(t *testing.T) {
	db, mock, cleanup := newArkMock(t)
	defer cleanup()
	repo := NewARKRepository(db)

	ark := testARK()
	ark.AssignedName = "mismatch"

	err := repo.Create(context.Background(), ark)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestARKRepositoryCreateNameCollision(t *testing.T) {
	db, mock, cleanup := newArkMock(t)
	defer cleanup()
	repo := NewARKRepository(db)

	mock.ExpectExec("INSERT INTO arks").
		WithArgs(anyArgs(8)...).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "arks_pkey"})

	err := repo.Create(context.Background(), testARK())
	assert.ErrorIs(t, err, ErrArkTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestARKRepositoryUpdateBindingRevalidates(t *testing.T) {
	db, mock, cleanup := newArkMock(t)
	defer cleanup()
	repo := NewARKRepository(db)

	record := testARK()
	record.CreatedAt = time.Now().UTC()
	metadataValue, err := record.Metadata.Value()
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"ark", "naan", "shoulder", "assigned_name", "created_at", "url", "metadata", "commitment"}).
		AddRow(record.Ark, record.NAAN, record.Shoulder, record.AssignedName, record.CreatedAt, record.URL, metadataValue, record.Commitment)
	mock.ExpectQuery("FROM arks WHERE ark").
		WithArgs(record.Ark).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE arks SET url").
		WithArgs(record.Ark, "https://arkmesh.example.org/models/corrected", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateBinding(context.Background(), record.Ark,
		"https://arkmesh.example.org/models/corrected", record.Metadata)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestARKRepositoryUpdateBindingRejectsEmptyURL(t *testing.T) {
	db, mock, cleanup := newArkMock(t)
	defer cleanup()
	repo := NewARKRepository(db)

	record := testARK()
	record.CreatedAt = time.Now().UTC()
	metadataValue, err := record.Metadata.Value()
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"ark", "naan", "shoulder", "assigned_name", "created_at", "url", "metadata", "commitment"}).
		AddRow(record.Ark, record.NAAN, record.Shoulder, record.AssignedName, record.CreatedAt, record.URL, metadataValue, record.Commitment)
	mock.ExpectQuery("FROM arks WHERE ark").
		WithArgs(record.Ark).
		WillReturnRows(rows)

	err = repo.UpdateBinding(context.Background(), record.Ark, "", record.Metadata)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
