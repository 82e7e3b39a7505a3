package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/internal/repository"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
)

type mockMeshRepo struct {
	meshes    map[string]*models.Mesh
	createErr error
	updateErr error
	public    []models.Mesh
}

func newMockMeshRepo() *mockMeshRepo {
	return &mockMeshRepo{meshes: make(map[string]*models.Mesh)}
}

func (m *mockMeshRepo) Create(ctx context.Context, mesh *models.Mesh) error {
	if m.createErr != nil {
		return m.createErr
	}
	if mesh.ID == "" {
		mesh.ID = fmt.Sprintf("mesh-%d", len(m.meshes)+1)
	}
	mesh.VerboseID = mesh.DeriveVerboseID()
	cp := *mesh
	m.meshes[mesh.ID] = &cp
	return nil
}

func (m *mockMeshRepo) Update(ctx context.Context, mesh *models.Mesh) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	mesh.VerboseID = mesh.DeriveVerboseID()
	cp := *mesh
	m.meshes[mesh.ID] = &cp
	return nil
}

func (m *mockMeshRepo) UpdateStatus(ctx context.Context, id string, status models.MeshStatus, reconstructedAt *time.Time) error {
	mesh, ok := m.meshes[id]
	if !ok {
		return sql.ErrNoRows
	}
	mesh.Status = status
	return nil
}

func (m *mockMeshRepo) SetCompleted(ctx context.Context, id string, completed bool) error {
	mesh, ok := m.meshes[id]
	if !ok {
		return sql.ErrNoRows
	}
	mesh.Completed = completed
	return nil
}

func (m *mockMeshRepo) SetHidden(ctx context.Context, id string, hidden bool) error {
	mesh, ok := m.meshes[id]
	if !ok {
		return sql.ErrNoRows
	}
	mesh.Hidden = hidden
	return nil
}

func (m *mockMeshRepo) FindByID(ctx context.Context, id string) (*models.Mesh, error) {
	mesh, ok := m.meshes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *mesh
	return &cp, nil
}

func (m *mockMeshRepo) FindByVerboseID(ctx context.Context, verboseID string) (*models.Mesh, error) {
	for _, mesh := range m.meshes {
		if mesh.VerboseID == verboseID {
			cp := *mesh
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockMeshRepo) ListPublic(ctx context.Context) ([]models.Mesh, error) {
	return m.public, nil
}

func (m *mockMeshRepo) List(ctx context.Context, filter models.MeshFilter) ([]models.Mesh, int, error) {
	var out []models.Mesh
	for _, mesh := range m.meshes {
		out = append(out, *mesh)
	}
	return out, len(out), nil
}

func newMeshFixture() (*MeshService, *mockMeshRepo) {
	repo := newMockMeshRepo()
	svc := NewMeshService(repo, &mockMediaWriter{}, nil, nil, zap.NewNop(), 400, 60, time.Minute)
	return svc, repo
}

func TestMeshServiceCreate(t *testing.T) {
	svc, _ := newMeshFixture()

	mesh, err := svc.Create(context.Background(), CreateMeshRequest{
		Name:     "Lingaraj Temple",
		Country:  "India",
		State:    "Odisha",
		District: "Khordha",
	})
	require.NoError(t, err)
	assert.Equal(t, "India__Odisha__Khordha__Lingaraj_Temple", mesh.VerboseID)
}

func TestMeshServiceCreateValidation(t *testing.T) {
	svc, _ := newMeshFixture()

	_, err := svc.Create(context.Background(), CreateMeshRequest{Name: "No Location"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestMeshServiceCreateDuplicateSlug(t *testing.T) {
	svc, repo := newMeshFixture()
	repo.createErr = repository.ErrVerboseIDTaken

	_, err := svc.Create(context.Background(), CreateMeshRequest{
		Name: "Dup", Country: "India", State: "Odisha", District: "Khordha",
	})
	assert.ErrorIs(t, err, appErrors.ErrUniqueness)
}

func TestMeshServiceUpdateRecomputesSlug(t *testing.T) {
	svc, repo := newMeshFixture()
	created, err := svc.Create(context.Background(), CreateMeshRequest{
		Name: "Old Name", Country: "India", State: "Odisha", District: "Khordha",
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, UpdateMeshRequest{
		Name: "New Name", Country: "India", State: "Odisha", District: "Khordha",
	})
	require.NoError(t, err)
	assert.Equal(t, "India__Odisha__Khordha__New_Name", updated.VerboseID)
	assert.Equal(t, updated.VerboseID, repo.meshes[created.ID].VerboseID)
}

func TestMeshServiceGetNotFound(t *testing.T) {
	svc, _ := newMeshFixture()

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestMeshServiceToggles(t *testing.T) {
	svc, repo := newMeshFixture()
	created, err := svc.Create(context.Background(), CreateMeshRequest{
		Name: "Temple", Country: "India", State: "Odisha", District: "Puri",
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetCompleted(context.Background(), created.ID, true))
	assert.True(t, repo.meshes[created.ID].Completed)

	require.NoError(t, svc.SetHidden(context.Background(), created.ID, true))
	assert.True(t, repo.meshes[created.ID].Hidden)

	err = svc.SetCompleted(context.Background(), "missing", true)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
