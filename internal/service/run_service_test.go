package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/internal/repository"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
	"github.com/openheritage/arkmesh/pkg/jobs"
	"github.com/openheritage/arkmesh/pkg/paths"
)

func jobsJob(run *models.Run, attempt int) jobs.Job {
	return jobs.Job{
		ID:      run.ID,
		Type:    "reconstruction",
		Attempt: attempt,
		Payload: RunJobPayload{RunID: run.ID, MeshID: run.MeshID},
	}
}

type mockRunRepo struct {
	runs        map[string]*models.Run
	active      map[string]bool
	attachedImg map[string][]string
	attachedCon map[string][]string
	deleted     []string
	createErr   error
}

func newMockRunRepo() *mockRunRepo {
	return &mockRunRepo{
		runs:        make(map[string]*models.Run),
		active:      make(map[string]bool),
		attachedImg: make(map[string][]string),
		attachedCon: make(map[string][]string),
	}
}

func (m *mockRunRepo) Create(ctx context.Context, run *models.Run) error {
	if m.createErr != nil {
		return m.createErr
	}
	if run.ID == "" {
		run.ID = "run-generated"
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.RunStatusProcessing
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockRunRepo) AssignDirectory(ctx context.Context, id, directory string) error {
	run, ok := m.runs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if run.Directory != "" && run.Directory != directory {
		return repository.ErrDirectoryAssigned
	}
	run.Directory = directory
	return nil
}

func (m *mockRunRepo) BindArk(ctx context.Context, id, ark string) error {
	run, ok := m.runs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if run.Ark != nil {
		return repository.ErrArkAlreadyBound
	}
	run.Ark = &ark
	return nil
}

func (m *mockRunRepo) Archive(ctx context.Context, id string, endedAt time.Time) error {
	run, ok := m.runs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if run.Status != models.RunStatusProcessing {
		return repository.ErrTerminalState
	}
	if run.Ark == nil {
		return repository.ErrArkNotBound
	}
	run.Status = models.RunStatusArchived
	run.EndedAt = &endedAt
	return nil
}

func (m *mockRunRepo) Fail(ctx context.Context, id string, endedAt time.Time) error {
	run, ok := m.runs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if run.Status != models.RunStatusProcessing {
		return repository.ErrTerminalState
	}
	run.Status = models.RunStatusError
	run.EndedAt = &endedAt
	return nil
}

func (m *mockRunRepo) AttachContributors(ctx context.Context, runID string, contributorIDs []string) error {
	m.attachedCon[runID] = append(m.attachedCon[runID], contributorIDs...)
	return nil
}

func (m *mockRunRepo) AttachImages(ctx context.Context, runID string, imageIDs []string) error {
	m.attachedImg[runID] = append(m.attachedImg[runID], imageIDs...)
	return nil
}

func (m *mockRunRepo) CountAttachments(ctx context.Context, runID string) (int, int, error) {
	return len(m.attachedCon[runID]), len(m.attachedImg[runID]), nil
}

func (m *mockRunRepo) FindByID(ctx context.Context, id string) (*models.Run, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *run
	return &cp, nil
}

func (m *mockRunRepo) ListByMesh(ctx context.Context, meshID string) ([]models.Run, error) {
	var out []models.Run
	for _, run := range m.runs {
		if run.MeshID == meshID {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (m *mockRunRepo) HasActive(ctx context.Context, meshID string) (bool, error) {
	return m.active[meshID], nil
}

func (m *mockRunRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.runs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.runs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockRunMeshRepo struct {
	meshes map[string]*models.Mesh
}

func (m *mockRunMeshRepo) FindByID(ctx context.Context, id string) (*models.Mesh, error) {
	mesh, ok := m.meshes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *mesh
	return &cp, nil
}

func (m *mockRunMeshRepo) UpdateStatus(ctx context.Context, id string, status models.MeshStatus, reconstructedAt *time.Time) error {
	mesh, ok := m.meshes[id]
	if !ok {
		return sql.ErrNoRows
	}
	mesh.Status = status
	if reconstructedAt != nil {
		mesh.ReconstructedAt = reconstructedAt
	}
	return nil
}

type mockUsableImages struct {
	images       []models.Image
	contributors []string
}

func (m *mockUsableImages) ListUsableByMesh(ctx context.Context, meshID string) ([]models.Image, error) {
	return m.images, nil
}

func (m *mockUsableImages) ContributorIDs(ctx context.Context, imageIDs []string) ([]string, error) {
	return m.contributors, nil
}

type mockArkMinter struct {
	minted   []*models.ARK
	mintErr  error
	resolved map[string]*models.ARK
}

func (m *mockArkMinter) Mint(ctx context.Context, url string, metadata models.ARKMetadata) (*models.ARK, error) {
	if m.mintErr != nil {
		return nil, m.mintErr
	}
	ark := &models.ARK{
		Ark:          "99999/fk4test001",
		NAAN:         "99999",
		Shoulder:     "/fk4",
		AssignedName: "test001",
		URL:          url,
		Metadata:     metadata,
		Commitment:   "kept",
	}
	m.minted = append(m.minted, ark)
	if m.resolved == nil {
		m.resolved = make(map[string]*models.ARK)
	}
	m.resolved[ark.Ark] = ark
	return ark, nil
}

func (m *mockArkMinter) Resolve(ctx context.Context, raw string) (*models.ARK, error) {
	if ark, ok := m.resolved[raw]; ok {
		return ark, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "ark not found")
}

func (m *mockArkMinter) ResolverURL(ark string) string {
	return "https://n2t.net/ark:/" + ark
}

type stubEngine struct {
	artifact string
	err      error
	calls    int
}

func (e *stubEngine) Reconstruct(ctx context.Context, req EngineRequest) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	return e.artifact, nil
}

func usableImages(n int) []models.Image {
	images := make([]models.Image, n)
	for i := range images {
		images[i] = models.Image{ID: string(rune('a' + i)), Label: models.ImageLabelGood}
	}
	return images
}

func newRunFixture(t *testing.T) (*RunService, *mockRunRepo, *mockRunMeshRepo, *mockArkMinter) {
	t.Helper()
	runs := newMockRunRepo()
	meshes := &mockRunMeshRepo{meshes: map[string]*models.Mesh{
		"mesh1": {
			ID: "mesh1", Name: "Lingaraj Temple",
			Country: "India", State: "Odisha", District: "Khordha",
			VerboseID: "India__Odisha__Khordha__Lingaraj_Temple",
			Status:    models.MeshStatusPending,
		},
	}}
	images := &mockUsableImages{images: usableImages(3), contributors: []string{"contrib1", "contrib2"}}
	arks := &mockArkMinter{}
	svc := NewRunService(runs, meshes, images, arks, &stubEngine{artifact: "out.glb"}, nil, nil,
		NewMetricsService(), zap.NewNop(), 2, 1, "http://localhost:9000")
	return svc, runs, meshes, arks
}

func TestRunServiceStart(t *testing.T) {
	svc, runs, meshes, _ := newRunFixture(t)

	run, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusProcessing, run.Status)
	assert.Equal(t, paths.RunCacheDir("mesh1", run.ID, run.StartedAt), run.Directory)
	assert.Equal(t, models.MeshStatusProcessing, meshes.meshes["mesh1"].Status)
	assert.Len(t, runs.attachedImg[run.ID], 3)
	assert.Len(t, runs.attachedCon[run.ID], 2)
}

func TestRunServiceStartRejectsConcurrentRun(t *testing.T) {
	svc, runs, _, _ := newRunFixture(t)
	runs.active["mesh1"] = true

	_, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	assert.ErrorIs(t, err, appErrors.ErrIllegalTransition)
}

func TestRunServiceStartLosesInsertRace(t *testing.T) {
	svc, runs, _, _ := newRunFixture(t)
	// HasActive saw nothing, but a concurrent start won the insert and
	// the unique index on active runs fired.
	runs.createErr = repository.ErrActiveRunExists

	_, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	assert.ErrorIs(t, err, appErrors.ErrIllegalTransition)
}

func TestRunServiceStartRequiresEnoughImages(t *testing.T) {
	svc, _, _, _ := newRunFixture(t)
	svc.images = &mockUsableImages{images: usableImages(1)}

	_, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRunServiceCompleteArchivesWithArk(t *testing.T) {
	svc, runs, meshes, arks := newRunFixture(t)

	run, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	require.NoError(t, err)

	require.NoError(t, svc.Complete(context.Background(), run.ID, run.Directory+"/mesh.glb"))

	archived := runs.runs[run.ID]
	assert.Equal(t, models.RunStatusArchived, archived.Status)
	require.NotNil(t, archived.Ark)
	assert.Equal(t, "99999/fk4test001", *archived.Ark)
	require.Len(t, arks.minted, 1)
	assert.Equal(t, "http://localhost:9000/"+run.Directory+"/mesh.glb", arks.minted[0].URL)

	mesh := meshes.meshes["mesh1"]
	assert.Equal(t, models.MeshStatusLive, mesh.Status)
	assert.NotNil(t, mesh.ReconstructedAt)
}

func TestRunServiceCompleteRejectsFinishedRun(t *testing.T) {
	svc, runs, _, _ := newRunFixture(t)

	run, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.Complete(context.Background(), run.ID, "out.glb"))

	err = svc.Complete(context.Background(), run.ID, "out.glb")
	assert.ErrorIs(t, err, appErrors.ErrIllegalTransition)
	assert.Equal(t, models.RunStatusArchived, runs.runs[run.ID].Status)
}

func TestRunServiceFailMarksMesh(t *testing.T) {
	svc, runs, meshes, _ := newRunFixture(t)

	run, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	require.NoError(t, err)

	require.NoError(t, svc.Fail(context.Background(), run.ID))
	assert.Equal(t, models.RunStatusError, runs.runs[run.ID].Status)
	assert.Equal(t, models.MeshStatusError, meshes.meshes["mesh1"].Status)
}

func TestRunServiceRetryRequiresErrorState(t *testing.T) {
	svc, _, meshes, _ := newRunFixture(t)

	_, err := svc.Retry(context.Background(), "mesh1", StartRunRequest{})
	assert.ErrorIs(t, err, appErrors.ErrIllegalTransition)

	meshes.meshes["mesh1"].Status = models.MeshStatusError
	run, err := svc.Retry(context.Background(), "mesh1", StartRunRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusProcessing, run.Status)
}

func TestRunServiceCancelOnlyInFlight(t *testing.T) {
	svc, runs, meshes, _ := newRunFixture(t)

	run, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), run.ID))
	assert.Equal(t, models.RunStatusError, runs.runs[run.ID].Status)
	assert.Equal(t, models.MeshStatusPending, meshes.meshes["mesh1"].Status)

	err = svc.Cancel(context.Background(), run.ID)
	assert.ErrorIs(t, err, appErrors.ErrIllegalTransition)
}

func TestRunServiceDeleteKeepsArkRecord(t *testing.T) {
	svc, runs, _, arks := newRunFixture(t)

	run, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.Complete(context.Background(), run.ID, "out.glb"))

	require.NoError(t, svc.Delete(context.Background(), run.ID))
	assert.Contains(t, runs.deleted, run.ID)

	resolved, err := arks.Resolve(context.Background(), "99999/fk4test001")
	require.NoError(t, err)
	assert.NotNil(t, resolved)
}

func TestRunServiceCitationRequiresArchivedRun(t *testing.T) {
	svc, _, _, _ := newRunFixture(t)

	run, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	require.NoError(t, err)

	_, err = svc.Citation(context.Background(), run.ID)
	assert.ErrorIs(t, err, appErrors.ErrIllegalTransition)

	require.NoError(t, svc.Complete(context.Background(), run.ID, "out.glb"))
	pdf, err := svc.Citation(context.Background(), run.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
}

func TestRunServiceHandleReconstructionFailsAfterRetries(t *testing.T) {
	svc, runs, meshes, _ := newRunFixture(t)
	engine := &stubEngine{err: errors.New("engine crashed")}
	svc.engine = engine

	run, err := svc.Start(context.Background(), "mesh1", StartRunRequest{})
	require.NoError(t, err)

	// First attempt: error propagates, run stays in flight for the retry.
	err = svc.HandleReconstruction(context.Background(), jobsJob(run, 0))
	assert.Error(t, err)
	assert.Equal(t, models.RunStatusProcessing, runs.runs[run.ID].Status)

	// Final attempt: failure is recorded.
	err = svc.HandleReconstruction(context.Background(), jobsJob(run, 1))
	assert.Error(t, err)
	assert.Equal(t, models.RunStatusError, runs.runs[run.ID].Status)
	assert.Equal(t, models.MeshStatusError, meshes.meshes["mesh1"].Status)
}
