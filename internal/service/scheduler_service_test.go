package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openheritage/arkmesh/internal/models"
)

type mockReconstructibleLister struct {
	ids []string
}

func (m *mockReconstructibleLister) ListReconstructible(ctx context.Context, minImages int) ([]string, error) {
	return m.ids, nil
}

func TestSchedulerSweepStartsRuns(t *testing.T) {
	runs := newMockRunRepo()
	meshes := &mockRunMeshRepo{meshes: map[string]*models.Mesh{
		"meshA": {ID: "meshA", Name: "A", Country: "India", State: "Odisha", District: "Puri", Status: models.MeshStatusPending},
		"meshB": {ID: "meshB", Name: "B", Country: "India", State: "Odisha", District: "Puri", Status: models.MeshStatusPending},
	}}
	images := &mockUsableImages{images: usableImages(5), contributors: []string{"c1"}}
	runSvc := NewRunService(runs, meshes, images, &mockArkMinter{}, &stubEngine{artifact: "out.glb"}, nil, nil,
		NewMetricsService(), zap.NewNop(), 2, 1, "http://localhost:9000")

	// meshB already has a run in flight; the sweep must skip it quietly.
	runs.active["meshB"] = true

	scheduler := NewSchedulerService(&mockReconstructibleLister{ids: []string{"meshA", "meshB"}}, runSvc, "@daily", zap.NewNop())
	scheduler.Sweep(context.Background())

	assert.Equal(t, models.MeshStatusProcessing, meshes.meshes["meshA"].Status)
	assert.Equal(t, models.MeshStatusPending, meshes.meshes["meshB"].Status)

	started := 0
	for _, run := range runs.runs {
		require.Equal(t, models.RunStatusProcessing, run.Status)
		started++
	}
	assert.Equal(t, 1, started)
}
