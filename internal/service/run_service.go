package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/internal/repository"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
	"github.com/openheritage/arkmesh/pkg/export"
	"github.com/openheritage/arkmesh/pkg/jobs"
	"github.com/openheritage/arkmesh/pkg/paths"
)

type runRepository interface {
	Create(ctx context.Context, run *models.Run) error
	AssignDirectory(ctx context.Context, id, directory string) error
	BindArk(ctx context.Context, id, ark string) error
	Archive(ctx context.Context, id string, endedAt time.Time) error
	Fail(ctx context.Context, id string, endedAt time.Time) error
	AttachContributors(ctx context.Context, runID string, contributorIDs []string) error
	AttachImages(ctx context.Context, runID string, imageIDs []string) error
	CountAttachments(ctx context.Context, runID string) (int, int, error)
	FindByID(ctx context.Context, id string) (*models.Run, error)
	ListByMesh(ctx context.Context, meshID string) ([]models.Run, error)
	HasActive(ctx context.Context, meshID string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type runMeshRepository interface {
	FindByID(ctx context.Context, id string) (*models.Mesh, error)
	UpdateStatus(ctx context.Context, id string, status models.MeshStatus, reconstructedAt *time.Time) error
}

type usableImageRepository interface {
	ListUsableByMesh(ctx context.Context, meshID string) ([]models.Image, error)
	ContributorIDs(ctx context.Context, imageIDs []string) ([]string, error)
}

type arkMinter interface {
	Mint(ctx context.Context, url string, metadata models.ARKMetadata) (*models.ARK, error)
	Resolve(ctx context.Context, raw string) (*models.ARK, error)
	ResolverURL(ark string) string
}

// ArtifactPublisher uploads a finished model and returns its permanent
// public URL.
type ArtifactPublisher interface {
	PublishModel(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
}

// MediaOpener reads stored media files back for publishing.
type MediaOpener interface {
	Open(relPath string) (*os.File, error)
}

// StartRunRequest holds the optional viewer-rotation override for a run.
type StartRunRequest struct {
	RotaX *int `json:"rota_x"`
	RotaY *int `json:"rota_y"`
	RotaZ *int `json:"rota_z"`
}

// RunJobPayload is the queue payload for background reconstruction.
type RunJobPayload struct {
	RunID  string
	MeshID string
}

// RunService orchestrates the reconstruction lifecycle: starting runs,
// archiving successful ones behind a freshly minted ARK, failing broken
// ones and rendering citation records.
type RunService struct {
	runs      runRepository
	meshes    runMeshRepository
	images    usableImageRepository
	arks      arkMinter
	engine    Engine
	publisher ArtifactPublisher
	media     MediaOpener
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger

	minImages  int
	maxRetries int
	publicBase string
}

// NewRunService constructs the run service. The queue is attached later
// because the queue handler closes over the service itself.
func NewRunService(runs runRepository, meshes runMeshRepository, images usableImageRepository, arks arkMinter, engine Engine, publisher ArtifactPublisher, media MediaOpener, metrics *MetricsService, logger *zap.Logger, minImages, maxRetries int, publicBase string) *RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minImages <= 0 {
		minImages = 1
	}
	return &RunService{
		runs:       runs,
		meshes:     meshes,
		images:     images,
		arks:       arks,
		engine:     engine,
		publisher:  publisher,
		media:      media,
		metrics:    metrics,
		logger:     logger,
		minImages:  minImages,
		maxRetries: maxRetries,
		publicBase: publicBase,
	}
}

// AttachQueue wires the background queue used for engine dispatch.
func (s *RunService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// MinImages exposes the configured eligibility threshold.
func (s *RunService) MinImages() int {
	return s.minImages
}

// Start begins a reconstruction run for a mesh. At most one run per mesh
// may be in flight; the run snapshots the vetted images and their
// contributors at start time.
func (s *RunService) Start(ctx context.Context, meshID string, req StartRunRequest) (*models.Run, error) {
	mesh, err := s.meshes.FindByID(ctx, meshID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mesh not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mesh")
	}

	active, err := s.runs.HasActive(ctx, meshID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active runs")
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "a run is already in flight for this mesh")
	}

	images, err := s.images.ListUsableByMesh(ctx, meshID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect images")
	}
	if len(images) < s.minImages {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("mesh has %d usable images, %d required", len(images), s.minImages))
	}
	imageIDs := make([]string, len(images))
	for i, img := range images {
		imageIDs[i] = img.ID
	}

	contributorIDs, err := s.images.ContributorIDs(ctx, imageIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve contributors")
	}

	run := &models.Run{
		MeshID: meshID,
		RotaX:  req.RotaX,
		RotaY:  req.RotaY,
		RotaZ:  req.RotaZ,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		// The HasActive check above races with concurrent starts; the
		// unique index on active runs is the arbiter.
		if errors.Is(err, repository.ErrActiveRunExists) {
			return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "a run is already in flight for this mesh")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create run")
	}

	directory := paths.RunCacheDir(meshID, run.ID, run.StartedAt)
	if err := s.runs.AssignDirectory(ctx, run.ID, directory); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign run directory")
	}
	run.Directory = directory

	if err := s.runs.AttachImages(ctx, run.ID, imageIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot images")
	}
	if err := s.runs.AttachContributors(ctx, run.ID, contributorIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot contributors")
	}

	if err := s.meshes.UpdateStatus(ctx, meshID, models.MeshStatusProcessing, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mesh status")
	}

	s.metrics.RecordRunStarted()
	s.logger.Info("run started",
		zap.String("run_id", run.ID),
		zap.String("mesh_id", meshID),
		zap.Int("images", len(imageIDs)),
		zap.Int("contributors", len(contributorIDs)))

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{
			ID:      run.ID,
			Type:    "reconstruction",
			Payload: RunJobPayload{RunID: run.ID, MeshID: mesh.ID},
		}); err != nil {
			s.logger.Error("failed to enqueue reconstruction", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return run, nil
}

// Retry restarts reconstruction for a mesh whose last run failed.
func (s *RunService) Retry(ctx context.Context, meshID string, req StartRunRequest) (*models.Run, error) {
	mesh, err := s.meshes.FindByID(ctx, meshID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mesh not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mesh")
	}
	if mesh.Status != models.MeshStatusError {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "retry is only allowed from the Error state")
	}
	return s.Start(ctx, meshID, req)
}

// Complete archives a successful run: the artifact is published, an ARK
// is minted against its permanent URL, bound to the run, and the run and
// mesh move to their success states. Ordering matters: a run can only be
// archived after its ARK is bound.
func (s *RunService) Complete(ctx context.Context, runID, artifactPath string) error {
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != models.RunStatusProcessing {
		return appErrors.Clone(appErrors.ErrIllegalTransition, "run is not in flight")
	}
	mesh, err := s.meshes.FindByID(ctx, run.MeshID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mesh")
	}

	url, err := s.publishArtifact(ctx, mesh.ID, run.ID, artifactPath)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish artifact")
	}

	contributors, images, err := s.runs.CountAttachments(ctx, run.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count run inputs")
	}

	ark, err := s.arks.Mint(ctx, url, models.ARKMetadata{
		"monument":     mesh.Name,
		"location":     fmt.Sprintf("%s, %s, %s", mesh.District, mesh.State, mesh.Country),
		"mesh_id":      mesh.ID,
		"run_id":       run.ID,
		"contributors": contributors,
		"images":       images,
	})
	if err != nil {
		return err
	}

	if err := s.runs.BindArk(ctx, run.ID, ark.Ark); err != nil {
		if errors.Is(err, repository.ErrArkAlreadyBound) {
			return appErrors.Clone(appErrors.ErrIllegalTransition, "run already has a bound ark")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bind ark")
	}

	ended := time.Now().UTC()
	if err := s.runs.Archive(ctx, run.ID, ended); err != nil {
		switch {
		case errors.Is(err, repository.ErrArkNotBound), errors.Is(err, repository.ErrTerminalState):
			return appErrors.Clone(appErrors.ErrIllegalTransition, "run cannot be archived")
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive run")
		}
	}

	if err := s.meshes.UpdateStatus(ctx, run.MeshID, models.MeshStatusLive, &ended); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mesh status")
	}

	s.metrics.RecordRunArchived(ended.Sub(run.StartedAt))
	s.logger.Info("run archived",
		zap.String("run_id", run.ID),
		zap.String("mesh_id", run.MeshID),
		zap.String("ark", ark.Ark),
		zap.String("url", url))
	return nil
}

// Fail moves a Processing run to Error and marks the mesh accordingly.
func (s *RunService) Fail(ctx context.Context, runID string) error {
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return err
	}
	ended := time.Now().UTC()
	if err := s.runs.Fail(ctx, run.ID, ended); err != nil {
		if errors.Is(err, repository.ErrTerminalState) {
			return appErrors.Clone(appErrors.ErrIllegalTransition, "run is already finished")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fail run")
	}
	if err := s.meshes.UpdateStatus(ctx, run.MeshID, models.MeshStatusError, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mesh status")
	}
	s.metrics.RecordRunFailed(ended.Sub(run.StartedAt))
	s.logger.Warn("run failed", zap.String("run_id", run.ID), zap.String("mesh_id", run.MeshID))
	return nil
}

// Cancel abandons an in-flight run. The mesh returns to Pending so a new
// run can be scheduled; the run itself ends in Error.
func (s *RunService) Cancel(ctx context.Context, runID string) error {
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != models.RunStatusProcessing {
		return appErrors.Clone(appErrors.ErrIllegalTransition, "only an in-flight run can be cancelled")
	}
	ended := time.Now().UTC()
	if err := s.runs.Fail(ctx, run.ID, ended); err != nil {
		if errors.Is(err, repository.ErrTerminalState) {
			return appErrors.Clone(appErrors.ErrIllegalTransition, "run is already finished")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel run")
	}
	if err := s.meshes.UpdateStatus(ctx, run.MeshID, models.MeshStatusPending, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mesh status")
	}
	s.logger.Info("run cancelled", zap.String("run_id", run.ID))
	return nil
}

// Delete removes a run record. The ARK, if one was minted, is permanent
// and survives the deletion.
func (s *RunService) Delete(ctx context.Context, runID string) error {
	if err := s.runs.Delete(ctx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete run")
	}
	s.logger.Info("run deleted, ark retained", zap.String("run_id", runID))
	return nil
}

// Get fetches a run.
func (s *RunService) Get(ctx context.Context, runID string) (*models.Run, error) {
	return s.getRun(ctx, runID)
}

// ListByMesh returns the runs of a mesh, newest first.
func (s *RunService) ListByMesh(ctx context.Context, meshID string) ([]models.Run, error) {
	runs, err := s.runs.ListByMesh(ctx, meshID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list runs")
	}
	return runs, nil
}

// Citation renders the downloadable citation record for an archived run.
func (s *RunService) Citation(ctx context.Context, runID string) ([]byte, error) {
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusArchived || run.Ark == nil {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "citation records exist only for archived runs")
	}
	mesh, err := s.meshes.FindByID(ctx, run.MeshID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mesh")
	}
	ark, err := s.arks.Resolve(ctx, *run.Ark)
	if err != nil {
		return nil, err
	}
	contributors, images, err := s.runs.CountAttachments(ctx, run.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count run inputs")
	}

	archivedAt := run.StartedAt
	if run.EndedAt != nil {
		archivedAt = *run.EndedAt
	}
	pdf, err := export.CitationPDF(export.Citation{
		MeshName:     mesh.Name,
		VerboseID:    mesh.VerboseID,
		Country:      mesh.Country,
		State:        mesh.State,
		District:     mesh.District,
		RunID:        run.ID,
		ArchivedAt:   archivedAt,
		Ark:          ark.Ark,
		ResolverBase: s.arks.ResolverURL(""),
		BoundURL:     ark.URL,
		Commitment:   ark.Commitment,
		Contributors: contributors,
		Images:       images,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render citation")
	}
	return pdf, nil
}

// HandleReconstruction is the queue handler dispatching a run to the
// engine. The run is failed only once retries are exhausted; earlier
// attempts surface the error so the queue can retry.
func (s *RunService) HandleReconstruction(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(RunJobPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	run, err := s.getRun(ctx, payload.RunID)
	if err != nil {
		return err
	}
	if run.Status != models.RunStatusProcessing {
		s.logger.Warn("skipping job for finished run", zap.String("run_id", run.ID))
		return nil
	}
	mesh, err := s.meshes.FindByID(ctx, run.MeshID)
	if err != nil {
		return fmt.Errorf("load mesh %s: %w", run.MeshID, err)
	}

	artifact, err := s.engine.Reconstruct(ctx, EngineRequest{
		MeshID:      mesh.ID,
		RunID:       run.ID,
		Directory:   run.Directory,
		ImageDir:    paths.MeshImageDir(mesh.ID),
		CenterImage: mesh.CenterImage,
		OrientMesh:  mesh.OrientMesh,
		Denoise:     mesh.Denoise,
		MinObsAngle: mesh.MinObsAngle,
	})
	if err != nil {
		if job.Attempt >= s.maxRetries {
			if failErr := s.Fail(ctx, run.ID); failErr != nil {
				s.logger.Error("failed to record run failure", zap.String("run_id", run.ID), zap.Error(failErr))
			}
		}
		return err
	}
	return s.Complete(ctx, run.ID, artifact)
}

func (s *RunService) getRun(ctx context.Context, runID string) (*models.Run, error) {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run")
	}
	return run, nil
}

func (s *RunService) publishArtifact(ctx context.Context, meshID, runID, artifactPath string) (string, error) {
	if s.publisher == nil || s.media == nil {
		return strings.TrimRight(s.publicBase, "/") + "/" + artifactPath, nil
	}
	file, err := s.media.Open(artifactPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	objectName := fmt.Sprintf("%s/%s.glb", meshID, runID)
	return s.publisher.PublishModel(ctx, objectName, file, info.Size(), "model/gltf-binary")
}
