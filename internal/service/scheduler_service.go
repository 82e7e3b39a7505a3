package service

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	appErrors "github.com/openheritage/arkmesh/pkg/errors"
)

type reconstructibleLister interface {
	ListReconstructible(ctx context.Context, minImages int) ([]string, error)
}

// SchedulerService runs the periodic sweep that starts reconstruction
// runs for every eligible mesh. Eligibility is decided in SQL: enough
// vetted images, intake still open, no run in flight.
type SchedulerService struct {
	meshes   reconstructibleLister
	runs     *RunService
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewSchedulerService constructs the scheduler.
func NewSchedulerService(meshes reconstructibleLister, runs *RunService, schedule string, logger *zap.Logger) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerService{
		meshes:   meshes,
		runs:     runs,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep with the cron runner and begins scheduling.
func (s *SchedulerService) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("reconstruction sweep scheduled", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (s *SchedulerService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep starts a run for every currently eligible mesh. Failures on one
// mesh do not stop the sweep.
func (s *SchedulerService) Sweep(ctx context.Context) {
	ids, err := s.meshes.ListReconstructible(ctx, s.runs.MinImages())
	if err != nil {
		s.logger.Error("sweep failed to list eligible meshes", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		s.logger.Debug("sweep found no eligible meshes")
		return
	}
	s.logger.Info("sweep starting runs", zap.Int("meshes", len(ids)))
	for _, id := range ids {
		if _, err := s.runs.Start(ctx, id, StartRunRequest{}); err != nil {
			// A concurrent manual start loses the race benignly.
			if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrIllegalTransition.Code {
				s.logger.Debug("sweep skipped mesh with in-flight run", zap.String("mesh_id", id))
				continue
			}
			s.logger.Error("sweep failed to start run", zap.String("mesh_id", id), zap.Error(err))
		}
	}
}
