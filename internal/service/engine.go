package service

import (
	"context"
	"fmt"
	"os/exec"
	"path"
	"strconv"

	"go.uber.org/zap"
)

// EngineRequest carries everything the reconstruction engine needs for
// one run. Paths are relative to the media root; the adapter resolves
// them before handing off.
type EngineRequest struct {
	MeshID      string
	RunID       string
	Directory   string
	ImageDir    string
	CenterImage string
	OrientMesh  bool
	Denoise     bool
	MinObsAngle int
}

// Engine produces a model artifact for a run. Implementations return the
// media-relative path of the produced artifact.
type Engine interface {
	Reconstruct(ctx context.Context, req EngineRequest) (string, error)
}

// PathResolver turns media-relative paths into absolute ones for
// collaborators that work directly on the filesystem.
type PathResolver interface {
	Path(relPath string) string
}

// ExecEngine shells out to an external photogrammetry pipeline. The
// command receives the run workspace and image directory and is expected
// to leave the artifact at {directory}/mesh.glb.
type ExecEngine struct {
	command string
	media   PathResolver
	logger  *zap.Logger
}

// NewExecEngine constructs an ExecEngine.
func NewExecEngine(command string, media PathResolver, logger *zap.Logger) *ExecEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecEngine{command: command, media: media, logger: logger}
}

// Reconstruct invokes the external engine and returns the artifact path.
func (e *ExecEngine) Reconstruct(ctx context.Context, req EngineRequest) (string, error) {
	if e.command == "" {
		return "", fmt.Errorf("reconstruction engine command not configured")
	}

	artifact := path.Join(req.Directory, "mesh.glb")
	args := []string{
		"--run", req.RunID,
		"--workspace", e.media.Path(req.Directory),
		"--images", e.media.Path(req.ImageDir),
		"--output", e.media.Path(artifact),
		"--min-obs-angle", strconv.Itoa(req.MinObsAngle),
	}
	if req.CenterImage != "" {
		args = append(args, "--center-image", req.CenterImage)
	}
	if req.OrientMesh {
		args = append(args, "--orient")
	}
	if req.Denoise {
		args = append(args, "--denoise")
	}

	e.logger.Info("engine invoked",
		zap.String("run_id", req.RunID),
		zap.String("mesh_id", req.MeshID),
		zap.String("workspace", req.Directory))

	cmd := exec.CommandContext(ctx, e.command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		e.logger.Error("engine failed",
			zap.String("run_id", req.RunID),
			zap.ByteString("output", out),
			zap.Error(err))
		return "", fmt.Errorf("engine run %s: %w", req.RunID, err)
	}
	return artifact, nil
}
