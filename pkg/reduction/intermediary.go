package reduction

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"emadiff/internal/models"
	"emadiff/pkg/visualization"
)

// stageDir creates and returns the preview directory of a stage
func (r *Reducer) stageDir(stage string) (string, error) {
	dir := filepath.Join(r.params.IntermediaryDir, stage)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create intermediary directory")
	}
	return dir, nil
}

// saveFrames writes one preview per frame. Failures are logged, never fatal.
func (r *Reducer) saveFrames(log *zap.Logger, stage string, volume *models.Volume) {
	if !r.params.SaveIntermediaryResults {
		return
	}
	dir, err := r.stageDir(stage)
	if err == nil {
		err = visualization.NewViewer(volume).SaveSliceSequence("frame", dir)
	}
	if err != nil {
		log.Warn("failed to save frame previews", zap.String("stage", stage), zap.Error(err))
		return
	}
	log.Debug("saved frame previews", zap.String("stage", stage), zap.Int("frames", volume.Frames))
}

// saveProfile writes the frames x channels profile as one image
func (r *Reducer) saveProfile(log *zap.Logger, stage string, profile mat.Matrix) {
	if !r.params.SaveIntermediaryResults {
		return
	}
	dir, err := r.stageDir(stage)
	if err == nil {
		err = visualization.SaveImage(visualization.ProfileImage(profile), filepath.Join(dir, "profile.png"))
	}
	if err != nil {
		log.Warn("failed to save profile preview", zap.String("stage", stage), zap.Error(err))
	}
}
