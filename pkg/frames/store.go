// Package frames discovers and ingests the detector frames of an angular scan.
//
// Frames are sorted by the number embedded in their filename, validated
// against the declared scan geometry, and decoded in parallel straight into a
// single pre-allocated volume. Each worker owns a contiguous range of frames
// and writes only to that range of the volume.
package frames

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"emadiff/internal/models"
	"emadiff/pkg/logging"
	"emadiff/pkg/parallel"
)

// angleTolerance absorbs floating error in start + steps*step
const angleTolerance = 1e-6

// Options configures a Store
type Options struct {
	// Workers is the number of decoding goroutines; 0 means NumCPU
	Workers int

	// Strict makes an end-angle mismatch fatal instead of a warning
	Strict bool

	// Logger receives progress and validation warnings
	Logger *zap.Logger
}

// Store loads scan volumes from disk
type Store struct {
	workers int
	strict  bool
	logger  *zap.Logger
}

// NewStore creates a frame store
func NewStore(opts Options) *Store {
	workers := opts.Workers
	if workers <= 0 {
		workers = parallel.DefaultWorkers()
	}
	return &Store{
		workers: workers,
		strict:  opts.Strict,
		logger:  logging.Component(opts.Logger, "frames"),
	}
}

// ValidateAngles checks that start + steps*step equals the declared end
// angle. A mismatch is logged with the expected value, and is returned as
// ErrAngleMismatch only in strict mode.
func (s *Store) ValidateAngles(spec models.ScanSpec) error {
	expected := spec.ExpectedEndAngle()
	if math.Abs(expected-spec.EndAngle) <= angleTolerance {
		return nil
	}

	if s.strict {
		return errors.Wrapf(ErrAngleMismatch, "declared end angle %g, start %g + %d steps of %g gives %g",
			spec.EndAngle, spec.StartAngle, spec.Steps, spec.StepSize, expected)
	}
	s.logger.Warn("end angle is incompatible with the scan geometry",
		zap.Float64("declared", spec.EndAngle),
		zap.Float64("suggested", expected))
	return nil
}

// Load validates the scan, discovers its frames and reads them into a
// volume of spec.Steps frames, window.Height() rows and columns channels
func (s *Store) Load(ctx context.Context, spec models.ScanSpec, window models.RowWindow, columns int) (*models.Volume, error) {
	if err := spec.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scan")
	}
	if err := s.ValidateAngles(spec); err != nil {
		return nil, err
	}

	files, err := Discover(spec)
	if err != nil {
		return nil, err
	}
	s.logger.Info("discovered frames",
		zap.String(logging.FieldFolder, spec.Folder),
		zap.Int(logging.FieldFrames, len(files)))

	return s.LoadFiles(ctx, files, window, columns)
}

// LoadFiles reads the given frames, in order, into a new volume
func (s *Store) LoadFiles(ctx context.Context, files []string, window models.RowWindow, columns int) (*models.Volume, error) {
	if window.Height() <= 0 {
		return nil, errors.Wrapf(ErrFrameGeometry, "empty row window [%d, %d)", window.Start, window.End)
	}

	volume, err := models.NewVolume(len(files), window.Height(), columns)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = parallel.ForEachRange(ctx, len(files), s.workers, func(ctx context.Context, r parallel.Range) error {
		dst := volume.FrameRange(r.Start, r.End)
		size := volume.FrameSize()
		for i := r.Start; i < r.End; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			offset := (i - r.Start) * size
			if err := readFrame(files[i], window, columns, dst[offset:offset+size]); err != nil {
				return err
			}
		}
		s.logger.Debug("worker finished",
			zap.Int("worker", r.Worker),
			zap.Int("first", r.Start),
			zap.Int("last", r.End-1))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("volume loaded",
		zap.Int(logging.FieldFrames, volume.Frames),
		zap.Int("rows", volume.Rows),
		zap.Int("columns", volume.Columns),
		zap.Int(logging.FieldWorkers, s.workers),
		zap.Duration(logging.FieldDuration, time.Since(start)))
	return volume, nil
}

// readFrame decodes one file and copies the window rows into dst
func readFrame(path string, window models.RowWindow, columns int, dst []int32) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read frame %s", path)
	}

	img, err := DecodeTIFF(data)
	if err != nil {
		return errors.Wrapf(err, "decode frame %s", filepath.Base(path))
	}

	if img.Width != columns {
		return errors.Wrapf(ErrFrameGeometry, "%s is %d channels wide, detector has %d",
			filepath.Base(path), img.Width, columns)
	}
	if err := window.Validate(img.Height); err != nil {
		return errors.Wrapf(ErrFrameGeometry, "%s: %v", filepath.Base(path), err)
	}

	for r := 0; r < window.Height(); r++ {
		copy(dst[r*columns:(r+1)*columns], img.Row(window.Start+r))
	}
	return nil
}
