// Package reduction drives the two pipelines of the diffraction reduction:
// calibration of the detector against a reference scan, and conversion of a
// measurement scan into a diffractogram.
//
// Both runs are staged. Each stage finishes before the next starts:
//  1. Loading the frame stack
//  2. Projecting frames onto detector channels
//  3. Calibration: detecting the illuminated window and deriving per-channel
//     offsets. Scan: mapping every pixel to its two-theta address
//  4. Scan only: binning addresses into the diffractogram
//  5. Writing the artifact
package reduction

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"emadiff/internal/models"
	"emadiff/pkg/address"
	"emadiff/pkg/artifact"
	"emadiff/pkg/calibration"
	"emadiff/pkg/frames"
	"emadiff/pkg/histogram"
	"emadiff/pkg/logging"
	"emadiff/pkg/projection"
)

// Params holds the settings shared by every run of a Reducer
type Params struct {
	// Workers is the number of goroutines used for ingestion and binning.
	// 0 uses every CPU.
	Workers int

	// StrictAngles turns an end-angle mismatch into an error
	StrictAngles bool

	// Strategy selects how calibration locates channel peaks
	Strategy calibration.Strategy

	// Precision is the number of decimals nominal angles, addresses and bin
	// edges are rounded to. Values <= 0 use address.DefaultPrecision.
	Precision int

	// Extension of the frame files, without the dot
	Extension string

	// SaveIntermediaryResults writes frame and profile previews per stage
	SaveIntermediaryResults bool

	// IntermediaryDir receives the previews
	IntermediaryDir string

	// Version is recorded in artifact metadata
	Version string

	Logger *zap.Logger
}

// CalibrationJob describes one reference scan
type CalibrationJob struct {
	Scan   models.ScanSpec
	Window models.RowWindow

	// DetX and DetY are the detector size in pixels
	DetX int
	DetY int

	// LidsBorder shrinks the detected window on both sides
	LidsBorder int

	// OutputPath is the calibration artifact to write
	OutputPath string
}

// ScanJob describes one measurement scan
type ScanJob struct {
	Scan   models.ScanSpec
	Window models.RowWindow
	DetX   int

	// OutputFolder receives <prefix>proc.emd
	OutputFolder string

	// CalibrationPath is read unless Calibration is set
	CalibrationPath string
	Calibration     *models.Calibration
}

// CalibrationResult is the outcome of Calibrate
type CalibrationResult struct {
	Calibration models.Calibration
	Profile     *mat.Dense
	Path        string
	RunID       string
}

// ScanResult is the outcome of Scan
type ScanResult struct {
	Edges     []float64
	Rows      []models.DiffractogramRow
	Addresses *address.Matrix
	Path      string
	RunID     string
}

// Reducer runs calibration and scan reductions
type Reducer struct {
	params *Params
	store  *frames.Store
	logger *zap.Logger
}

// NewReducer creates a reducer with the provided parameters
func NewReducer(params *Params) *Reducer {
	if params.Strategy == "" {
		params.Strategy = calibration.Maximum
	}
	if params.Version == "" {
		params.Version = "dev"
	}
	if params.Precision <= 0 {
		params.Precision = address.DefaultPrecision
	}
	logger := logging.Component(params.Logger, "reduction")
	return &Reducer{
		params: params,
		store: frames.NewStore(frames.Options{
			Workers: params.Workers,
			Strict:  params.StrictAngles,
			Logger:  params.Logger,
		}),
		logger: logger,
	}
}

func (r *Reducer) scanSpec(spec models.ScanSpec) models.ScanSpec {
	if spec.Extension == "" {
		spec.Extension = r.params.Extension
	}
	return spec
}

// Calibrate runs the calibration pipeline and writes the calibration artifact
func (r *Reducer) Calibrate(ctx context.Context, job CalibrationJob) (*CalibrationResult, error) {
	started := time.Now()
	runID := artifact.NewRunID()
	log := r.logger.With(zap.String("run_id", runID), zap.String("pipeline", "calibration"))
	spec := r.scanSpec(job.Scan)

	log.Info("Step 1: Loading calibration frames...", zap.String(logging.FieldFolder, spec.Folder))
	volume, err := r.store.Load(ctx, spec, job.Window, job.DetX)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load calibration frames")
	}
	r.saveFrames(log, "01_calibration_frames", volume)

	log.Info("Step 2: Projecting frames onto channels...")
	profile := projection.Project(volume)
	r.saveProfile(log, "02_calibration_profile", profile)

	log.Info("Step 3: Detecting illuminated channels...", zap.Int("lids_border", job.LidsBorder))
	roi, err := projection.DetectROI(profile, job.LidsBorder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to detect roi")
	}
	log.Info("roi detected", zap.Ints(logging.FieldROI, []int{roi.Start, roi.End}))

	log.Info("Step 4: Deriving calibration vector...", zap.String("strategy", string(r.params.Strategy)))
	cal, err := calibration.Derive(profile, roi, calibration.Params{
		StartAngle: spec.StartAngle,
		StepSize:   spec.CalibrationStepSize(),
		Channels:   job.DetX,
		Strategy:   r.params.Strategy,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive calibration")
	}
	if len(cal.Missing) > 0 {
		log.Warn("channels without a peak keep the zero sentinel",
			zap.Int("missing", len(cal.Missing)),
			zap.Ints("channels", cal.Missing))
	}

	log.Info("Step 5: Writing calibration artifact...", zap.String(logging.FieldFile, job.OutputPath))
	meta := artifact.CalibrationMetadata{
		StartAngle:      spec.StartAngle,
		EndAngle:        spec.EndAngle,
		StepSize:        spec.StepSize,
		Steps:           spec.Steps,
		Folder:          spec.Folder,
		Prefix:          spec.Prefix,
		DetX:            job.DetX,
		DetY:            job.DetY,
		YMin:            job.Window.Start,
		YMax:            job.Window.End,
		LidsBorder:      job.LidsBorder,
		Strategy:        string(r.params.Strategy),
		Datetime:        artifact.Now(),
		SoftwareVersion: r.params.Version,
		RunID:           runID,
	}
	if err := artifact.WriteCalibration(job.OutputPath, artifact.NewCalibrationFile(cal, meta)); err != nil {
		return nil, errors.Wrap(err, "failed to write calibration")
	}

	log.Info("calibration complete", zap.Duration(logging.FieldDuration, time.Since(started)))
	return &CalibrationResult{
		Calibration: cal,
		Profile:     profile,
		Path:        job.OutputPath,
		RunID:       runID,
	}, nil
}

// loadCalibration returns the in-memory calibration of job or reads it from
// job.CalibrationPath
func (r *Reducer) loadCalibration(job ScanJob) (models.Calibration, error) {
	if job.Calibration != nil {
		return *job.Calibration, nil
	}
	f, err := artifact.ReadCalibration(job.CalibrationPath)
	if err != nil {
		return models.Calibration{}, err
	}
	return f.Calibration()
}

// Scan runs the measurement pipeline and writes the diffractogram artifact
func (r *Reducer) Scan(ctx context.Context, job ScanJob) (*ScanResult, error) {
	started := time.Now()
	runID := artifact.NewRunID()
	log := r.logger.With(zap.String("run_id", runID), zap.String("pipeline", "scan"))
	spec := r.scanSpec(job.Scan)

	log.Info("Step 1: Reading calibration...", zap.String(logging.FieldFile, job.CalibrationPath))
	cal, err := r.loadCalibration(job)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read calibration")
	}
	if len(cal.Vector) != job.DetX {
		return nil, errors.Newf("calibration covers %d channels, detector has %d", len(cal.Vector), job.DetX)
	}

	log.Info("Step 2: Loading scan frames...", zap.String(logging.FieldFolder, spec.Folder))
	volume, err := r.store.Load(ctx, spec, job.Window, job.DetX)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load scan frames")
	}
	r.saveFrames(log, "01_scan_frames", volume)

	log.Info("Step 3: Projecting frames onto channels...",
		zap.Ints(logging.FieldROI, []int{cal.ROI.Start, cal.ROI.End}))
	cropped, err := projection.Crop(projection.Project(volume), cal.ROI)
	if err != nil {
		return nil, errors.Wrap(err, "failed to crop profile")
	}
	r.saveProfile(log, "02_scan_profile", cropped)

	log.Info("Step 4: Mapping pixel addresses...")
	nominal := address.NominalAngles(spec.StartAngle, spec.StepSize, volume.Frames, r.params.Precision)
	addresses, err := address.Map(cal, nominal, r.params.Precision)
	if err != nil {
		return nil, errors.Wrap(err, "failed to map addresses")
	}

	log.Info("Step 5: Binning diffractogram...")
	// the cropped view is strided; binning needs it flat in address order
	intensities := mat.DenseCopyOf(cropped).RawMatrix().Data
	edges, rows, err := histogram.Aggregate(ctx, addresses.Data, intensities, spec.StepSize, histogram.Options{
		Workers:   r.params.Workers,
		Precision: r.params.Precision,
		Logger:    r.params.Logger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to bin diffractogram")
	}
	log.Info("diffractogram binned", zap.Int(logging.FieldBins, len(rows)))

	path := artifact.DiffractogramPath(job.OutputFolder, spec.Prefix)
	log.Info("Step 6: Writing diffractogram...", zap.String(logging.FieldFile, path))
	meta := artifact.ScanMetadata{
		InitialAngle:      spec.StartAngle,
		FinalAngle:        spec.EndAngle,
		SizeStep:          spec.StepSize,
		NumberOfSteps:     spec.Steps,
		OutputFolder:      job.OutputFolder,
		ScanFolder:        spec.Folder,
		ScanFilename:      spec.Prefix,
		DetX:              job.DetX,
		XMin:              0,
		XMax:              job.DetX,
		YMin:              job.Window.Start,
		YMax:              job.Window.End,
		InputMythenLids:   [2]int{cal.ROI.Start, cal.ROI.End},
		CalibrationPixel:  cal.Vector,
		PixelAddress:      artifact.Float32s(addresses.Data),
		PixelAddressShape: [2]int{addresses.Frames, addresses.Channels},
		Datetime:          artifact.Now(),
		SoftwareVersion:   r.params.Version,
		RunID:             runID,
	}
	if err := artifact.WriteDiffractogram(path, artifact.NewDiffractogramFile(rows, meta)); err != nil {
		return nil, errors.Wrap(err, "failed to write diffractogram")
	}

	log.Info("scan complete", zap.Duration(logging.FieldDuration, time.Since(started)))
	return &ScanResult{
		Edges:     edges,
		Rows:      rows,
		Addresses: addresses,
		Path:      path,
		RunID:     runID,
	}, nil
}
