package models

import (
	"math"

	"github.com/cockroachdb/errors"
)

// ScanSpec describes one angular scan as declared by the operator
type ScanSpec struct {
	// StartAngle is the two-theta position of the first step in degrees
	StartAngle float64

	// EndAngle is the declared two-theta position after the last step
	EndAngle float64

	// StepSize is the angular size of one step
	StepSize float64

	// Steps is the number of frames captured
	Steps int

	// Folder holds the frame files
	Folder string

	// Prefix is the filename prefix shared by every frame of the scan
	Prefix string

	// Extension of the frame files, without the dot
	Extension string
}

// ExpectedEndAngle is the end angle implied by start, step size and step count
func (s ScanSpec) ExpectedEndAngle() float64 {
	return s.StartAngle + float64(s.Steps)*s.StepSize
}

// CalibrationStepSize is the per-frame angular step derived from the
// declared range, used to convert frame indices into angles
func (s ScanSpec) CalibrationStepSize() float64 {
	return (s.EndAngle - s.StartAngle) / float64(s.Steps)
}

// Validate checks the fields that do not depend on the filesystem
func (s ScanSpec) Validate() error {
	if s.Steps <= 0 {
		return errors.Newf("step count must be positive, got %d", s.Steps)
	}
	if s.StepSize <= 0 || math.IsNaN(s.StepSize) || math.IsInf(s.StepSize, 0) {
		return errors.Newf("step size must be a positive finite number, got %v", s.StepSize)
	}
	if s.Folder == "" {
		return errors.New("scan folder is required")
	}
	return nil
}

// RowWindow is the half-open detector row range [Start, End) kept from
// every frame before projection
type RowWindow struct {
	Start int
	End   int
}

// RowWindowAround centres a window of height rows on row center
func RowWindowAround(center, height int) RowWindow {
	start := center - height/2
	return RowWindow{Start: start, End: start + height}
}

// Height is the number of rows in the window
func (w RowWindow) Height() int {
	return w.End - w.Start
}

// Validate checks the window against a frame of the given height
func (w RowWindow) Validate(frameHeight int) error {
	if w.Start < 0 || w.End > frameHeight || w.Start >= w.End {
		return errors.Newf("row window [%d, %d) does not fit a frame of height %d", w.Start, w.End, frameHeight)
	}
	return nil
}

// ROI is the illuminated channel window ("lids") as the half-open range
// [Start, End). Calibration and scan runs share these semantics.
type ROI struct {
	Start int
	End   int
}

// Width is the number of channels in the window
func (r ROI) Width() int {
	return r.End - r.Start
}

// Contains reports whether channel c is inside the window
func (r ROI) Contains(c int) bool {
	return c >= r.Start && c < r.End
}

// Validate checks the window against a detector of the given channel count
func (r ROI) Validate(channels int) error {
	if r.Start < 0 || r.End > channels || r.Start >= r.End {
		return errors.Newf("roi [%d, %d) is invalid for %d channels", r.Start, r.End, channels)
	}
	return nil
}

// Calibration is the per-channel angle offset derived from a reference scan
type Calibration struct {
	// Vector holds one negated angle per detector channel; channels outside
	// ROI hold zero
	Vector []float32

	// ROI is the channel window the vector was derived for
	ROI ROI

	// Missing lists ROI channels left at the zero sentinel because no peak
	// was found for them
	Missing []int
}

// IsMissing reports whether channel c carries the zero sentinel
func (c Calibration) IsMissing(channel int) bool {
	for _, m := range c.Missing {
		if m == channel {
			return true
		}
	}
	return false
}

// DiffractogramRow is one histogram bin of the final diffractogram
type DiffractogramRow struct {
	TwoTheta  float64
	Intensity float64
	Mean      float64
	StdDev    float64
}
