// Package projection reduces a scan volume to per-frame channel profiles and
// finds the illuminated channel window.
package projection

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"emadiff/internal/models"
)

// ErrDegenerateROI marks a profile whose half-max window is empty or
// collapses once the border is trimmed
var ErrDegenerateROI = errors.New("degenerate roi")

// Project sums the volume over the row axis. The result has one matrix row
// per frame and one column per detector channel.
func Project(v *models.Volume) *mat.Dense {
	profile := mat.NewDense(v.Frames, v.Columns, nil)
	for f := 0; f < v.Frames; f++ {
		row := profile.RawRowView(f)
		frame := v.Frame(f)
		for r := 0; r < v.Rows; r++ {
			for c, count := range frame[r*v.Columns : (r+1)*v.Columns] {
				row[c] += float64(count)
			}
		}
	}
	return profile
}

// Aggregate sums a channel profile over frames
func Aggregate(profile mat.Matrix) []float64 {
	frames, channels := profile.Dims()
	agg := make([]float64, channels)
	col := make([]float64, frames)
	for c := 0; c < channels; c++ {
		mat.Col(col, c, profile)
		agg[c] = floats.Sum(col)
	}
	return agg
}

// DetectROI finds the half-open channel window [Start, End) spanned by the
// channels whose aggregate exceeds floor(max/2), then trims border channels
// from each side.
func DetectROI(profile mat.Matrix, border int) (models.ROI, error) {
	return DetectROIFromAggregate(Aggregate(profile), border)
}

// DetectROIFromAggregate is DetectROI on a precomputed aggregate profile
func DetectROIFromAggregate(agg []float64, border int) (models.ROI, error) {
	if border < 0 {
		return models.ROI{}, errors.Wrapf(ErrDegenerateROI, "negative border %d", border)
	}
	if len(agg) == 0 {
		return models.ROI{}, errors.Wrap(ErrDegenerateROI, "empty profile")
	}

	threshold := math.Floor(floats.Max(agg) / 2)
	first, last := -1, -1
	for c, v := range agg {
		if v > threshold {
			if first < 0 {
				first = c
			}
			last = c
		}
	}
	if first < 0 {
		return models.ROI{}, errors.Wrapf(ErrDegenerateROI, "no channel exceeds threshold %g", threshold)
	}

	roi := models.ROI{Start: first + border, End: last + 1 - border}
	if roi.Start >= roi.End {
		return models.ROI{}, errors.Wrapf(ErrDegenerateROI,
			"border %d collapses window [%d, %d)", border, first, last+1)
	}
	return roi, nil
}

// Crop returns the profile columns inside the window. The result shares
// storage with profile.
func Crop(profile *mat.Dense, roi models.ROI) (*mat.Dense, error) {
	frames, channels := profile.Dims()
	if err := roi.Validate(channels); err != nil {
		return nil, errors.Wrap(err, "crop profile")
	}
	return profile.Slice(0, frames, roi.Start, roi.End).(*mat.Dense), nil
}
