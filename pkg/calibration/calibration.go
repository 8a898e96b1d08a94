// Package calibration derives the per-channel angle offsets of the detector
// from a reference scan.
//
// For every channel inside the ROI the frame at which the channel saw its
// peak is converted to an angle with the linear step formula
//
//	angle = index*step + start
//
// and stored negated, so that adding the nominal scan angle of a later
// measurement yields the absolute two-theta seen by that channel.
package calibration

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"emadiff/internal/models"
)

// Strategy selects how the peak frame of a channel is located
type Strategy string

const (
	// Maximum takes the frame of the channel maximum, lowest index on ties
	Maximum Strategy = "maximum"

	// FirstPeak takes the first local maximum reaching RelativeHeight of
	// the channel maximum. Channels without one keep the zero sentinel.
	FirstPeak Strategy = "first-peak"
)

// DefaultRelativeHeight is the first-peak height threshold as a fraction of
// the channel maximum
const DefaultRelativeHeight = 0.5

// ParseStrategy maps a configuration value to a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Maximum, FirstPeak:
		return Strategy(s), nil
	case "":
		return Maximum, nil
	}
	return "", errors.Newf("unknown peak strategy %q", s)
}

// Params holds the reference scan geometry
type Params struct {
	// StartAngle is the angle of frame 0
	StartAngle float64

	// StepSize is the angle between consecutive frames
	StepSize float64

	// Channels is the detector width; the vector has this length
	Channels int

	// Strategy defaults to Maximum
	Strategy Strategy

	// RelativeHeight defaults to DefaultRelativeHeight
	RelativeHeight float64
}

// Derive computes the calibration vector for the channels of roi from a
// frames x channels profile
func Derive(profile mat.Matrix, roi models.ROI, p Params) (models.Calibration, error) {
	frames, channels := profile.Dims()
	if p.Channels == 0 {
		p.Channels = channels
	}
	if p.Channels < channels {
		return models.Calibration{}, errors.Newf("profile has %d channels, detector only %d", channels, p.Channels)
	}
	if err := roi.Validate(channels); err != nil {
		return models.Calibration{}, errors.Wrap(err, "calibration roi")
	}
	if p.Strategy == "" {
		p.Strategy = Maximum
	}
	if p.RelativeHeight <= 0 {
		p.RelativeHeight = DefaultRelativeHeight
	}

	cal := models.Calibration{
		Vector: make([]float32, p.Channels),
		ROI:    roi,
	}

	col := make([]float64, frames)
	for c := roi.Start; c < roi.End; c++ {
		mat.Col(col, c, profile)

		var index int
		switch p.Strategy {
		case Maximum:
			index = floats.MaxIdx(col)
		case FirstPeak:
			var ok bool
			index, ok = FirstPeakIndex(col, p.RelativeHeight)
			if !ok {
				cal.Missing = append(cal.Missing, c)
				continue
			}
		default:
			return models.Calibration{}, errors.Newf("unknown peak strategy %q", p.Strategy)
		}

		angle := float32(float64(index)*p.StepSize + p.StartAngle)
		cal.Vector[c] = -angle
	}
	return cal, nil
}

// FirstPeakIndex returns the first local maximum of x whose height is at
// least relHeight times the maximum of x. A flat top counts as one peak at
// its middle sample; the first and last samples are never peaks.
func FirstPeakIndex(x []float64, relHeight float64) (int, bool) {
	if len(x) < 3 {
		return 0, false
	}
	minHeight := relHeight * floats.Max(x)

	for i := 1; i < len(x)-1; {
		if x[i-1] >= x[i] {
			i++
			continue
		}
		ahead := i + 1
		for ahead < len(x)-1 && x[ahead] == x[i] {
			ahead++
		}
		if x[ahead] < x[i] {
			peak := (i + ahead - 1) / 2
			if x[peak] > 0 && x[peak] >= minHeight {
				return peak, true
			}
		}
		i = ahead
	}
	return 0, false
}
