// Package address maps every (frame, channel) pair of a scan to the absolute
// two-theta it observed.
package address

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats/scalar"

	"emadiff/internal/models"
)

// DefaultPrecision is the number of decimals angles are rounded to
const DefaultPrecision = 3

// ErrROIOutOfRange marks a calibration vector that does not cover the ROI
var ErrROIOutOfRange = errors.New("roi outside calibration vector")

// Matrix is the pixel-address matrix of one scan, frames x ROI channels,
// stored row-major. Channels whose calibration is missing hold NaN.
type Matrix struct {
	Frames   int
	Channels int
	Data     []float64
}

// At returns the address of ROI channel c in frame f
func (m *Matrix) At(f, c int) float64 {
	return m.Data[f*m.Channels+c]
}

// Row returns the addresses of frame f
func (m *Matrix) Row(f int) []float64 {
	return m.Data[f*m.Channels : (f+1)*m.Channels]
}

// Round rounds x to precision decimals, half to even
func Round(x float64, precision int) float64 {
	return scalar.RoundEven(x, precision)
}

// NominalAngles returns the centre angle of every frame,
// start + step/2 + i*step, rounded to precision decimals
func NominalAngles(start, step float64, frames, precision int) []float64 {
	angles := make([]float64, frames)
	for i := range angles {
		angles[i] = Round(start+step/2+float64(i)*step, precision)
	}
	return angles
}

// Map adds the nominal angle of each frame to the calibration offset of each
// ROI channel, rounding to precision decimals
func Map(cal models.Calibration, nominal []float64, precision int) (*Matrix, error) {
	roi := cal.ROI
	if roi.Start < 0 || roi.End > len(cal.Vector) || roi.Start >= roi.End {
		return nil, errors.Wrapf(ErrROIOutOfRange, "roi [%d, %d) with %d calibrated channels",
			roi.Start, roi.End, len(cal.Vector))
	}

	missing := make([]bool, roi.Width())
	for _, c := range cal.Missing {
		if roi.Contains(c) {
			missing[c-roi.Start] = true
		}
	}

	m := &Matrix{
		Frames:   len(nominal),
		Channels: roi.Width(),
		Data:     make([]float64, len(nominal)*roi.Width()),
	}
	for f, tth := range nominal {
		row := m.Row(f)
		for c := range row {
			if missing[c] {
				row[c] = math.NaN()
				continue
			}
			row[c] = Round(float64(cal.Vector[roi.Start+c])+tth, precision)
		}
	}
	return m, nil
}
