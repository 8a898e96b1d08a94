package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"emadiff/internal/models"
	"emadiff/internal/testutil"
	"emadiff/pkg/projection"
)

func TestDeriveRecoversLinearStripe(t *testing.T) {
	const (
		start = -1.0
		step  = 0.2
	)
	profile := projection.Project(testutil.StripeVolume(10, 50, 20, 5))
	roi, err := projection.DetectROI(profile, 0)
	require.NoError(t, err)
	require.Equal(t, models.ROI{Start: 5, End: 15}, roi)

	cal, err := Derive(profile, roi, Params{StartAngle: start, StepSize: step, Channels: 20})
	require.NoError(t, err)
	require.Len(t, cal.Vector, 20)
	assert.Empty(t, cal.Missing)

	// channel roi.Start+k peaks at frame k
	for k := 0; k < roi.Width(); k++ {
		angle := -float64(cal.Vector[roi.Start+k])
		assert.InDelta(t, start+float64(k)*step, angle, 1e-3, "channel %d", k)
	}
	assert.InDeltaSlice(t, []float64{-1.0, -0.8, -0.6}, []float64{
		-float64(cal.Vector[roi.Start]),
		-float64(cal.Vector[roi.Start+1]),
		-float64(cal.Vector[roi.Start+2]),
	}, 1e-3)

	for c := 0; c < 20; c++ {
		if !roi.Contains(c) {
			assert.Zero(t, cal.Vector[c], "channel %d outside roi", c)
		}
	}
}

func TestDeriveFirstPeakOnStripe(t *testing.T) {
	profile := projection.Project(testutil.StripeVolume(10, 50, 20, 5))
	roi := models.ROI{Start: 5, End: 15}

	cal, err := Derive(profile, roi, Params{StartAngle: -1, StepSize: 0.2, Channels: 20, Strategy: FirstPeak})
	require.NoError(t, err)

	// the outermost channels peak on the first and last frame, which are
	// never local maxima
	assert.Equal(t, []int{5, 14}, cal.Missing)
	for k := 1; k < roi.Width()-1; k++ {
		assert.InDelta(t, -1+float64(k)*0.2, -float64(cal.Vector[roi.Start+k]), 1e-3, "channel %d", k)
	}
}

func TestDeriveMaximumBreaksTiesAtLowestFrame(t *testing.T) {
	// channel 0 has equal maxima at frames 1 and 3
	profile := mat.NewDense(4, 1, []float64{1, 7, 2, 7})

	cal, err := Derive(profile, models.ROI{Start: 0, End: 1}, Params{StartAngle: 10, StepSize: 0.5})
	require.NoError(t, err)
	assert.Equal(t, float32(-10.5), cal.Vector[0])
}

func TestDeriveFirstPeakMarksMissingChannels(t *testing.T) {
	// channel 0 rises monotonically: no interior peak
	// channel 1 has a small early bump below half max, then a real peak
	profile := mat.NewDense(6, 2, []float64{
		1, 0,
		2, 2,
		3, 1,
		4, 9,
		5, 10,
		6, 0,
	})

	cal, err := Derive(profile, models.ROI{Start: 0, End: 2}, Params{StartAngle: 0, StepSize: 1, Strategy: FirstPeak})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, cal.Missing)
	assert.True(t, cal.IsMissing(0))
	assert.Zero(t, cal.Vector[0])
	assert.Equal(t, float32(-4), cal.Vector[1])
}

func TestDeriveValidatesInputs(t *testing.T) {
	profile := mat.NewDense(3, 4, nil)

	_, err := Derive(profile, models.ROI{Start: 2, End: 6}, Params{StepSize: 1})
	assert.Error(t, err)

	_, err = Derive(profile, models.ROI{Start: 0, End: 2}, Params{StepSize: 1, Channels: 2})
	assert.Error(t, err)

	_, err = Derive(profile, models.ROI{Start: 0, End: 2}, Params{StepSize: 1, Strategy: "median"})
	assert.Error(t, err)
}

func TestFirstPeakIndex(t *testing.T) {
	for _, tc := range []struct {
		name string
		x    []float64
		want int
		ok   bool
	}{
		{"single peak", []float64{0, 1, 5, 1, 0}, 2, true},
		{"plateau resolves to middle", []float64{0, 5, 5, 5, 0}, 2, true},
		{"even plateau rounds down", []float64{0, 5, 5, 0}, 1, true},
		{"edges are not peaks", []float64{9, 1, 1, 9}, 0, false},
		{"low early bump skipped", []float64{0, 2, 0, 10, 0}, 3, true},
		{"all zero", []float64{0, 0, 0, 0}, 0, false},
		{"too short", []float64{1, 2}, 0, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FirstPeakIndex(tc.x, DefaultRelativeHeight)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Maximum, s)

	s, err = ParseStrategy("first-peak")
	require.NoError(t, err)
	assert.Equal(t, FirstPeak, s)

	_, err = ParseStrategy("gauss")
	assert.Error(t, err)
}
