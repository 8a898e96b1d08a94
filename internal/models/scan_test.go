package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeFrameAliasesStorage(t *testing.T) {
	v, err := NewVolume(3, 2, 4)
	require.NoError(t, err)

	frame := v.Frame(1)
	require.Len(t, frame, 8)
	frame[5] = 42

	assert.Equal(t, int32(42), v.At(1, 1, 1))
	assert.Len(t, v.FrameRange(1, 3), 16)
}

func TestNewVolumeRejectsEmptyDimensions(t *testing.T) {
	_, err := NewVolume(0, 2, 2)
	assert.Error(t, err)
}

func TestScanSpecAngles(t *testing.T) {
	s := ScanSpec{StartAngle: -1, EndAngle: 1, StepSize: 0.2, Steps: 10, Folder: "/data"}

	assert.InDelta(t, 1.0, s.ExpectedEndAngle(), 1e-12)
	assert.InDelta(t, 0.2, s.CalibrationStepSize(), 1e-12)
	assert.NoError(t, s.Validate())

	s.Steps = 0
	err := s.Validate()
	require.Error(t, err)
	// validation errors carry the stack of the failing check
	assert.Contains(t, fmt.Sprintf("%+v", err), "internal/models/scan.go")
}

func TestRowWindowAround(t *testing.T) {
	w := RowWindowAround(100, 10)
	assert.Equal(t, RowWindow{Start: 95, End: 105}, w)
	assert.Equal(t, 10, w.Height())
	assert.NoError(t, w.Validate(195))
	assert.Error(t, w.Validate(104))
}

func TestROI(t *testing.T) {
	r := ROI{Start: 2, End: 5}
	assert.Equal(t, 3, r.Width())
	assert.True(t, r.Contains(2))
	assert.False(t, r.Contains(5))
	assert.NoError(t, r.Validate(5))
	assert.Error(t, ROI{Start: 3, End: 3}.Validate(10))
}

func TestCalibrationIsMissing(t *testing.T) {
	c := Calibration{Missing: []int{4, 7}}
	assert.True(t, c.IsMissing(7))
	assert.False(t, c.IsMissing(5))
}
