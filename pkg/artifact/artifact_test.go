package artifact

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emadiff/internal/models"
)

func TestCalibrationRoundTrip(t *testing.T) {
	cal := models.Calibration{
		Vector:  []float32{0, 0, -1.0, -0.8, -0.6000001, 0, 0},
		ROI:     models.ROI{Start: 2, End: 6},
		Missing: []int{5},
	}
	meta := CalibrationMetadata{
		StartAngle: -1,
		EndAngle:   1,
		StepSize:   0.2,
		Steps:      10,
		Folder:     "/data/cal",
		Prefix:     "cal_",
		DetX:       7,
		DetY:       50,
		YMin:       20,
		YMax:       30,
		Strategy:   "maximum",
		Datetime:   Now(),
		RunID:      NewRunID(),
	}

	path := filepath.Join(t.TempDir(), "nested", "calibration"+Extension)
	require.NoError(t, WriteCalibration(path, NewCalibrationFile(cal, meta)))

	f, err := ReadCalibration(path)
	require.NoError(t, err)
	assert.Equal(t, meta, f.Metadata)

	got, err := f.Calibration()
	require.NoError(t, err)
	assert.Equal(t, cal.ROI, got.ROI)
	assert.Equal(t, cal.Missing, got.Missing)
	require.Len(t, got.Vector, len(cal.Vector))
	for i := range cal.Vector {
		assert.Equal(t, math.Float32bits(cal.Vector[i]), math.Float32bits(got.Vector[i]), "channel %d", i)
	}
}

func TestCalibrationWithoutMissingChannels(t *testing.T) {
	cal := models.Calibration{Vector: []float32{-1, -2}, ROI: models.ROI{Start: 0, End: 2}}

	data, err := Encode(KindCalibration, NewCalibrationFile(cal, CalibrationMetadata{}))
	require.NoError(t, err)

	var f CalibrationFile
	require.NoError(t, Decode(data, KindCalibration, &f))
	got, err := f.Calibration()
	require.NoError(t, err)
	assert.Nil(t, got.Missing)
}

func TestCalibrationRejectsBadLids(t *testing.T) {
	f := &CalibrationFile{Data: CalibrationData{
		CalibrationVector: make([]float32, 4),
		MythenLids:        [2]int{3, 9},
	}}
	_, err := f.Calibration()
	assert.Error(t, err)
}

func TestDiffractogramRoundTripKeepsNaN(t *testing.T) {
	rows := []models.DiffractogramRow{
		{TwoTheta: 9.95, Intensity: 3, Mean: 3, StdDev: 0},
		{TwoTheta: 10.05, Intensity: 0, Mean: math.NaN(), StdDev: math.NaN()},
		{TwoTheta: 10.15, Intensity: 11, Mean: 5.5, StdDev: 0.5},
	}
	runID := NewRunID()
	meta := ScanMetadata{
		InitialAngle:      10,
		FinalAngle:        11,
		SizeStep:          0.1,
		NumberOfSteps:     10,
		OutputFolder:      "/out",
		ScanFolder:        "/data/scan",
		ScanFilename:      "sample_",
		DetX:              8,
		XMax:              8,
		InputMythenLids:   [2]int{1, 3},
		CalibrationPixel:  []float32{0, -1, -2, 0},
		PixelAddress:      []float32{9.1, float32(math.NaN())},
		PixelAddressShape: [2]int{1, 2},
		RunID:             runID,
	}

	dir := t.TempDir()
	path := DiffractogramPath(dir, meta.ScanFilename)
	assert.Equal(t, filepath.Join(dir, "sample_proc.emd"), path)
	require.NoError(t, WriteDiffractogram(path, NewDiffractogramFile(rows, meta)))

	f, err := ReadDiffractogram(path)
	require.NoError(t, err)
	_, err = uuid.Parse(f.Metadata.RunID)
	assert.NoError(t, err)
	assert.Equal(t, runID, f.Metadata.RunID)
	assert.Equal(t, meta.InputMythenLids, f.Metadata.InputMythenLids)
	assert.True(t, math.IsNaN(float64(f.Metadata.PixelAddress[1])))

	got := f.Rows()
	require.Len(t, got, 3)
	assert.InDelta(t, 10.05, got[1].TwoTheta, 1e-6)
	assert.Equal(t, 0.0, got[1].Intensity)
	assert.True(t, math.IsNaN(got[1].Mean))
	assert.True(t, math.IsNaN(got[1].StdDev))
	assert.Equal(t, 5.5, got[2].Mean)
}

func TestReadDiffractogramRejectsRaggedColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged"+Extension)
	f := &DiffractogramFile{Proc: DiffractogramData{
		TwoTheta:          []float32{10, 10.1},
		Intensities:       []float32{5},
		Mean:              []float32{5, 6},
		StandardDeviation: []float32{0, 0},
	}}
	require.NoError(t, WriteDiffractogram(path, f))

	_, err := ReadDiffractogram(path)
	assert.ErrorIs(t, err, ErrRaggedColumns)
}

func TestDecodeRejectsForeignData(t *testing.T) {
	var f CalibrationFile
	assert.ErrorIs(t, Decode([]byte("plain text"), KindCalibration, &f), ErrNotArtifact)

	data, err := Encode(KindDiffractogram, &DiffractogramFile{})
	require.NoError(t, err)
	assert.ErrorIs(t, Decode(data, KindCalibration, &f), ErrKindMismatch)
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadCalibration(filepath.Join(t.TempDir(), "absent.emd"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
