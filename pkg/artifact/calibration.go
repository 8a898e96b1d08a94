package artifact

import (
	"github.com/cockroachdb/errors"

	"emadiff/internal/models"
)

// CalibrationData is the data/ group of a calibration artifact
type CalibrationData struct {
	CalibrationVector []float32 `cbor:"calibration_vector"`
	MythenLids        [2]int    `cbor:"mythen_lids"`
	MissingChannels   []int     `cbor:"missing_channels"`
}

// CalibrationMetadata is the metadata/ group of a calibration artifact
type CalibrationMetadata struct {
	StartAngle      float64 `cbor:"start_angle"`
	EndAngle        float64 `cbor:"end_angle"`
	StepSize        float64 `cbor:"step_size"`
	Steps           int     `cbor:"steps"`
	Folder          string  `cbor:"folder"`
	Prefix          string  `cbor:"prefix"`
	DetX            int     `cbor:"det_x"`
	DetY            int     `cbor:"det_y"`
	YMin            int     `cbor:"ymin"`
	YMax            int     `cbor:"ymax"`
	LidsBorder      int     `cbor:"lids_border"`
	Strategy        string  `cbor:"strategy"`
	Datetime        string  `cbor:"datetime"`
	SoftwareVersion string  `cbor:"software_version"`
	RunID           string  `cbor:"run_id"`
}

// CalibrationFile is a stored calibration
type CalibrationFile struct {
	Data     CalibrationData     `cbor:"data"`
	Metadata CalibrationMetadata `cbor:"metadata"`
}

// NewCalibrationFile wraps a derived calibration for storage
func NewCalibrationFile(cal models.Calibration, meta CalibrationMetadata) *CalibrationFile {
	missing := cal.Missing
	if missing == nil {
		missing = []int{}
	}
	return &CalibrationFile{
		Data: CalibrationData{
			CalibrationVector: cal.Vector,
			MythenLids:        [2]int{cal.ROI.Start, cal.ROI.End},
			MissingChannels:   missing,
		},
		Metadata: meta,
	}
}

// Calibration converts the stored data back into the model type
func (f *CalibrationFile) Calibration() (models.Calibration, error) {
	cal := models.Calibration{
		Vector: f.Data.CalibrationVector,
		ROI:    models.ROI{Start: f.Data.MythenLids[0], End: f.Data.MythenLids[1]},
	}
	if len(f.Data.MissingChannels) > 0 {
		cal.Missing = f.Data.MissingChannels
	}
	if err := cal.ROI.Validate(len(cal.Vector)); err != nil {
		return models.Calibration{}, errors.Wrap(err, "stored mythen lids")
	}
	return cal, nil
}

// WriteCalibration stores f at path
func WriteCalibration(path string, f *CalibrationFile) error {
	return writeFile(path, KindCalibration, f)
}

// ReadCalibration loads a calibration artifact
func ReadCalibration(path string) (*CalibrationFile, error) {
	var f CalibrationFile
	if err := readFile(path, KindCalibration, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
