package artifact

import (
	"path/filepath"

	"github.com/cockroachdb/errors"

	"emadiff/internal/models"
)

// ErrRaggedColumns marks a diffractogram whose proc/ columns differ in length
var ErrRaggedColumns = errors.New("diffractogram columns differ in length")

// DiffractogramData is the proc/ group of a diffractogram artifact
type DiffractogramData struct {
	TwoTheta          []float32 `cbor:"tth"`
	Intensities       []float32 `cbor:"intensities"`
	Mean              []float32 `cbor:"mean"`
	StandardDeviation []float32 `cbor:"standard_deviation"`
}

// ScanMetadata is the metadata/ group of a diffractogram artifact
type ScanMetadata struct {
	InitialAngle     float64   `cbor:"initial_angle"`
	FinalAngle       float64   `cbor:"final_angle"`
	SizeStep         float64   `cbor:"size_step"`
	NumberOfSteps    int       `cbor:"number_of_steps"`
	OutputFolder     string    `cbor:"output_folder"`
	ScanFolder       string    `cbor:"scan_folder"`
	ScanFilename     string    `cbor:"scan_filename"`
	DetX             int       `cbor:"det_x"`
	XMin             int       `cbor:"xmin"`
	XMax             int       `cbor:"xmax"`
	YMin             int       `cbor:"ymin"`
	YMax             int       `cbor:"ymax"`
	InputMythenLids  [2]int    `cbor:"input_mythen_lids"`
	CalibrationPixel []float32 `cbor:"calibration_pixel"`

	// PixelAddress is the frames x channels address matrix, row-major,
	// with PixelAddressShape giving its dimensions
	PixelAddress      []float32 `cbor:"pixel_address"`
	PixelAddressShape [2]int    `cbor:"pixel_address_shape"`

	Datetime        string `cbor:"datetime"`
	SoftwareVersion string `cbor:"software_version"`
	RunID           string `cbor:"run_id"`
}

// DiffractogramFile is a stored diffractogram
type DiffractogramFile struct {
	Proc     DiffractogramData `cbor:"proc"`
	Metadata ScanMetadata      `cbor:"metadata"`
}

// NewDiffractogramFile narrows the rows to float32 columns for storage
func NewDiffractogramFile(rows []models.DiffractogramRow, meta ScanMetadata) *DiffractogramFile {
	d := DiffractogramData{
		TwoTheta:          make([]float32, len(rows)),
		Intensities:       make([]float32, len(rows)),
		Mean:              make([]float32, len(rows)),
		StandardDeviation: make([]float32, len(rows)),
	}
	for i, r := range rows {
		d.TwoTheta[i] = float32(r.TwoTheta)
		d.Intensities[i] = float32(r.Intensity)
		d.Mean[i] = float32(r.Mean)
		d.StandardDeviation[i] = float32(r.StdDev)
	}
	return &DiffractogramFile{Proc: d, Metadata: meta}
}

// validate checks that every column describes the same bins
func (d DiffractogramData) validate() error {
	n := len(d.TwoTheta)
	if len(d.Intensities) != n || len(d.Mean) != n || len(d.StandardDeviation) != n {
		return errors.Wrapf(ErrRaggedColumns, "tth %d, intensities %d, mean %d, standard_deviation %d",
			n, len(d.Intensities), len(d.Mean), len(d.StandardDeviation))
	}
	return nil
}

// Rows widens the stored columns back into diffractogram rows.
// The columns must have equal length, as ReadDiffractogram guarantees.
func (f *DiffractogramFile) Rows() []models.DiffractogramRow {
	rows := make([]models.DiffractogramRow, len(f.Proc.TwoTheta))
	for i := range rows {
		rows[i] = models.DiffractogramRow{
			TwoTheta:  float64(f.Proc.TwoTheta[i]),
			Intensity: float64(f.Proc.Intensities[i]),
			Mean:      float64(f.Proc.Mean[i]),
			StdDev:    float64(f.Proc.StandardDeviation[i]),
		}
	}
	return rows
}

// Float32s narrows a float64 slice
func Float32s(x []float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v)
	}
	return out
}

// DiffractogramPath is where a scan's diffractogram is written
func DiffractogramPath(outputFolder, scanFilename string) string {
	return filepath.Join(outputFolder, scanFilename+"proc"+Extension)
}

// WriteDiffractogram stores f at path
func WriteDiffractogram(path string, f *DiffractogramFile) error {
	return writeFile(path, KindDiffractogram, f)
}

// ReadDiffractogram loads a diffractogram artifact
func ReadDiffractogram(path string) (*DiffractogramFile, error) {
	var f DiffractogramFile
	if err := readFile(path, KindDiffractogram, &f); err != nil {
		return nil, err
	}
	if err := f.Proc.validate(); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return &f, nil
}
