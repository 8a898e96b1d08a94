package frames

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrMissingFrames marks a scan whose file count differs from its step count
	ErrMissingFrames = errors.New("missing frames")

	// ErrAngleMismatch marks a declared end angle that disagrees with
	// start + steps*step under strict validation
	ErrAngleMismatch = errors.New("end angle mismatch")

	// ErrBadFrameName marks a frame file without a numeric sort token
	ErrBadFrameName = errors.New("frame name has no numeric token")

	// ErrFrameGeometry marks a frame whose size does not fit the detector
	// width or row window
	ErrFrameGeometry = errors.New("frame geometry mismatch")

	// ErrUnsupportedTIFF marks TIFF layouts the decoder cannot read
	ErrUnsupportedTIFF = errors.New("unsupported tiff")
)

// MissingFramesError reports how many frames were expected and found
type MissingFramesError struct {
	Pattern  string
	Expected int
	Found    int
}

func (e *MissingFramesError) Error() string {
	return fmt.Sprintf("missing frames: %s matched %d files, expected %d", e.Pattern, e.Found, e.Expected)
}

// Is lets errors.Is(err, ErrMissingFrames) match
func (e *MissingFramesError) Is(target error) bool {
	return target == ErrMissingFrames
}
