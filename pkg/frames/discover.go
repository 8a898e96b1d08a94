package frames

import (
	"cmp"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"emadiff/internal/models"
)

// Pattern returns the glob used to find the frames of a scan
func Pattern(spec models.ScanSpec) string {
	return filepath.Join(spec.Folder, spec.Prefix+"*."+extension(spec))
}

func extension(spec models.ScanSpec) string {
	if spec.Extension == "" {
		return "tiff"
	}
	return spec.Extension
}

// frameToken matches the number closing a frame name, with an optional sign
// and fraction: scan_9, scan_10, scan_12.5, scan_-1.5
var frameToken = regexp.MustCompile(`(-?[0-9]+(?:\.[0-9]+)?)$`)

// numericToken extracts the number right before the extension, so that
// scan_9.tiff sorts before scan_10.tiff. Only the part after prefix is
// searched, so a dash closing the prefix (scan-10.tiff) is not a sign.
func numericToken(name, prefix, ext string) (float64, bool) {
	base := filepath.Base(name)
	stem, ok := strings.CutSuffix(base, "."+ext)
	if !ok {
		return 0, false
	}
	stem = strings.TrimPrefix(stem, prefix)
	m := frameToken.FindStringSubmatch(stem)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SortByNumber orders frame paths by their numeric token, not lexically.
// Ties keep lexical order.
func SortByNumber(paths []string, prefix, ext string) ([]string, error) {
	type keyed struct {
		path string
		num  float64
	}

	entries := make([]keyed, len(paths))
	for i, p := range paths {
		n, ok := numericToken(p, prefix, ext)
		if !ok {
			return nil, errors.Wrapf(ErrBadFrameName, "%s", filepath.Base(p))
		}
		entries[i] = keyed{path: p, num: n}
	}

	slices.SortStableFunc(entries, func(a, b keyed) int {
		if c := cmp.Compare(a.num, b.num); c != 0 {
			return c
		}
		return cmp.Compare(a.path, b.path)
	})

	sorted := make([]string, len(entries))
	for i, e := range entries {
		sorted[i] = e.path
	}
	return sorted, nil
}

// Discover lists the frames of a scan in scan-step order and checks that
// exactly spec.Steps files exist
func Discover(spec models.ScanSpec) ([]string, error) {
	pattern := Pattern(spec)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid frame pattern %s", pattern)
	}

	if len(matches) != spec.Steps {
		return nil, errors.WithStack(&MissingFramesError{
			Pattern:  pattern,
			Expected: spec.Steps,
			Found:    len(matches),
		})
	}

	return SortByNumber(matches, spec.Prefix, extension(spec))
}
