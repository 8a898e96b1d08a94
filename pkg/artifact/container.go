// Package artifact persists calibration and diffractogram results.
//
// An artifact is a CBOR document compressed with zstd and prefixed with a
// short magic header. The document keeps the group layout of the HDF5 files
// the beamline tooling expects (data/, proc/ and metadata/ groups), so field
// names map one to one onto dataset paths.
package artifact

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Extension is appended to every artifact file name
const Extension = ".emd"

// DatetimeLayout formats the metadata/datetime entry
const DatetimeLayout = "2006/01/02 - 15:04:05"

var magic = []byte("EMD\x01")

var (
	// ErrNotArtifact is returned for files without the artifact header
	ErrNotArtifact = errors.New("not an emadiff artifact")

	// ErrKindMismatch is returned when a file holds a different artifact kind
	ErrKindMismatch = errors.New("artifact kind mismatch")
)

// Kind tags the document stored in an artifact
type Kind string

const (
	KindCalibration   Kind = "calibration"
	KindDiffractogram Kind = "diffractogram"
)

// envelope wraps every document with its kind
type envelope struct {
	Kind Kind            `cbor:"kind"`
	Body cbor.RawMessage `cbor:"body"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// NewRunID returns an identifier for one reduction run
func NewRunID() string {
	return uuid.NewString()
}

// Now returns the current time in DatetimeLayout
func Now() string {
	return time.Now().Format(DatetimeLayout)
}

// Encode serializes doc under kind into the compressed artifact format
func Encode(kind Kind, doc any) ([]byte, error) {
	body, err := encMode.Marshal(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", kind)
	}
	raw, err := encMode.Marshal(envelope{Kind: kind, Body: body})
	if err != nil {
		return nil, errors.Wrap(err, "encoding envelope")
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd encoder")
	}
	defer enc.Close()

	out := make([]byte, 0, len(magic)+len(raw)/2)
	out = append(out, magic...)
	return enc.EncodeAll(raw, out), nil
}

// Decode reverses Encode, failing with ErrKindMismatch when the stored kind
// differs from kind
func Decode(data []byte, kind Kind, doc any) error {
	if !bytes.HasPrefix(data, magic) {
		return errors.WithStack(ErrNotArtifact)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return errors.Wrap(err, "creating zstd decoder")
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data[len(magic):], nil)
	if err != nil {
		return errors.Wrap(err, "decompressing artifact")
	}

	var env envelope
	if err := decMode.Unmarshal(raw, &env); err != nil {
		return errors.Wrap(err, "decoding envelope")
	}
	if env.Kind != kind {
		return errors.Wrapf(ErrKindMismatch, "want %s, file holds %s", kind, env.Kind)
	}
	if err := decMode.Unmarshal(env.Body, doc); err != nil {
		return errors.Wrapf(err, "decoding %s", kind)
	}
	return nil
}

// writeFile encodes doc and writes it to path, creating parent directories
func writeFile(path string, kind Kind, doc any) error {
	data, err := Encode(kind, doc)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func readFile(path string, kind Kind, doc any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if err := Decode(data, kind, doc); err != nil {
		return errors.Wrapf(err, "loading %s", path)
	}
	return nil
}
