// Package testutil builds synthetic detector scans for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"emadiff/internal/models"
)

// StripePeak is the count at the centre of a synthetic stripe; the two
// neighbouring channels receive half of it
const StripePeak = 100

// EncodeInt32TIFF writes an uncompressed single-strip signed 32-bit
// grayscale TIFF, the layout produced by Pilatus detectors
func EncodeInt32TIFF(w io.Writer, width, height int, pix []int32, order binary.ByteOrder) error {
	if len(pix) != width*height {
		return fmt.Errorf("pixel count %d does not match %dx%d", len(pix), width, height)
	}

	type entry struct {
		tag, typ uint16
		value    uint32
	}
	const (
		short = 3
		long  = 4
	)
	entries := []entry{
		{256, long, uint32(width)},
		{257, long, uint32(height)},
		{258, short, 32},
		{259, short, 1},
		{262, short, 1},
		{273, long, 0}, // patched below
		{277, short, 1},
		{278, long, uint32(height)},
		{279, long, uint32(width * height * 4)},
		{339, short, 2},
	}
	ifdSize := 2 + len(entries)*12 + 4
	dataOffset := uint32(8 + ifdSize)
	entries[5].value = dataOffset

	var buf bytes.Buffer
	if order == binary.BigEndian {
		buf.WriteString("MM")
	} else {
		buf.WriteString("II")
	}
	_ = binary.Write(&buf, order, uint16(42))
	_ = binary.Write(&buf, order, uint32(8))
	_ = binary.Write(&buf, order, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&buf, order, e.tag)
		_ = binary.Write(&buf, order, e.typ)
		_ = binary.Write(&buf, order, uint32(1))
		if e.typ == short {
			_ = binary.Write(&buf, order, uint16(e.value))
			_ = binary.Write(&buf, order, uint16(0))
		} else {
			_ = binary.Write(&buf, order, e.value)
		}
	}
	_ = binary.Write(&buf, order, uint32(0))
	_ = binary.Write(&buf, order, pix)

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteInt32TIFF writes a little-endian 32-bit frame to path
func WriteInt32TIFF(path string, width, height int, pix []int32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeInt32TIFF(f, width, height, pix, binary.LittleEndian); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteGray16TIFF writes a 16-bit grayscale frame using golang.org/x/image/tiff
func WriteGray16TIFF(path string, width, height int, pix []int32) error {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(pix[y*width+x])})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, img, nil); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// StripeFrame returns one frame of a stripe scan: every row carries a
// three channel stripe centred on channel frame+offset, with counts
// StripePeak/2, StripePeak, StripePeak/2
func StripeFrame(frame, rows, columns, offset int) []int32 {
	pix := make([]int32, rows*columns)
	center := frame + offset
	for y := 0; y < rows; y++ {
		for dc, v := range []int32{StripePeak / 2, StripePeak, StripePeak / 2} {
			c := center - 1 + dc
			if c >= 0 && c < columns {
				pix[y*columns+c] = v
			}
		}
	}
	return pix
}

// StripeVolume builds the in-memory volume of a stripe scan
func StripeVolume(frames, rows, columns, offset int) *models.Volume {
	v, err := models.NewVolume(frames, rows, columns)
	if err != nil {
		panic(err)
	}
	for f := 0; f < frames; f++ {
		copy(v.Frame(f), StripeFrame(f, rows, columns, offset))
	}
	return v
}

// WriteStripeScan writes a stripe scan as <dir>/<prefix><index>.tiff with
// indices that are not zero padded, and returns the paths in frame order
func WriteStripeScan(dir, prefix string, frames, rows, columns, offset int) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	paths := make([]string, frames)
	for f := 0; f < frames; f++ {
		paths[f] = filepath.Join(dir, fmt.Sprintf("%s%d.tiff", prefix, f))
		if err := WriteInt32TIFF(paths[f], columns, rows, StripeFrame(f, rows, columns, offset)); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
