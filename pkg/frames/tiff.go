package frames

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/tiff"
)

// Image is one decoded single-channel detector frame
type Image struct {
	Width  int
	Height int
	// Pix holds counts in row-major order
	Pix []int32
}

// Row returns row y of the frame
func (im *Image) Row(y int) []int32 {
	return im.Pix[y*im.Width : (y+1)*im.Width]
}

const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagSampleFormat    = 339

	typeByte  = 1
	typeShort = 3
	typeLong  = 4

	sampleUnsigned = 1
	sampleSigned   = 2
	sampleFloat    = 3
)

// DecodeTIFF decodes a single-channel TIFF frame. 32-bit integer and float
// frames (the Pilatus layout, uncompressed strips) are read directly; 8 and
// 16-bit grayscale frames go through golang.org/x/image/tiff.
func DecodeTIFF(data []byte) (*Image, error) {
	ifd, order, err := readIFD(data)
	if err != nil {
		return nil, err
	}

	if bits := ifd.first(tagBitsPerSample, 1); bits != 32 {
		return decodeStandard(data)
	}
	return decode32(data, ifd, order)
}

type ifdEntries map[uint16][]uint32

func (d ifdEntries) first(tag uint16, def uint32) uint32 {
	if v, ok := d[tag]; ok && len(v) > 0 {
		return v[0]
	}
	return def
}

func readIFD(data []byte) (ifdEntries, binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, nil, errors.Wrap(ErrUnsupportedTIFF, "file too short")
	}

	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, nil, errors.Wrap(ErrUnsupportedTIFF, "bad byte order marker")
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, nil, errors.Wrap(ErrUnsupportedTIFF, "not a classic tiff")
	}

	off := int(order.Uint32(data[4:8]))
	if off+2 > len(data) {
		return nil, nil, errors.Wrap(ErrUnsupportedTIFF, "ifd offset out of range")
	}
	n := int(order.Uint16(data[off : off+2]))
	off += 2
	if off+n*12 > len(data) {
		return nil, nil, errors.Wrap(ErrUnsupportedTIFF, "truncated ifd")
	}

	entries := make(ifdEntries, n)
	for i := 0; i < n; i++ {
		e := data[off+i*12 : off+(i+1)*12]
		tag := order.Uint16(e[0:2])
		typ := order.Uint16(e[2:4])
		count := int(order.Uint32(e[4:8]))

		var size int
		switch typ {
		case typeByte:
			size = 1
		case typeShort:
			size = 2
		case typeLong:
			size = 4
		default:
			continue
		}

		raw := e[8:12]
		if count*size > 4 {
			start := int(order.Uint32(e[8:12]))
			if start < 0 || start+count*size > len(data) {
				return nil, nil, errors.Wrapf(ErrUnsupportedTIFF, "tag %d values out of range", tag)
			}
			raw = data[start : start+count*size]
		}

		values := make([]uint32, count)
		for j := range values {
			switch size {
			case 1:
				values[j] = uint32(raw[j])
			case 2:
				values[j] = uint32(order.Uint16(raw[j*2:]))
			case 4:
				values[j] = order.Uint32(raw[j*4:])
			}
		}
		entries[tag] = values
	}
	return entries, order, nil
}

func decode32(data []byte, ifd ifdEntries, order binary.ByteOrder) (*Image, error) {
	if c := ifd.first(tagCompression, 1); c != 1 {
		return nil, errors.Wrapf(ErrUnsupportedTIFF, "32-bit frame with compression %d", c)
	}
	if spp := ifd.first(tagSamplesPerPixel, 1); spp != 1 {
		return nil, errors.Wrapf(ErrUnsupportedTIFF, "32-bit frame with %d samples per pixel", spp)
	}

	width := int(ifd.first(tagImageWidth, 0))
	height := int(ifd.first(tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, errors.Wrap(ErrUnsupportedTIFF, "missing image dimensions")
	}

	offsets := ifd[tagStripOffsets]
	counts := ifd[tagStripByteCounts]
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, errors.Wrap(ErrUnsupportedTIFF, "missing or inconsistent strips")
	}

	raw := make([]byte, 0, width*height*4)
	for i, off := range offsets {
		end := int(off) + int(counts[i])
		if end > len(data) {
			return nil, errors.Wrapf(ErrUnsupportedTIFF, "strip %d out of range", i)
		}
		raw = append(raw, data[off:end]...)
	}
	if len(raw) < width*height*4 {
		return nil, errors.Wrapf(ErrUnsupportedTIFF, "strips hold %d bytes, need %d", len(raw), width*height*4)
	}

	format := ifd.first(tagSampleFormat, sampleUnsigned)
	pix := make([]int32, width*height)
	for i := range pix {
		u := order.Uint32(raw[i*4:])
		switch format {
		case sampleSigned:
			pix[i] = int32(u)
		case sampleFloat:
			pix[i] = int32(math.Round(float64(math.Float32frombits(u))))
		default:
			pix[i] = int32(min(u, math.MaxInt32))
		}
	}

	return &Image{Width: width, Height: height, Pix: pix}, nil
}

func decodeStandard(data []byte) (*Image, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode tiff")
	}

	b := img.Bounds()
	out := &Image{Width: b.Dx(), Height: b.Dy(), Pix: make([]int32, b.Dx()*b.Dy())}

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				out.Pix[y*out.Width+x] = int32(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				out.Pix[y*out.Width+x] = int32(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				out.Pix[y*out.Width+x] = int32(g.Y)
			}
		}
	}
	return out, nil
}
