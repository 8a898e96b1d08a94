// Package visualization renders intermediary images of a reduction run:
// detector frames, cuts through the frame stack and channel profiles.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"emadiff/internal/models"
)

// Viewer extracts 16-bit grayscale images from a frame stack. Intensities are
// scaled linearly so the brightest count of the stack maps to white.
type Viewer struct {
	volume *models.Volume

	// scale maps counts to the Gray16 range
	scale float64
}

// NewViewer creates a viewer over volume
func NewViewer(volume *models.Volume) *Viewer {
	var peak int32
	for _, v := range volume.Data {
		if v > peak {
			peak = v
		}
	}
	scale := 0.0
	if peak > 0 {
		scale = 65535 / float64(peak)
	}
	return &Viewer{volume: volume, scale: scale}
}

func gray(value, scale float64) color.Gray16 {
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, value*scale)))}
}

// ExtractSlice cuts the stack along an axis:
//
//	"frame"  one detector frame, columns x rows
//	"row"    one detector row across all frames, columns x frames
//	"column" one channel across all frames, rows x frames
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	vol := v.volume

	var img *image.Gray16
	switch axis {
	case "frame":
		if position >= vol.Frames {
			return nil, fmt.Errorf("position %d exceeds frame count %d", position, vol.Frames)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Columns, vol.Rows))
		for r := 0; r < vol.Rows; r++ {
			for c := 0; c < vol.Columns; c++ {
				img.SetGray16(c, r, gray(float64(vol.At(position, r, c)), v.scale))
			}
		}

	case "row":
		if position >= vol.Rows {
			return nil, fmt.Errorf("position %d exceeds row count %d", position, vol.Rows)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Columns, vol.Frames))
		for f := 0; f < vol.Frames; f++ {
			for c := 0; c < vol.Columns; c++ {
				img.SetGray16(c, f, gray(float64(vol.At(f, position, c)), v.scale))
			}
		}

	case "column":
		if position >= vol.Columns {
			return nil, fmt.Errorf("position %d exceeds column count %d", position, vol.Columns)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Rows, vol.Frames))
		for f := 0; f < vol.Frames; f++ {
			for r := 0; r < vol.Rows; r++ {
				img.SetGray16(r, f, gray(float64(vol.At(f, r, position)), v.scale))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be frame, row or column)", axis)
	}

	return img, nil
}

// ProfileImage renders a frames x channels profile, one image row per frame
func ProfileImage(profile mat.Matrix) image.Image {
	frames, channels := profile.Dims()
	peak := mat.Max(profile)
	scale := 0.0
	if peak > 0 {
		scale = 65535 / peak
	}

	img := image.NewGray16(image.Rect(0, 0, channels, frames))
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			img.SetGray16(c, f, gray(profile.At(f, c), scale))
		}
	}
	return img
}

// SaveImage writes img as a 16-bit PNG
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "frame":
		maxPos = v.volume.Frames
	case "row":
		maxPos = v.volume.Rows
	case "column":
		maxPos = v.volume.Columns
	default:
		return fmt.Errorf("invalid axis: %s (must be frame, row or column)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%03d.png", axis, pos))
		if err := SaveImage(img, filename); err != nil {
			return err
		}
	}

	return nil
}
