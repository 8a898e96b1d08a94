package visualization

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"emadiff/internal/models"
	"emadiff/internal/testutil"
)

func gradientVolume(t *testing.T, frames, rows, cols int) *models.Volume {
	t.Helper()
	v, err := models.NewVolume(frames, rows, cols)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	// each frame has a unique value
	for f := 0; f < frames; f++ {
		frame := v.Frame(f)
		for i := range frame {
			frame[i] = int32(f + 1)
		}
	}
	return v
}

// TestExtractSlice verifies dimensions and scaling of every cut
func TestExtractSlice(t *testing.T) {
	frames, rows, cols := 4, 6, 10
	viewer := NewViewer(gradientVolume(t, frames, rows, cols))

	for f := 0; f < frames; f++ {
		img, err := viewer.ExtractSlice("frame", f)
		if err != nil {
			t.Fatalf("Failed to extract frame %d: %v", f, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != cols || bounds.Dy() != rows {
			t.Errorf("Expected frame dimensions %dx%d, got %dx%d",
				cols, rows, bounds.Dx(), bounds.Dy())
		}

		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}
		expected := uint16(65535 * (f + 1) / frames)
		got := gray16Img.Gray16At(cols/2, rows/2).Y
		if diff := int(got) - int(expected); diff > 1 || diff < -1 {
			t.Errorf("Expected frame %d value ~%d at center, got %d", f, expected, got)
		}
	}

	imgRow, err := viewer.ExtractSlice("row", rows/2)
	if err != nil {
		t.Fatalf("Failed to extract row slice: %v", err)
	}
	if b := imgRow.Bounds(); b.Dx() != cols || b.Dy() != frames {
		t.Errorf("Expected row slice dimensions %dx%d, got %dx%d", cols, frames, b.Dx(), b.Dy())
	}

	imgCol, err := viewer.ExtractSlice("column", cols/2)
	if err != nil {
		t.Fatalf("Failed to extract column slice: %v", err)
	}
	if b := imgCol.Bounds(); b.Dx() != rows || b.Dy() != frames {
		t.Errorf("Expected column slice dimensions %dx%d, got %dx%d", rows, frames, b.Dx(), b.Dy())
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("frame", frames); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("row", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestZeroVolume verifies an empty stack renders black instead of dividing by zero
func TestZeroVolume(t *testing.T) {
	v, err := models.NewVolume(2, 2, 2)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	img, err := NewViewer(v).ExtractSlice("frame", 0)
	if err != nil {
		t.Fatalf("Failed to extract frame: %v", err)
	}
	if y := img.(*image.Gray16).Gray16At(0, 0).Y; y != 0 {
		t.Errorf("Expected black pixel, got %d", y)
	}
}

// TestProfileImage verifies the stripe profile renders its diagonal peak
func TestProfileImage(t *testing.T) {
	profile := mat.NewDense(2, 3, []float64{0, 10, 5, 5, 0, 10})

	img := ProfileImage(profile).(*image.Gray16)
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("Expected 3x2 profile image, got %dx%d", b.Dx(), b.Dy())
	}
	if y := img.Gray16At(1, 0).Y; y != 65535 {
		t.Errorf("Expected peak to be white, got %d", y)
	}
	if y := img.Gray16At(0, 0).Y; y != 0 {
		t.Errorf("Expected zero to be black, got %d", y)
	}
}

// TestSaveImage verifies a saved slice decodes back with the same size
func TestSaveImage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()
	viewer := NewViewer(testutil.StripeVolume(5, 4, 12, 2))

	img, err := viewer.ExtractSlice("frame", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}

	filename := filepath.Join(tempDir, "frame.png")
	if err := SaveImage(img, filename); err != nil {
		t.Fatalf("Failed to save image: %v", err)
	}

	file, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Saved file does not open: %v", err)
	}
	defer file.Close()
	decoded, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Saved file is not a PNG: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("Expected bounds %v, got %v", img.Bounds(), decoded.Bounds())
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	frames := 3
	viewer := NewViewer(gradientVolume(t, frames, 5, 5))

	outputDir := filepath.Join(t.TempDir(), "frames")
	if err := viewer.SaveSliceSequence("frame", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for f := 0; f < frames; f++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("frame_%03d.png", f))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
