package models

import (
	"github.com/cockroachdb/errors"
)

// Volume represents the stacked detector frames of one angular scan
type Volume struct {
	// Data is the 3D volume data as a 1D array in (frame, row, column) order
	Data []int32

	// Frames is the number of scan steps
	Frames int

	// Rows is the height of the cropped detector window
	Rows int

	// Columns is the detector width in channels
	Columns int
}

// NewVolume allocates a zeroed volume with the given dimensions
func NewVolume(frames, rows, columns int) (*Volume, error) {
	if frames <= 0 || rows <= 0 || columns <= 0 {
		return nil, errors.Newf("invalid volume dimensions %dx%dx%d", frames, rows, columns)
	}
	return &Volume{
		Data:    make([]int32, frames*rows*columns),
		Frames:  frames,
		Rows:    rows,
		Columns: columns,
	}, nil
}

// FrameSize is the number of pixels in one cropped frame
func (v *Volume) FrameSize() int {
	return v.Rows * v.Columns
}

// Frame returns the pixels of frame i in row-major order.
// The returned slice aliases the volume storage.
func (v *Volume) Frame(i int) []int32 {
	size := v.FrameSize()
	return v.Data[i*size : (i+1)*size : (i+1)*size]
}

// FrameRange returns the contiguous storage for frames [start, end)
func (v *Volume) FrameRange(start, end int) []int32 {
	size := v.FrameSize()
	return v.Data[start*size : end*size : end*size]
}

// At returns the count stored at (frame, row, column)
func (v *Volume) At(frame, row, column int) int32 {
	return v.Data[frame*v.FrameSize()+row*v.Columns+column]
}
