package segmentation

import "github.com/pkg/errors"

var (
	// ErrDimensionMismatch is returned when a frame's size differs from the
	// frame size the Segmenter was built for.
	ErrDimensionMismatch = errors.New("frame dimensions do not match configured frame size")
	// ErrInvalidFrame is returned for empty frames and frames that are not
	// 8-bit 3-channel images.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrInvalidConfig is wrapped by every configuration validation error.
	ErrInvalidConfig = errors.New("invalid segmentation config")
	// ErrClosed is returned when a closed Segmenter is used.
	ErrClosed = errors.New("segmenter is closed")
)
