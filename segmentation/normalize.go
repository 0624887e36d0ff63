package segmentation

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-pitchseg/images"
)

// Normalize rescales every pixel of a BGR frame by its channel sum so that
// only chrominance is left:
//
//	out_i = floor(255 * c_i / s), s = c0 + c1 + c2 (s = 1 when zero)
//
// dst must be an 8-bit 3-channel Mat of the same size as src. It may be src
// itself; each pixel is read completely before it is written.
func Normalize(src gocv.Mat, dst *gocv.Mat) error {
	if dst == nil {
		return errors.New("destination frame is nil")
	}
	if src.Empty() || src.Type() != gocv.MatTypeCV8UC3 {
		return errors.Wrap(ErrInvalidFrame, "normalization requires an 8-bit 3-channel frame")
	}
	if dst.Type() != gocv.MatTypeCV8UC3 || dst.Rows() != src.Rows() || dst.Cols() != src.Cols() {
		return errors.Wrapf(ErrDimensionMismatch, "normalization output is %dx%d, input is %dx%d",
			dst.Cols(), dst.Rows(), src.Cols(), src.Rows())
	}

	in, err := src.DataPtrUint8()
	if err != nil {
		return errors.Wrap(err, "failed to access frame data")
	}
	out, err := dst.DataPtrUint8()
	if err != nil {
		return errors.Wrap(err, "failed to access normalized frame data")
	}

	const ch = images.FrameChannels
	images.Parallel(len(in)/ch, func(start, end int) {
		normalizePixels(out[start*ch:end*ch], in[start*ch:end*ch])
	})
	return nil
}

// normalizePixels normalizes interleaved 3-channel pixels from in into out.
// out and in may be the same slice.
func normalizePixels(out, in []uint8) {
	for i := 0; i+2 < len(in); i += 3 {
		c0, c1, c2 := int(in[i]), int(in[i+1]), int(in[i+2])
		s := c0 + c1 + c2
		if s == 0 {
			s = 1
		}
		out[i] = uint8(255 * c0 / s)
		out[i+1] = uint8(255 * c1 / s)
		out[i+2] = uint8(255 * c2 / s)
	}
}

// Smooth blurs frame in place with a kernelSize x kernelSize Gaussian kernel
// and standard deviation kernelSize/3. It does nothing for SmoothingDisabled.
func Smooth(frame *gocv.Mat, kernelSize int) error {
	if kernelSize == SmoothingDisabled {
		return nil
	}
	if frame == nil || frame.Empty() {
		return errors.Wrap(ErrInvalidFrame, "cannot smooth an empty frame")
	}

	sigma := float64(kernelSize) / 3
	if err := gocv.GaussianBlur(*frame, frame, image.Pt(kernelSize, kernelSize), sigma, sigma, gocv.BorderDefault); err != nil {
		return errors.Wrap(err, "gaussian blur failed")
	}
	return nil
}
