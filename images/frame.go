package images

import (
	"bytes"
	"image"
	_ "image/jpeg" // register decoders for LoadFrame
	_ "image/png"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
)

// FrameChannels is the number of interleaved channels in a BGR frame.
const FrameChannels = 3

// NewFrame allocates a zeroed BGR frame of the given size.
func NewFrame(size FrameSize) gocv.Mat {
	return NewZeroMat(size, gocv.MatTypeCV8UC3)
}

// NewZeroMat allocates a Mat of the given size and type with every element
// set to zero.
func NewZeroMat(size FrameSize, mt gocv.MatType) gocv.Mat {
	mat := gocv.NewMatWithSize(size.Height, size.Width, mt)
	mat.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return mat
}

// SizeOf returns the dimensions of a Mat as a FrameSize.
func SizeOf(mat gocv.Mat) FrameSize {
	return FrameSize{Width: mat.Cols(), Height: mat.Rows()}
}

// ImageToMat converts an image.Image to a BGR gocv.Mat.
//
// Arguments:
//   - img: The decoded picture. Non-zero bounds origins are supported.
//
// Returns:
//   - gocv.Mat: A new 8-bit 3-channel Mat. The caller owns it and must Close it.
//   - error: An error if the image is nil or empty.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), errors.New("input image is nil")
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return gocv.NewMat(), errors.Errorf("input image has invalid bounds %v", bounds)
	}

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	data, err := mat.DataPtrUint8()
	if err != nil {
		mat.Close()
		return gocv.NewMat(), errors.Wrap(err, "failed to access frame data")
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// 16-bit to 8-bit, BGR order for OpenCV.
			data[i] = uint8(b >> 8)
			data[i+1] = uint8(g >> 8)
			data[i+2] = uint8(r >> 8)
			i += FrameChannels
		}
	}

	return mat, nil
}

// FitImage rescales img to the given frame size with bilinear interpolation.
// Images that already have the requested size are returned unchanged.
func FitImage(img image.Image, size FrameSize) image.Image {
	b := img.Bounds()
	if b.Dx() == size.Width && b.Dy() == size.Height {
		return img
	}
	return resize.Resize(uint(size.Width), uint(size.Height), img, resize.Bilinear)
}

// LoadFrame decodes an encoded picture (JPEG, PNG, BMP) into a BGR frame of
// exactly the given size.
//
// Pictures that already match the size are decoded by OpenCV directly; any
// other size goes through the Go image decoders and is rescaled with FitImage.
//
// Arguments:
//   - data: The encoded picture bytes.
//   - size: The frame size every segmented frame must have.
//
// Returns:
//   - gocv.Mat: The decoded frame. The caller owns it and must Close it.
//   - error: An error if the picture cannot be decoded.
func LoadFrame(data []byte, size FrameSize) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), errors.New("frame data is empty")
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err == nil && !mat.Empty() && SizeOf(mat) == size {
		return mat, nil
	}
	if err == nil {
		mat.Close()
	}

	img, _, decodeErr := image.Decode(bytes.NewReader(data))
	if decodeErr != nil {
		return gocv.NewMat(), errors.Wrap(decodeErr, "failed to decode frame")
	}
	return ImageToMat(FitImage(img, size))
}
