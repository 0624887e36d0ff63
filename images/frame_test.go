package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func getTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func getPNGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageToMatUsesBGROrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 12, 21)) // non-zero Min
	img.Set(10, 20, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	img.Set(11, 20, color.RGBA{R: 4, G: 5, B: 6, A: 255})

	mat, err := ImageToMat(img)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, FrameSize{Width: 2, Height: 1}, SizeOf(mat))
	assert.Equal(t, FrameChannels, mat.Channels())

	data, err := mat.DataPtrUint8()
	require.NoError(t, err)
	assert.Equal(t, []uint8{3, 2, 1, 6, 5, 4}, data)
}

func TestImageToMatRejectsNil(t *testing.T) {
	mat, err := ImageToMat(nil)
	defer mat.Close()
	assert.Error(t, err)
}

func TestNewFrameIsZeroed(t *testing.T) {
	frame := NewFrame(FrameSize{Width: 5, Height: 4})
	defer frame.Close()

	assert.Equal(t, 4, frame.Rows())
	assert.Equal(t, 5, frame.Cols())
	assert.Equal(t, gocv.MatTypeCV8UC3, frame.Type())
	data, err := frame.DataPtrUint8()
	require.NoError(t, err)
	for _, v := range data {
		require.Zero(t, v)
	}
}

func TestFitImage(t *testing.T) {
	img := getTestImage(8, 6)

	same := FitImage(img, FrameSize{Width: 8, Height: 6})
	assert.Same(t, img, same)

	scaled := FitImage(img, FrameSize{Width: 4, Height: 3})
	assert.Equal(t, 4, scaled.Bounds().Dx())
	assert.Equal(t, 3, scaled.Bounds().Dy())
}

func TestLoadFrame(t *testing.T) {
	data := getPNGBytes(t, getTestImage(8, 6))

	tests := []struct {
		name string
		size FrameSize
	}{
		{name: "matching size", size: FrameSize{Width: 8, Height: 6}},
		{name: "rescaled", size: FrameSize{Width: 16, Height: 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := LoadFrame(data, tt.size)
			require.NoError(t, err)
			defer frame.Close()

			assert.Equal(t, tt.size, SizeOf(frame))
			assert.Equal(t, gocv.MatTypeCV8UC3, frame.Type())

			// Uniform colour survives decoding and bilinear scaling.
			pixel, err := frame.DataPtrUint8()
			require.NoError(t, err)
			assert.InDelta(t, 50, int(pixel[0]), 1)
			assert.InDelta(t, 100, int(pixel[1]), 1)
			assert.InDelta(t, 200, int(pixel[2]), 1)
		})
	}
}

func TestLoadFrameRejectsGarbage(t *testing.T) {
	_, err := LoadFrame([]byte("not an image"), FrameSize{Width: 2, Height: 2})
	assert.Error(t, err)

	_, err = LoadFrame(nil, FrameSize{Width: 2, Height: 2})
	assert.Error(t, err)
}

func TestChecksum(t *testing.T) {
	a := NewFrame(FrameSize{Width: 3, Height: 3})
	defer a.Close()
	b := NewFrame(FrameSize{Width: 3, Height: 3})
	defer b.Close()

	sumA, err := Checksum(a)
	require.NoError(t, err)
	sumB, err := Checksum(b)
	require.NoError(t, err)
	assert.Equal(t, sumA, sumB)

	b.SetUCharAt(1, 1, 9)
	sumB, err = Checksum(b)
	require.NoError(t, err)
	assert.NotEqual(t, sumA, sumB)

	empty := gocv.NewMat()
	defer empty.Close()
	sum, err := Checksum(empty)
	require.NoError(t, err)
	assert.Equal(t, "empty", sum)
}
