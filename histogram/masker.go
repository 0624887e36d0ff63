package histogram

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	// DefaultFilterWindow is the number of bins covered by the smoothing kernel.
	DefaultFilterWindow = 5
	// DefaultFilterSigma is the standard deviation of the smoothing kernel, in bins.
	DefaultFilterSigma = 1.0
	// DefaultPeakFraction is the fraction of the peak below which the
	// background peak stops growing.
	DefaultPeakFraction = 0.01
)

const (
	// MaskForeground marks a foreground pixel in a backprojected mask.
	MaskForeground uint8 = 255
	// MaskBackground marks a background pixel in a backprojected mask.
	MaskBackground uint8 = 0
)

// Masker estimates the dominant (background) peak of a histogram and
// backprojects it onto frames.
type Masker struct {
	// FilterWindow is the odd kernel length used by Filter.
	FilterWindow int
	// FilterSigma is the Gaussian standard deviation used by Filter.
	FilterSigma float64
	// PeakFraction bounds the background peak relative to its maximum.
	PeakFraction float64
}

// NewMasker returns a Masker with the default parameters.
func NewMasker() *Masker {
	return &Masker{
		FilterWindow: DefaultFilterWindow,
		FilterSigma:  DefaultFilterSigma,
		PeakFraction: DefaultPeakFraction,
	}
}

// Filter smooths h across bins with a Gaussian kernel to suppress spurious
// single-bin peaks. Edges are handled by reflection, so no mass is invented
// outside the histogram range.
func (m *Masker) Filter(h Histogram) (Histogram, error) {
	if len(h) == 0 {
		return New(0), nil
	}
	if m.FilterWindow < 1 || m.FilterWindow%2 == 0 {
		return nil, errors.Errorf("filter window must be a positive odd number, got %d", m.FilterWindow)
	}

	src := gocv.NewMatWithSize(len(h), 1, gocv.MatTypeCV32FC1)
	defer src.Close()
	for i, v := range h {
		src.SetFloatAt(i, 0, float32(v))
	}

	dst := gocv.NewMat()
	defer dst.Close()
	ksize := image.Pt(1, m.FilterWindow)
	if err := gocv.GaussianBlur(src, &dst, ksize, m.FilterSigma, m.FilterSigma, gocv.BorderReflect101); err != nil {
		return nil, errors.Wrap(err, "histogram smoothing failed")
	}

	out := New(len(h))
	for i := range out {
		out[i] = float64(dst.GetFloatAt(i, 0))
	}
	return out, nil
}

// Mask derives a 0/1 per-bin mask selecting the dominant peak of a smoothed
// histogram. The peak grows from the largest bin in both directions while
// the values keep falling and stay above PeakFraction of the maximum.
// An all-zero histogram yields an all-zero mask.
func (m *Masker) Mask(filtered Histogram) Histogram {
	mask := New(len(filtered))
	peak := filtered.Peak()
	if peak < 0 || filtered[peak] <= 0 {
		return mask
	}

	floor := filtered[peak] * m.PeakFraction
	mask[peak] = 1
	for i := peak - 1; i >= 0 && filtered[i] > floor && filtered[i] <= filtered[i+1]; i-- {
		mask[i] = 1
	}
	for i := peak + 1; i < len(filtered) && filtered[i] > floor && filtered[i] <= filtered[i-1]; i++ {
		mask[i] = 1
	}
	return mask
}

// BackProject implements the backprojection step with the package defaults.
func (m *Masker) BackProject(frame gocv.Mat, h Histogram, channel int, invert bool, dst *gocv.Mat) error {
	return BackProject(frame, h, channel, invert, dst)
}

// BackProject looks up every pixel of one channel of frame in h and writes a
// binary mask into dst.
//
// A pixel whose bin holds a non-zero count is marked MaskForeground, any other
// pixel (including samples outside the histogram range) MaskBackground. When
// invert is set the two labels are swapped, so pixels of the selected bins
// become background.
//
// Arguments:
//   - frame: An 8-bit continuous frame.
//   - h: The histogram to look pixels up in.
//   - channel: The channel of frame to read.
//   - invert: Swap foreground and background labels.
//   - dst: Destination mask. It is reallocated as 8-bit single-channel when its
//     size or type does not match frame.
//
// Returns:
//   - error: An error if the frame cannot be read or the arguments are invalid.
func BackProject(frame gocv.Mat, h Histogram, channel int, invert bool, dst *gocv.Mat) error {
	if dst == nil {
		return errors.New("destination mask is nil")
	}
	if frame.Empty() {
		return errors.New("cannot backproject onto an empty frame")
	}
	switch frame.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
	default:
		return errors.Errorf("unsupported frame type %v", frame.Type())
	}
	channels := frame.Channels()
	if channel < 0 || channel >= channels {
		return errors.Errorf("channel %d out of bounds [0, %d)", channel, channels)
	}
	if len(h) == 0 {
		return errors.New("cannot backproject an empty histogram")
	}

	if dst.Empty() || dst.Rows() != frame.Rows() || dst.Cols() != frame.Cols() || dst.Type() != gocv.MatTypeCV8UC1 {
		dst.Close()
		*dst = gocv.NewMatWithSize(frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC1)
	}

	src, err := frame.DataPtrUint8()
	if err != nil {
		return errors.Wrap(err, "failed to access frame data")
	}
	out, err := dst.DataPtrUint8()
	if err != nil {
		return errors.Wrap(err, "failed to access mask data")
	}

	hit, miss := MaskForeground, MaskBackground
	if invert {
		hit, miss = miss, hit
	}
	var lut [256]uint8
	for v := range lut {
		lut[v] = miss
		if bin, ok := BinOf(uint8(v), len(h)); ok && h[bin] > 0 {
			lut[v] = hit
		}
	}

	for i := range out {
		out[i] = lut[src[i*channels+channel]]
	}
	return nil
}
