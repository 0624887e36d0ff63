// Package histogram computes single-channel histograms of 8-bit frames and
// provides the arithmetic used to turn them into background estimates.
//
// Histograms cover the value range [RangeMin, RangeMax) with uniform bins, the
// same layout gocv.CalcHist produces. A sample equal to RangeMax falls outside
// every bin.
package histogram

import (
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// RangeMin is the inclusive lower bound of the histogram range.
	RangeMin = 0.0
	// RangeMax is the exclusive upper bound of the histogram range.
	RangeMax = 255.0
)

// Histogram is an ordered sequence of per-bin counts.
type Histogram []float64

// New returns an all-zero histogram with the given number of bins.
func New(bins int) Histogram {
	return make(Histogram, bins)
}

// Bins returns the number of bins.
func (h Histogram) Bins() int {
	return len(h)
}

// Clone returns an independent copy of h.
func (h Histogram) Clone() Histogram {
	out := make(Histogram, len(h))
	copy(out, h)
	return out
}

// Sum returns the total count over all bins.
func (h Histogram) Sum() float64 {
	return floats.Sum(h)
}

// Peak returns the index of the largest bin, or -1 for an empty histogram.
// Ties resolve to the lowest index.
func (h Histogram) Peak() int {
	if len(h) == 0 {
		return -1
	}
	return floats.MaxIdx(h)
}

// BinOf maps an 8-bit sample to its bin index. The second result is false
// when the sample lies outside [RangeMin, RangeMax).
func BinOf(value uint8, bins int) (int, bool) {
	v := float64(value)
	if bins <= 0 || v < RangeMin || v >= RangeMax {
		return 0, false
	}
	// Same evaluation order as OpenCV's uniform 8-bit lookup table, so that
	// BinOf agrees with Compute at exact bin boundaries.
	scale := float64(bins) / (RangeMax - RangeMin)
	idx := int(math.Floor(v*scale - RangeMin*scale))
	return min(max(idx, 0), bins-1), true
}

// Compute calculates the histogram of one channel of an 8-bit frame.
//
// Arguments:
//   - frame: An 8-bit frame with at least channel+1 channels.
//   - channel: Index of the channel to count.
//   - bins: Number of uniform bins over [RangeMin, RangeMax).
//
// Returns:
//   - Histogram: A new histogram with exactly bins entries.
//   - error: An error if the arguments are invalid or OpenCV fails.
func Compute(frame gocv.Mat, channel, bins int) (Histogram, error) {
	if frame.Empty() {
		return nil, errors.New("cannot compute histogram of an empty frame")
	}
	if bins <= 0 {
		return nil, errors.Errorf("bins must be positive, got %d", bins)
	}
	if channel < 0 || channel >= frame.Channels() {
		return nil, errors.Errorf("channel %d out of bounds [0, %d)", channel, frame.Channels())
	}

	hist := gocv.NewMat()
	defer hist.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	err := gocv.CalcHist([]gocv.Mat{frame}, []int{channel}, mask, &hist, []int{bins}, []float64{RangeMin, RangeMax}, false)
	if err != nil {
		return nil, errors.Wrap(err, "histogram calculation failed")
	}
	if hist.Rows() != bins {
		return nil, errors.Errorf("histogram has %d bins, expected %d", hist.Rows(), bins)
	}

	out := New(bins)
	for i := range out {
		out[i] = float64(hist.GetFloatAt(i, 0))
	}
	return out, nil
}

// Multiply returns the elementwise product of h and mask.
func Multiply(h, mask Histogram) (Histogram, error) {
	if len(h) != len(mask) {
		return nil, errors.Errorf("bin count mismatch: %d vs %d", len(h), len(mask))
	}
	out := New(len(h))
	floats.MulTo(out, h, mask)
	return out, nil
}

// Normalize returns h scaled to unit sum. An all-zero histogram is returned
// as an all-zero copy.
func Normalize(h Histogram) Histogram {
	out := New(len(h))
	total := floats.Sum(h)
	if total <= 0 {
		return out
	}
	floats.ScaleTo(out, 1/total, h)
	return out
}

// Hellinger returns the Hellinger distance between the normalized forms of a
// and b, in [0, 1]. Two empty histograms are at distance 0; an empty and a
// non-empty histogram are at distance 1.
func Hellinger(a, b Histogram) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Errorf("bin count mismatch: %d vs %d", len(a), len(b))
	}
	sumA, sumB := floats.Sum(a), floats.Sum(b)
	switch {
	case sumA <= 0 && sumB <= 0:
		return 0, nil
	case sumA <= 0 || sumB <= 0:
		return 1, nil
	}
	d := stat.Hellinger(Normalize(a), Normalize(b))
	if math.IsNaN(d) {
		// Rounding can push the Bhattacharyya coefficient slightly above 1.
		return 0, nil
	}
	return d, nil
}
