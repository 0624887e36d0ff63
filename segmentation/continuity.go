package segmentation

import "github.com/nvr-ai/go-pitchseg/histogram"

// ContinuityPolicy decides whether a frame still shows the scene the
// accumulated background estimate was built from.
//
// When SameScene returns true the frame's histogram is folded into the
// history and the running average is used for masking. When it returns
// false the raw histogram of that frame is used and the history is left
// untouched.
type ContinuityPolicy interface {
	SameScene(raw histogram.Histogram, history *Accumulator) bool
}

// ContinuityFunc adapts an ordinary function to a ContinuityPolicy.
type ContinuityFunc func(raw histogram.Histogram, history *Accumulator) bool

// SameScene calls f(raw, history).
func (f ContinuityFunc) SameScene(raw histogram.Histogram, history *Accumulator) bool {
	return f(raw, history)
}

// AlwaysFold treats every frame as a continuation of the current scene.
// It is the default policy.
type AlwaysFold struct{}

// SameScene always returns true.
func (AlwaysFold) SameScene(histogram.Histogram, *Accumulator) bool {
	return true
}

// DistanceThreshold reports a scene change when the Hellinger distance
// between the frame's histogram and the accumulated average exceeds
// MaxDistance. An empty history always continues the scene.
type DistanceThreshold struct {
	// MaxDistance is the largest distance, in [0, 1], still considered the
	// same scene.
	MaxDistance float64
}

// SameScene compares raw with the current average of history.
func (p DistanceThreshold) SameScene(raw histogram.Histogram, history *Accumulator) bool {
	if history.Len() == 0 {
		return true
	}
	d, err := histogram.Hellinger(raw, history.Average())
	if err != nil {
		return false
	}
	return d <= p.MaxDistance
}
