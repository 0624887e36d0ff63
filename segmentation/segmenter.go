// Package segmentation separates players and ball from the pitch in broadcast
// video frames.
//
// The Segmenter estimates the dominant background colour from a temporal
// average of chrominance histograms and marks every pixel outside that colour
// as foreground.
//
// Pipeline Overview:
//
// ┌────────────────────────────┐
// │ Input Frame (BGR, 8-bit)   │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Chrominance normalization  │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Gaussian blur (optional)   │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Green-channel histogram    │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Temporal folding (policy)  │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Peak mask + backprojection │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Closing (optional)         │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Foreground Mask            │
// └────────────────────────────┘
//
// Usage:
//
//	seg, err := segmentation.New(size, segmentation.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer seg.Close()
//
//	for frame := range frames {
//	    mask, err := seg.ProcessFrame(frame)
//	    ...
//	}
//
// A Segmenter is not safe for concurrent use. Use one instance per video
// stream; the controller package serializes access per stream.
package segmentation

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-pitchseg/histogram"
	"github.com/nvr-ai/go-pitchseg/images"
)

// HistogramMasker turns an effective background histogram into a per-pixel
// mask. histogram.Masker is the default implementation.
type HistogramMasker interface {
	// Filter smooths a histogram across bins.
	Filter(h histogram.Histogram) (histogram.Histogram, error)
	// Mask derives a 0/1 per-bin mask of the background peak.
	Mask(filtered histogram.Histogram) histogram.Histogram
	// BackProject writes a binary mask of frame's channel looked up in h.
	BackProject(frame gocv.Mat, h histogram.Histogram, channel int, invert bool, dst *gocv.Mat) error
}

// Stage names a step of the per-frame pipeline.
type Stage string

// Pipeline stages reported to a StageObserver.
const (
	StageNormalize   Stage = "normalize"
	StageSmooth      Stage = "smooth"
	StageHistogram   Stage = "histogram"
	StageMask        Stage = "mask"
	StageBackProject Stage = "backproject"
	StageMorphology  Stage = "morphology"
)

// StageObserver receives the duration of every pipeline stage.
type StageObserver interface {
	ObserveStage(stage Stage, d time.Duration)
}

// Option customizes a Segmenter.
type Option func(*Segmenter)

// WithLogger sets the logger used for lifecycle and per-frame debug events.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Segmenter) {
		s.logger = logger.With().Str("component", "segmenter").Logger()
	}
}

// WithContinuityPolicy replaces the default AlwaysFold policy.
func WithContinuityPolicy(policy ContinuityPolicy) Option {
	return func(s *Segmenter) {
		s.policy = policy
	}
}

// WithMasker replaces the default histogram.Masker.
func WithMasker(masker HistogramMasker) Option {
	return func(s *Segmenter) {
		s.masker = masker
	}
}

// WithStageObserver reports stage timings to observer.
func WithStageObserver(observer StageObserver) Option {
	return func(s *Segmenter) {
		s.observer = observer
	}
}

// Segmenter produces a foreground mask for every frame of one video stream.
//
// The normalized frame and mask buffers are allocated once by New and
// overwritten by every ProcessFrame call. The histogram history persists
// across frames, so identical frames can yield different masks depending on
// what was processed before them; call Reset to start over.
type Segmenter struct {
	config   Config
	size     images.FrameSize
	policy   ContinuityPolicy
	masker   HistogramMasker
	observer StageObserver
	logger   zerolog.Logger

	history     *Accumulator
	diagnostics *DiagnosticLog
	cleaner     *MorphologicalCleaner

	normalized gocv.Mat
	mask       gocv.Mat

	frameCount    int64
	lastHistogram histogram.Histogram
	lastFolded    bool
	closed        bool
}

// New validates cfg and allocates a Segmenter for frames of the given size.
//
// Arguments:
//   - size: The fixed frame size of the stream.
//   - cfg: The segmentation parameters.
//   - opts: Optional overrides (logger, continuity policy, masker, observer).
//
// Returns:
//   - *Segmenter: The segmenter. Call Close to release native memory.
//   - error: An error wrapping ErrInvalidConfig if the parameters are invalid.
func New(size images.FrameSize, cfg Config, opts ...Option) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !size.Valid() {
		return nil, errors.Wrapf(ErrInvalidConfig, "frame size must be positive, got %s", size)
	}

	s := &Segmenter{
		config:      cfg,
		size:        size,
		policy:      AlwaysFold{},
		masker:      histogram.NewMasker(),
		logger:      zerolog.Nop(),
		history:     NewAccumulator(cfg.AccumSize, cfg.Bins),
		diagnostics: newDiagnosticLog(cfg.DiagnosticLogSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy == nil {
		s.policy = AlwaysFold{}
	}
	if s.masker == nil {
		s.masker = histogram.NewMasker()
	}

	s.normalized = images.NewFrame(size)
	s.mask = images.NewZeroMat(size, gocv.MatTypeCV8UC1)
	if cfg.ApplyMorphologic {
		s.cleaner = NewMorphologicalCleaner(size, cfg.LegacyMorphology)
	}

	s.logger.Info().
		Str("frame_size", size.String()).
		Int("accum_size", cfg.AccumSize).
		Int("bins", cfg.Bins).
		Int("smooth_size", cfg.SmoothSize).
		Bool("apply_morphologic", cfg.ApplyMorphologic).
		Bool("legacy_morphology", cfg.LegacyMorphology).
		Msg("segmenter initialized")

	return s, nil
}

// ProcessFrame segments one frame.
//
// Arguments:
//   - frame: An 8-bit BGR frame of the configured size. It is not modified.
//
// Returns:
//   - *gocv.Mat: The Segmenter's mask buffer (255 foreground, 0 background).
//     It stays owned by the Segmenter and is overwritten by the next call;
//     Clone it to keep it.
//   - error: ErrDimensionMismatch or ErrInvalidFrame for frames outside the
//     contract, or a wrapped OpenCV error.
func (s *Segmenter) ProcessFrame(frame gocv.Mat) (*gocv.Mat, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if err := s.checkFrame(frame); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := Normalize(frame, &s.normalized); err != nil {
		return nil, errors.Wrap(err, "normalization failed")
	}
	start = s.observe(StageNormalize, start)

	if s.config.SmoothSize != SmoothingDisabled {
		if err := Smooth(&s.normalized, s.config.SmoothSize); err != nil {
			return nil, errors.Wrap(err, "smoothing failed")
		}
		start = s.observe(StageSmooth, start)
	}

	effective, err := s.backgroundHistogram()
	if err != nil {
		return nil, err
	}
	start = s.observe(StageHistogram, start)

	filtered, err := s.masker.Filter(effective)
	if err != nil {
		return nil, errors.Wrap(err, "histogram filtering failed")
	}
	masked, err := histogram.Multiply(effective, s.masker.Mask(filtered))
	if err != nil {
		return nil, errors.Wrap(err, "histogram masking failed")
	}
	start = s.observe(StageMask, start)

	// Pixels of the background peak are marked background.
	if err := s.masker.BackProject(s.normalized, masked, HistogramChannel, true, &s.mask); err != nil {
		return nil, errors.Wrap(err, "backprojection failed")
	}
	start = s.observe(StageBackProject, start)

	if s.cleaner != nil {
		if err := s.cleaner.Apply(&s.mask); err != nil {
			return nil, errors.Wrap(err, "mask cleanup failed")
		}
		s.observe(StageMorphology, start)
	}

	s.frameCount++
	s.logger.Debug().
		Int64("frame", s.frameCount).
		Bool("folded", s.lastFolded).
		Int("history", s.history.Len()).
		Int("background_bin", masked.Peak()).
		Msg("frame segmented")

	return &s.mask, nil
}

// backgroundHistogram computes the raw histogram of the normalized frame and
// replaces it with the temporal average when the policy folds it in.
func (s *Segmenter) backgroundHistogram() (histogram.Histogram, error) {
	raw, err := histogram.Compute(s.normalized, HistogramChannel, s.config.Bins)
	if err != nil {
		return nil, errors.Wrap(err, "histogram computation failed")
	}
	s.diagnostics.Append(raw)

	effective := raw
	s.lastFolded = s.policy.SameScene(raw, s.history)
	if s.lastFolded {
		effective, err = s.history.Fold(raw)
		if err != nil {
			return nil, errors.Wrap(err, "histogram accumulation failed")
		}
	} else {
		s.logger.Debug().Int64("frame", s.frameCount+1).Msg("scene change, using single-frame histogram")
	}

	s.lastHistogram = effective
	return effective, nil
}

func (s *Segmenter) checkFrame(frame gocv.Mat) error {
	if frame.Empty() {
		return errors.Wrap(ErrInvalidFrame, "frame is empty")
	}
	if frame.Type() != gocv.MatTypeCV8UC3 {
		return errors.Wrapf(ErrInvalidFrame, "frame type %v is not 8-bit 3-channel", frame.Type())
	}
	if got := images.SizeOf(frame); got != s.size {
		return errors.Wrapf(ErrDimensionMismatch, "frame is %s, expected %s", got, s.size)
	}
	return nil
}

func (s *Segmenter) observe(stage Stage, start time.Time) time.Time {
	if s.observer == nil {
		return start
	}
	now := time.Now()
	s.observer.ObserveStage(stage, now.Sub(start))
	return now
}

// Reset clears the histogram history, the diagnostic log and the frame
// counter. Buffers are kept.
func (s *Segmenter) Reset() {
	s.history.Reset()
	s.diagnostics.Reset()
	s.frameCount = 0
	s.lastHistogram = nil
	s.lastFolded = false
}

// History returns the histogram accumulator.
func (s *Segmenter) History() *Accumulator {
	return s.history
}

// Diagnostics returns copies of the logged raw histograms, oldest first.
func (s *Segmenter) Diagnostics() []histogram.Histogram {
	return s.diagnostics.Entries()
}

// LastHistogram returns a copy of the histogram the last mask was derived
// from, before peak masking. It is nil before the first frame.
func (s *Segmenter) LastHistogram() histogram.Histogram {
	if s.lastHistogram == nil {
		return nil
	}
	return s.lastHistogram.Clone()
}

// LastFolded reports whether the last frame was folded into the history.
func (s *Segmenter) LastFolded() bool {
	return s.lastFolded
}

// Normalized returns the normalized (and smoothed) frame of the last call.
// The Mat is owned by the Segmenter.
func (s *Segmenter) Normalized() *gocv.Mat {
	return &s.normalized
}

// Config returns the configuration the Segmenter was built with.
func (s *Segmenter) Config() Config {
	return s.config
}

// FrameSize returns the frame size the Segmenter accepts.
func (s *Segmenter) FrameSize() images.FrameSize {
	return s.size
}

// FrameCount returns the number of frames segmented since creation or the
// last Reset.
func (s *Segmenter) FrameCount() int64 {
	return s.frameCount
}

// Close releases all native buffers. The Segmenter cannot be used afterwards.
func (s *Segmenter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.normalized.Close()
	s.mask.Close()
	if s.cleaner != nil {
		s.cleaner.Close()
	}
	s.logger.Info().Int64("frames", s.frameCount).Msg("segmenter closed")
	return nil
}
