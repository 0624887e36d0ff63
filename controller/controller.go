// Package controller routes frames of many video streams to one Segmenter
// per stream.
package controller

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-pitchseg/images"
	"github.com/nvr-ai/go-pitchseg/segmentation"
)

// ErrClosed is returned when a closed Controller is used.
var ErrClosed = errors.New("controller is closed")

// FrameSegmenter is the per-stream segmentation engine.
// *segmentation.Segmenter implements it.
type FrameSegmenter interface {
	ProcessFrame(frame gocv.Mat) (*gocv.Mat, error)
	Reset()
	FrameCount() int64
	Close() error
}

// Factory creates the segmenter of a newly seen stream.
type Factory func(streamID string) (FrameSegmenter, error)

// MaskHandler consumes the mask of one frame. The mask is owned by the
// stream's segmenter and only valid until the handler returns.
type MaskHandler func(mask *gocv.Mat) error

// NewSegmenterFactory returns a Factory building segmentation.Segmenters of
// one frame size and configuration.
func NewSegmenterFactory(size images.FrameSize, cfg segmentation.Config, opts ...segmentation.Option) Factory {
	return func(string) (FrameSegmenter, error) {
		seg, err := segmentation.New(size, cfg, opts...)
		if err != nil {
			return nil, err
		}
		return seg, nil
	}
}

type stream struct {
	mu        sync.Mutex
	segmenter FrameSegmenter
}

// Controller owns one segmenter per stream ID. Frames of one stream are
// processed one at a time in call order; distinct streams run in parallel.
type Controller struct {
	factory Factory
	logger  zerolog.Logger

	mu      sync.Mutex
	streams map[string]*stream
	closed  bool
}

// New creates a Controller that builds segmenters with factory.
func New(factory Factory, logger zerolog.Logger) *Controller {
	return &Controller{
		factory: factory,
		logger:  logger.With().Str("component", "controller").Logger(),
		streams: make(map[string]*stream),
	}
}

// stream returns the stream of id, creating its segmenter on first use.
func (c *Controller) stream(id string) (*stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if s, ok := c.streams[id]; ok {
		return s, nil
	}

	seg, err := c.factory(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create segmenter for stream %s", id)
	}
	s := &stream{segmenter: seg}
	c.streams[id] = s
	c.logger.Info().Str("stream", id).Msg("stream registered")
	return s, nil
}

// Process segments frame with the segmenter of streamID and passes the mask
// to handle while the stream is locked.
//
// Arguments:
//   - streamID: The stream the frame belongs to.
//   - frame: The BGR frame.
//   - handle: Consumes the mask. May be nil.
//
// Returns:
//   - error: The segmentation or handler error.
func (c *Controller) Process(streamID string, frame gocv.Mat, handle MaskHandler) error {
	s, err := c.stream(streamID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.segmenter == nil {
		return errors.Wrapf(ErrClosed, "stream %s", streamID)
	}
	mask, err := s.segmenter.ProcessFrame(frame)
	if err != nil {
		return errors.Wrapf(err, "stream %s", streamID)
	}
	if handle == nil {
		return nil
	}
	return handle(mask)
}

// Reset clears the history of one stream, for example after a cut to a
// different camera. Unknown streams are ignored.
func (c *Controller) Reset(streamID string) {
	c.mu.Lock()
	s, ok := c.streams[streamID]
	c.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.segmenter != nil {
		s.segmenter.Reset()
		c.logger.Debug().Str("stream", streamID).Msg("stream reset")
	}
}

// FrameCount returns the number of frames segmented for a stream.
func (c *Controller) FrameCount(streamID string) int64 {
	c.mu.Lock()
	s, ok := c.streams[streamID]
	c.mu.Unlock()
	if !ok {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.segmenter == nil {
		return 0
	}
	return s.segmenter.FrameCount()
}

// Streams returns the registered stream IDs in sorted order.
func (c *Controller) Streams() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.streams))
	for id := range c.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseStream releases the segmenter of one stream. A later frame of the same
// stream starts a new history.
func (c *Controller) CloseStream(streamID string) error {
	c.mu.Lock()
	s, ok := c.streams[streamID]
	delete(c.streams, streamID)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.closeStream(streamID, s)
}

func (c *Controller) closeStream(id string, s *stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.segmenter == nil {
		return nil
	}
	frames := s.segmenter.FrameCount()
	err := s.segmenter.Close()
	s.segmenter = nil
	c.logger.Info().Str("stream", id).Int64("frames", frames).Msg("stream closed")
	return errors.Wrapf(err, "failed to close stream %s", id)
}

// Close releases every stream. The Controller cannot be used afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	streams := c.streams
	c.streams = make(map[string]*stream)
	c.closed = true
	c.mu.Unlock()

	var first error
	for id, s := range streams {
		if err := c.closeStream(id, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}
