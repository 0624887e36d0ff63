package controller

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-pitchseg/images"
	"github.com/nvr-ai/go-pitchseg/segmentation"
)

// MockSegmenter records calls and detects overlapping ProcessFrame calls.
type MockSegmenter struct {
	mask        gocv.Mat
	frames      int64
	resets      int
	closed      bool
	shouldError bool
	active      int32
	overlaps    int32
}

func newMockSegmenter() *MockSegmenter {
	return &MockSegmenter{mask: gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC1)}
}

func (m *MockSegmenter) ProcessFrame(gocv.Mat) (*gocv.Mat, error) {
	if atomic.AddInt32(&m.active, 1) > 1 {
		atomic.AddInt32(&m.overlaps, 1)
	}
	defer atomic.AddInt32(&m.active, -1)

	if m.shouldError {
		return nil, errors.New("mock segmentation error")
	}
	time.Sleep(100 * time.Microsecond)
	m.frames++
	return &m.mask, nil
}

func (m *MockSegmenter) Reset() {
	m.resets++
	m.frames = 0
}

func (m *MockSegmenter) FrameCount() int64 {
	return m.frames
}

func (m *MockSegmenter) Close() error {
	m.closed = true
	return m.mask.Close()
}

// MockFactory hands out one MockSegmenter per stream.
type MockFactory struct {
	mu          sync.Mutex
	created     map[string]*MockSegmenter
	shouldError bool
}

func (f *MockFactory) Build(id string) (FrameSegmenter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldError {
		return nil, errors.New("mock factory error")
	}
	if f.created == nil {
		f.created = make(map[string]*MockSegmenter)
	}
	seg := newMockSegmenter()
	f.created[id] = seg
	return seg, nil
}

func TestProcessCreatesOneSegmenterPerStream(t *testing.T) {
	factory := &MockFactory{}
	c := New(factory.Build, zerolog.Nop())
	defer c.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	for _, id := range []string{"cam-2", "cam-1", "cam-2"} {
		require.NoError(t, c.Process(id, frame, nil))
	}

	assert.Equal(t, []string{"cam-1", "cam-2"}, c.Streams())
	assert.Len(t, factory.created, 2)
	assert.Equal(t, int64(2), c.FrameCount("cam-2"))
	assert.Equal(t, int64(1), c.FrameCount("cam-1"))
	assert.Zero(t, c.FrameCount("unknown"))
}

func TestProcessPassesMaskToHandler(t *testing.T) {
	factory := &MockFactory{}
	c := New(factory.Build, zerolog.Nop())
	defer c.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	var got *gocv.Mat
	require.NoError(t, c.Process("cam", frame, func(mask *gocv.Mat) error {
		got = mask
		return nil
	}))
	assert.Same(t, &factory.created["cam"].mask, got)

	handlerErr := errors.New("disk full")
	err := c.Process("cam", frame, func(*gocv.Mat) error { return handlerErr })
	assert.ErrorIs(t, err, handlerErr)
}

func TestProcessErrors(t *testing.T) {
	frame := gocv.NewMat()
	defer frame.Close()

	t.Run("factory", func(t *testing.T) {
		c := New((&MockFactory{shouldError: true}).Build, zerolog.Nop())
		defer c.Close()
		assert.Error(t, c.Process("cam", frame, nil))
		assert.Empty(t, c.Streams())
	})

	t.Run("segmenter", func(t *testing.T) {
		factory := &MockFactory{}
		c := New(factory.Build, zerolog.Nop())
		defer c.Close()
		require.NoError(t, c.Process("cam", frame, nil))
		factory.created["cam"].shouldError = true

		called := false
		err := c.Process("cam", frame, func(*gocv.Mat) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestProcessSerializesStream(t *testing.T) {
	factory := &MockFactory{}
	c := New(factory.Build, zerolog.Nop())
	defer c.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					assert.NoError(t, c.Process(id, frame, nil))
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"a", "b"} {
		seg := factory.created[id]
		assert.Zero(t, atomic.LoadInt32(&seg.overlaps), "stream %s", id)
		assert.Equal(t, int64(100), c.FrameCount(id))
	}
}

func TestResetAndCloseStream(t *testing.T) {
	factory := &MockFactory{}
	c := New(factory.Build, zerolog.Nop())
	defer c.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	require.NoError(t, c.Process("cam", frame, nil))

	c.Reset("cam")
	c.Reset("unknown")
	first := factory.created["cam"]
	assert.Equal(t, 1, first.resets)
	assert.Zero(t, c.FrameCount("cam"))

	require.NoError(t, c.CloseStream("cam"))
	require.NoError(t, c.CloseStream("cam"))
	assert.True(t, first.closed)
	assert.Empty(t, c.Streams())

	// The stream starts over with a new segmenter.
	require.NoError(t, c.Process("cam", frame, nil))
	assert.NotSame(t, first, factory.created["cam"])
}

func TestClose(t *testing.T) {
	factory := &MockFactory{}
	c := New(factory.Build, zerolog.Nop())

	frame := gocv.NewMat()
	defer frame.Close()
	require.NoError(t, c.Process("a", frame, nil))
	require.NoError(t, c.Process("b", frame, nil))

	require.NoError(t, c.Close())
	assert.True(t, factory.created["a"].closed)
	assert.True(t, factory.created["b"].closed)
	assert.ErrorIs(t, c.Process("a", frame, nil), ErrClosed)
}

func TestSegmenterFactory(t *testing.T) {
	size := images.FrameSize{Width: 8, Height: 6}
	c := New(NewSegmenterFactory(size, segmentation.DefaultConfig()), zerolog.Nop())
	defer c.Close()

	frame := images.NewFrame(size)
	defer frame.Close()
	frame.SetTo(gocv.NewScalar(40, 160, 40, 0))

	require.NoError(t, c.Process("pitch", frame, func(mask *gocv.Mat) error {
		assert.Equal(t, 6, mask.Rows())
		assert.Equal(t, 8, mask.Cols())
		return nil
	}))

	wrong := images.NewFrame(images.FrameSize{Width: 6, Height: 8})
	defer wrong.Close()
	err := c.Process("pitch", wrong, nil)
	assert.ErrorIs(t, err, segmentation.ErrDimensionMismatch)
}
