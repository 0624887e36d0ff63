package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-pitchseg/controller"
	"github.com/nvr-ai/go-pitchseg/images"
	"github.com/nvr-ai/go-pitchseg/util"
)

var supportedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// streamInput names one input stream.
type streamInput struct {
	ID   string
	Path string
}

// streamFlags collects repeated -stream flags.
type streamFlags []streamInput

func (s *streamFlags) String() string {
	parts := make([]string, len(*s))
	for i, in := range *s {
		parts[i] = in.ID + "=" + in.Path
	}
	return strings.Join(parts, ",")
}

// Set parses "[id=]path". Without an id the base name of path is used.
func (s *streamFlags) Set(value string) error {
	id, path, found := strings.Cut(value, "=")
	if !found {
		path = id
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if id == "" || path == "" {
		return errors.Errorf("invalid stream %q, expected [id=]path", value)
	}
	for _, existing := range *s {
		if existing.ID == id {
			return errors.Errorf("duplicate stream id %q", id)
		}
	}
	*s = append(*s, streamInput{ID: id, Path: path})
	return nil
}

// frameSource yields the frames of one stream in order.
type frameSource interface {
	// Next returns the next frame and its number, or ok=false at the end.
	// The frame is owned by the source and valid until the next call.
	Next() (frame gocv.Mat, number int, ok bool, err error)
	Close() error
}

func isVideo(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range supportedVideoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// openSource picks the source type from the path.
func openSource(path string, size images.FrameSize) (frameSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open stream %s", path)
	}

	switch {
	case info.IsDir():
		files, err := util.LoadDirectoryImageFiles(path)
		if err != nil {
			return nil, err
		}
		return &fileSource{files: files, size: size}, nil
	case util.IsImageExt(filepath.Ext(path)):
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read image %s", path)
		}
		return &fileSource{files: []util.ImageFile{{Path: path, Data: data}}, size: size}, nil
	case isVideo(path):
		capture, err := gocv.VideoCaptureFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open video %s", path)
		}
		return &videoSource{
			capture: capture,
			size:    size,
			raw:     gocv.NewMat(),
			frame:   images.NewFrame(size),
		}, nil
	default:
		return nil, errors.Errorf("unsupported stream %s", path)
	}
}

// fileSource decodes still images, fitting them to the frame size.
type fileSource struct {
	files []util.ImageFile
	size  images.FrameSize
	next  int
	frame gocv.Mat
	valid bool
}

func (s *fileSource) Next() (gocv.Mat, int, bool, error) {
	if s.next >= len(s.files) {
		return gocv.Mat{}, 0, false, nil
	}
	file := s.files[s.next]
	s.next++

	s.release()
	frame, err := images.LoadFrame(file.Data, s.size)
	if err != nil {
		return gocv.Mat{}, 0, false, errors.Wrapf(err, "failed to decode %s", file.Path)
	}
	s.frame, s.valid = frame, true
	return s.frame, file.Frame, true, nil
}

func (s *fileSource) release() {
	if s.valid {
		s.frame.Close()
		s.valid = false
	}
}

func (s *fileSource) Close() error {
	s.release()
	return nil
}

// videoSource reads frames from a video file, resizing them when the video
// does not match the frame size.
type videoSource struct {
	capture *gocv.VideoCapture
	size    images.FrameSize
	raw     gocv.Mat
	frame   gocv.Mat
	number  int
}

func (s *videoSource) Next() (gocv.Mat, int, bool, error) {
	if ok := s.capture.Read(&s.raw); !ok || s.raw.Empty() {
		return gocv.Mat{}, 0, false, nil
	}
	s.number++

	if images.SizeOf(s.raw) == s.size {
		return s.raw, s.number, true, nil
	}
	gocv.Resize(s.raw, &s.frame, image.Pt(s.size.Width, s.size.Height), 0, 0, gocv.InterpolationLinear)
	return s.frame, s.number, true, nil
}

func (s *videoSource) Close() error {
	s.raw.Close()
	s.frame.Close()
	return s.capture.Close()
}

// streamWorker segments one stream through the shared controller.
type streamWorker struct {
	input     streamInput
	size      images.FrameSize
	ctrl      *controller.Controller
	outputDir string
	maxFrames int
	log       zerolog.Logger
}

func (w *streamWorker) run(ctx context.Context) error {
	source, err := openSource(w.input.Path, w.size)
	if err != nil {
		return err
	}
	defer source.Close()

	if w.outputDir != "" {
		if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create output directory %s", w.outputDir)
		}
	}

	processed := 0
	for w.maxFrames <= 0 || processed < w.maxFrames {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, number, ok, err := source.Next()
		if err != nil {
			return errors.Wrapf(err, "stream %s", w.input.ID)
		}
		if !ok {
			break
		}

		if err := w.ctrl.Process(w.input.ID, frame, w.writer(number)); err != nil {
			return err
		}
		processed++
	}

	w.log.Info().Int("frames", processed).Msg("stream finished")
	return nil
}

// writer returns the handler storing the mask of frame number. Dry runs only
// log a checksum of every mask at debug level.
func (w *streamWorker) writer(number int) controller.MaskHandler {
	if w.outputDir == "" {
		if w.log.GetLevel() > zerolog.DebugLevel {
			return nil
		}
		return func(mask *gocv.Mat) error {
			sum, err := images.Checksum(*mask)
			if err != nil {
				return err
			}
			w.log.Debug().Int("frame", number).Str("checksum", sum).Msg("mask computed")
			return nil
		}
	}
	return func(mask *gocv.Mat) error {
		path := filepath.Join(w.outputDir, fmt.Sprintf("mask-%d.png", number))
		if !gocv.IMWrite(path, *mask) {
			return errors.Errorf("failed to write mask %s", path)
		}
		w.log.Trace().Str("path", path).Msg("mask written")
		return nil
	}
}
