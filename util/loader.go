// Package util contains helpers for reading frame sequences from disk.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FramePrefix is the file name prefix of extracted frames ("frame-12.jpg").
const FramePrefix = "frame-"

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number of the image file.
	Frame int
}

// IsImageExt reports whether ext is a supported frame image extension.
func IsImageExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}

// FrameNumber parses the frame number of a "frame-N.ext" file name.
func FrameNumber(name string) (int, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(base, FramePrefix) {
		return 0, errors.Errorf("%s does not start with %q", name, FramePrefix)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(base, FramePrefix))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid frame number in %s", name)
	}
	return n, nil
}

// LoadDirectoryImageFiles reads all frame images from a directory.
//
// Arguments:
// - dir: Directory path containing "frame-N" image files.
//
// Returns:
// - []ImageFile: The frames ordered by frame number.
// - error: Error if the directory or a frame cannot be read, or a frame file
// name has no frame number.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read frame directory %s", dir)
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() || !IsImageExt(filepath.Ext(file.Name())) {
			continue
		}

		frame, err := FrameNumber(file.Name())
		if err != nil {
			return nil, err
		}
		imgPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read frame %s", imgPath)
		}
		images = append(images, ImageFile{
			Path:  imgPath,
			Data:  data,
			Frame: frame,
		})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Frame < images[j].Frame
	})

	return images, nil
}
