// Package images provides frame geometry, named broadcast resolutions and the
// conversions needed to turn decoded pictures into BGR frames for segmentation.
package images

import (
	"fmt"
	"math"
	"sort"
)

// AspectRatio represents a display aspect ratio by name (e.g., "16:9").
type AspectRatio string

// Defines the aspect ratios used by broadcast and camera feeds.
const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio54  AspectRatio = "5:4"
)

// ResolutionType represents a common name for a video resolution.
type ResolutionType string

// Defines the unique type for each supported frame resolution.
const (
	ResolutionTypeNTSC     ResolutionType = "SD NTSC"
	ResolutionTypePAL      ResolutionType = "SD PAL"
	ResolutionTypeNHD      ResolutionType = "nHD"
	ResolutionTypeQHD540   ResolutionType = "qHD 540p"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionType1MP54    ResolutionType = "1MP (5:4)"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
	ResolutionTypeQHD1440p ResolutionType = "QHD 1440p"
	ResolutionType4KUHD    ResolutionType = "4K UHD"
)

// FrameSize describes the exact dimensions of every frame handled by a
// segmentation instance.
type FrameSize struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Valid reports whether both dimensions are positive.
func (s FrameSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Pixels returns the number of pixels in a frame of this size.
func (s FrameSize) Pixels() int {
	return s.Width * s.Height
}

func (s FrameSize) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Resolution describes a named resolution standard.
type Resolution struct {
	Name        ResolutionType `json:"name"`
	AspectRatio AspectRatio    `json:"aspectRatio"`
	Size        FrameSize      `json:"size"`
}

// GetMegaPixels calculates the megapixel value based on the resolution's pixel dimensions.
// It returns the value rounded to two decimal places (e.g., 2.07 for 1080p).
func (r Resolution) GetMegaPixels() float64 {
	if !r.Size.Valid() {
		return 0.0
	}
	mp := float64(r.Size.Pixels()) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%s, %.2fMP)", r.Name, r.Size, r.GetMegaPixels())
}

// resolutions is keyed by ResolutionType for lookups from configuration files.
var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeNTSC: {
		Name:        ResolutionTypeNTSC,
		AspectRatio: AspectRatio43,
		Size:        FrameSize{Width: 720, Height: 480},
	},
	ResolutionTypePAL: {
		Name:        ResolutionTypePAL,
		AspectRatio: AspectRatio43,
		Size:        FrameSize{Width: 720, Height: 576},
	},
	ResolutionTypeNHD: {
		Name:        ResolutionTypeNHD,
		AspectRatio: AspectRatio169,
		Size:        FrameSize{Width: 640, Height: 360},
	},
	ResolutionTypeQHD540: {
		Name:        ResolutionTypeQHD540,
		AspectRatio: AspectRatio169,
		Size:        FrameSize{Width: 960, Height: 540},
	},
	ResolutionTypeHD720p: {
		Name:        ResolutionTypeHD720p,
		AspectRatio: AspectRatio169,
		Size:        FrameSize{Width: 1280, Height: 720},
	},
	ResolutionType1MP54: {
		Name:        ResolutionType1MP54,
		AspectRatio: AspectRatio54,
		Size:        FrameSize{Width: 1280, Height: 1024},
	},
	ResolutionTypeFHD1080p: {
		Name:        ResolutionTypeFHD1080p,
		AspectRatio: AspectRatio169,
		Size:        FrameSize{Width: 1920, Height: 1080},
	},
	ResolutionTypeQHD1440p: {
		Name:        ResolutionTypeQHD1440p,
		AspectRatio: AspectRatio169,
		Size:        FrameSize{Width: 2560, Height: 1440},
	},
	ResolutionType4KUHD: {
		Name:        ResolutionType4KUHD,
		AspectRatio: AspectRatio169,
		Size:        FrameSize{Width: 3840, Height: 2160},
	},
}

// GetAllResolutions returns every defined resolution ordered by pixel count,
// smallest first.
func GetAllResolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Size.Pixels() == all[j].Size.Pixels() {
			return all[i].Name < all[j].Name
		}
		return all[i].Size.Pixels() < all[j].Size.Pixels()
	})
	return all
}

// GetResolutionByType retrieves a specific resolution by its type.
// It returns the Resolution and true if found, otherwise an empty Resolution and false.
func GetResolutionByType(t ResolutionType) (Resolution, bool) {
	res, ok := resolutions[t]
	return res, ok
}
