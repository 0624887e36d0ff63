package segmentation

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-pitchseg/images"
)

// MorphologicalCleaner closes small gaps in a mask (dilation followed by
// erosion) with a 3x3 cross-shaped structuring element.
//
// In legacy mode the closing is still computed but its result is dropped and
// the mask is left as it was, matching masks produced by earlier tracker
// builds.
type MorphologicalCleaner struct {
	kernel  gocv.Mat
	scratch gocv.Mat
	legacy  bool
}

// NewMorphologicalCleaner allocates the structuring element and a scratch
// mask of the given frame size.
func NewMorphologicalCleaner(size images.FrameSize, legacy bool) *MorphologicalCleaner {
	return &MorphologicalCleaner{
		kernel:  gocv.GetStructuringElement(gocv.MorphCross, image.Pt(3, 3)),
		scratch: images.NewZeroMat(size, gocv.MatTypeCV8UC1),
		legacy:  legacy,
	}
}

// Kernel returns the structuring element. The Mat is owned by the cleaner.
func (c *MorphologicalCleaner) Kernel() gocv.Mat {
	return c.kernel
}

// Apply closes mask in place, or leaves it untouched in legacy mode.
func (c *MorphologicalCleaner) Apply(mask *gocv.Mat) error {
	if mask == nil || mask.Empty() {
		return errors.Wrap(ErrInvalidFrame, "cannot clean an empty mask")
	}
	if err := gocv.MorphologyEx(*mask, &c.scratch, gocv.MorphClose, c.kernel); err != nil {
		return errors.Wrap(err, "morphological closing failed")
	}
	if c.legacy {
		return nil
	}

	closed, err := c.scratch.DataPtrUint8()
	if err != nil {
		return errors.Wrap(err, "failed to access closed mask")
	}
	out, err := mask.DataPtrUint8()
	if err != nil {
		return errors.Wrap(err, "failed to access mask")
	}
	if len(closed) != len(out) {
		return errors.Wrapf(ErrDimensionMismatch, "closed mask has %d bytes, mask has %d", len(closed), len(out))
	}
	copy(out, closed)
	return nil
}

// Close releases the native resources of the cleaner.
func (c *MorphologicalCleaner) Close() {
	c.kernel.Close()
	c.scratch.Close()
}
