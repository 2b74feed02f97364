package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Zoom crops rect out of img and scales the crop by scale.
//
// The rectangle is clipped to the image bounds first, so a region padded past
// the page edge still yields the visible part. A scale of zero or one keeps
// the original size. The result has its origin at (0,0).
func Zoom(img image.Image, rect image.Rectangle, scale float64) (*image.NRGBA, error) {
	if scale < 0 {
		return nil, fmt.Errorf("invalid zoom scale %.2f", scale)
	}

	clipped := rect.Intersect(img.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("zoom region %v outside image bounds %v", rect, img.Bounds())
	}

	out := imaging.Crop(img, clipped)
	if scale == 0 || scale == 1 {
		return out, nil
	}

	w := int(float64(out.Bounds().Dx()) * scale)
	h := int(float64(out.Bounds().Dy()) * scale)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("zoom scale %.2f collapses %v", scale, clipped)
	}
	return imaging.Resize(out, w, h, imaging.Lanczos), nil
}
