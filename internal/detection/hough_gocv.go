//go:build gocv

package detection

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

func init() {
	register(MethodOpenCV, func(p Params) Detector { return NewOpenCVDetector(p) })
}

// OpenCVDetector finds circles with OpenCV's gradient Hough transform.
type OpenCVDetector struct {
	params Params
}

// NewOpenCVDetector creates an OpenCV detector. p is assumed valid.
func NewOpenCVDetector(p Params) *OpenCVDetector {
	return &OpenCVDetector{params: p}
}

// Detect returns the circles found in mask sorted by (Y, X).
func (d *OpenCVDetector) Detect(mask *image.Gray) []Circle {
	if mask.Rect.Dx() == 0 || mask.Rect.Dy() == 0 {
		return []Circle{}
	}

	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		copy(pix[y*w:(y+1)*w], mask.Pix[y*mask.Stride:y*mask.Stride+w])
	}

	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, pix)
	if err != nil {
		return []Circle{}
	}
	defer mat.Close()

	found := gocv.NewMat()
	defer found.Close()

	gocv.HoughCirclesWithParams(
		mat,
		&found,
		gocv.HoughGradient,
		d.params.DP,
		float64(d.params.MinDistance),
		d.params.Param1,
		d.params.Param2,
		d.params.MinRadius,
		d.params.MaxRadius,
	)

	circles := make([]Circle, 0, found.Cols())
	for i := 0; i < found.Cols(); i++ {
		v := found.GetVecfAt(0, i)
		if len(v) < 3 {
			continue
		}
		circles = append(circles, Circle{
			X: int(math.Round(float64(v[0]))) + mask.Rect.Min.X,
			Y: int(math.Round(float64(v[1]))) + mask.Rect.Min.Y,
			R: int(math.Round(float64(v[2]))),
		})
	}

	SortByPosition(circles)
	return circles
}
