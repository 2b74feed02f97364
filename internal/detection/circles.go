package detection

import (
	"fmt"
	"image"
	"math"
	"sort"
	"sync"
)

// Circle is a detected bubble in pixel space.
//
// A Circle is only meaningful when MinRadius <= R <= MaxRadius of the
// Params used to detect it.
type Circle struct {
	X int `json:"x"` // Centre, horizontal (0 = leftmost)
	Y int `json:"y"` // Centre, vertical (0 = topmost)
	R int `json:"r"` // Radius in pixels
}

// Params controls bubble detection.
type Params struct {
	// Method selects the detector: "hough" (pure Go, default) or "opencv"
	// (requires building with -tags gocv).
	Method string `json:"method" yaml:"method" envconfig:"METHOD"`

	// MinRadius and MaxRadius bound the radius band searched, in pixels.
	MinRadius int `json:"min_radius" yaml:"min_radius" envconfig:"MIN_RADIUS"`
	MaxRadius int `json:"max_radius" yaml:"max_radius" envconfig:"MAX_RADIUS"`

	// MinDistance is the minimum distance between two detected centres.
	MinDistance int `json:"min_distance" yaml:"min_distance" envconfig:"MIN_DISTANCE"`

	// VoteThreshold is the fraction (0-1] of a circle's circumference that
	// must vote for a centre before it is reported. Used by the hough method.
	VoteThreshold float64 `json:"vote_threshold" yaml:"vote_threshold" envconfig:"VOTE_THRESHOLD"`

	// MaxHaloInk is the largest fraction (0-1] of ink pixels tolerated on the
	// ring just outside a hypothesised circle. Printed bubbles sit on blank
	// paper; text and dense noise do not. 1 disables the check.
	MaxHaloInk float64 `json:"max_halo_ink" yaml:"max_halo_ink" envconfig:"MAX_HALO_INK"`

	// DP, Param1 and Param2 are passed straight to OpenCV's HoughCircles
	// (accumulator resolution ratio, Canny high threshold, accumulator
	// threshold). Used by the opencv method.
	DP     float64 `json:"dp" yaml:"dp" envconfig:"DP"`
	Param1 float64 `json:"param1" yaml:"param1" envconfig:"PARAM1"`
	Param2 float64 `json:"param2" yaml:"param2" envconfig:"PARAM2"`
}

// DefaultParams returns detection parameters for ~150 DPI form scans.
func DefaultParams() Params {
	return Params{
		Method:        MethodHough,
		MinRadius:     12,
		MaxRadius:     15,
		MinDistance:   10,
		VoteThreshold: 0.6,
		MaxHaloInk:    0.5,
		DP:            1.2,
		Param1:        50,
		Param2:        13,
	}
}

// Validate reports the first problem with p, if any.
func (p Params) Validate() error {
	switch {
	case p.MinRadius < 1:
		return fmt.Errorf("min_radius must be positive, got %d", p.MinRadius)
	case p.MaxRadius < p.MinRadius:
		return fmt.Errorf("max_radius (%d) must be >= min_radius (%d)", p.MaxRadius, p.MinRadius)
	case p.MinDistance < 1:
		return fmt.Errorf("min_distance must be positive, got %d", p.MinDistance)
	case p.VoteThreshold <= 0 || p.VoteThreshold > 1:
		return fmt.Errorf("vote_threshold must be in (0,1], got %g", p.VoteThreshold)
	case p.MaxHaloInk <= 0 || p.MaxHaloInk > 1:
		return fmt.Errorf("max_halo_ink must be in (0,1], got %g", p.MaxHaloInk)
	}
	return nil
}

// Detector finds bubbles in a binary ink mask.
//
// Detection is best-effort: an empty result is valid and not an error.
type Detector interface {
	Detect(mask *image.Gray) []Circle
}

// Detector method names.
const (
	MethodHough  = "hough"
	MethodOpenCV = "opencv"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]func(Params) Detector{
		MethodHough: func(p Params) Detector { return NewHoughDetector(p) },
	}
)

// register makes a detector constructor available to New. Detectors that
// depend on optional native libraries register themselves from init.
func register(method string, ctor func(Params) Detector) {
	registryMu.Lock()
	registry[method] = ctor
	registryMu.Unlock()
}

// New builds the detector selected by p.Method. An empty method selects the
// pure Go Hough detector.
func New(p Params) (Detector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	method := p.Method
	if method == "" {
		method = MethodHough
	}

	registryMu.RLock()
	ctor, ok := registry[method]
	registryMu.RUnlock()

	if !ok {
		if method == MethodOpenCV {
			return nil, fmt.Errorf("detector %q is not compiled in (build with -tags gocv)", method)
		}
		return nil, fmt.Errorf("unknown detector method: %s", method)
	}
	return ctor(p), nil
}

// HoughDetector finds circles with a circular Hough transform over the
// ink boundaries of the mask.
type HoughDetector struct {
	params Params
}

// NewHoughDetector creates a Hough detector. p is assumed valid.
func NewHoughDetector(p Params) *HoughDetector {
	return &HoughDetector{params: p}
}

// candidate is a scored circle hypothesis.
type candidate struct {
	Circle
	score float64 // supporting circumference samples / total samples
}

// haloGap is how far outside the circle, in pixels, the halo ring is sampled.
const haloGap = 3

// Detect returns the circles found in mask sorted by (Y, X).
//
// # Algorithm
//
//  1. Boundary extraction: foreground pixels with a background 4-neighbour,
//     dilated by one pixel to absorb rasterisation jitter
//  2. Accumulator voting: for each radius in [MinRadius, MaxRadius], every
//     near-boundary pixel votes for all centres on the digital circle of that
//     radius around it
//  3. Scoring: a centre's votes divided by the number of points on the
//     digital circle, i.e. the fraction of the circumference that lies on
//     an ink boundary
//  4. Peaks: a centre is a hypothesis when its score reaches VoteThreshold,
//     no 8-neighbour scores higher, and at most MaxHaloInk of the ring
//     haloGap pixels outside the circle is ink
//  5. Selection: hypotheses are taken best first; any hypothesis closer than
//     MinDistance to an accepted centre is dropped
//
// Ties are broken by Y, X and R, so the result is fully deterministic for a
// given mask and Params.
func (d *HoughDetector) Detect(mask *image.Gray) []Circle {
	width := mask.Rect.Dx()
	height := mask.Rect.Dy()
	if width == 0 || height == 0 {
		return []Circle{}
	}

	voters := nearBoundaryPixels(mask)
	if len(voters) == 0 {
		return []Circle{}
	}

	acc := make([]int32, width*height)
	candidates := make([]candidate, 0)

	for r := d.params.MinRadius; r <= d.params.MaxRadius; r++ {
		clear(acc)

		offsets := circleOffsets(r)
		for _, v := range voters {
			for _, o := range offsets {
				cx, cy := v.X-o.X, v.Y-o.Y
				if cx >= 0 && cx < width && cy >= 0 && cy < height {
					acc[cy*width+cx]++
				}
			}
		}

		halo := circleOffsets(r + haloGap)
		need := d.params.VoteThreshold * float64(len(offsets))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				votes := acc[y*width+x]
				if votes == 0 || float64(votes) < need {
					continue
				}
				if !isLocalMax(acc, width, height, x, y) {
					continue
				}
				if d.params.MaxHaloInk < 1 && inkFraction(mask, x, y, halo) > d.params.MaxHaloInk {
					continue
				}
				candidates = append(candidates, candidate{
					Circle: Circle{X: x + mask.Rect.Min.X, Y: y + mask.Rect.Min.Y, R: r},
					score:  float64(votes) / float64(len(offsets)),
				})
			}
		}
	}

	circles := suppressNonMaxima(candidates, d.params.MinDistance)
	SortByPosition(circles)
	return circles
}

// SortByPosition orders circles by (Y, X) ascending, then by radius.
func SortByPosition(circles []Circle) {
	sort.SliceStable(circles, func(i, j int) bool {
		if circles[i].Y != circles[j].Y {
			return circles[i].Y < circles[j].Y
		}
		if circles[i].X != circles[j].X {
			return circles[i].X < circles[j].X
		}
		return circles[i].R < circles[j].R
	})
}

// nearBoundaryPixels returns mask-relative coordinates of every pixel within
// one pixel (8-neighbourhood) of a boundary pixel. A boundary pixel is a
// foreground pixel that touches background or the image border through a
// 4-neighbour.
func nearBoundaryPixels(mask *image.Gray) []image.Point {
	width := mask.Rect.Dx()
	height := mask.Rect.Dy()

	fg := func(x, y int) bool {
		if x < 0 || y < 0 || x >= width || y >= height {
			return false
		}
		return mask.Pix[y*mask.Stride+x] != 0
	}

	boundary := make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if fg(x, y) && (!fg(x-1, y) || !fg(x+1, y) || !fg(x, y-1) || !fg(x, y+1)) {
				boundary[y*width+x] = true
			}
		}
	}

	points := make([]image.Point, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if nearAny(boundary, width, height, x, y) {
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}
	return points
}

func nearAny(set []bool, width, height, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		ny := y + dy
		if ny < 0 || ny >= height {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			nx := x + dx
			if nx >= 0 && nx < width && set[ny*width+nx] {
				return true
			}
		}
	}
	return false
}

// circleOffsets returns the distinct integer offsets of a digital circle of
// radius r, sampled at roughly one-pixel arc spacing.
func circleOffsets(r int) []image.Point {
	steps := int(math.Ceil(2 * math.Pi * float64(r)))
	seen := make(map[image.Point]bool, steps)
	offsets := make([]image.Point, 0, steps)

	for k := 0; k < steps; k++ {
		theta := 2 * math.Pi * float64(k) / float64(steps)
		p := image.Point{
			X: int(math.Round(float64(r) * math.Cos(theta))),
			Y: int(math.Round(float64(r) * math.Sin(theta))),
		}
		if !seen[p] {
			seen[p] = true
			offsets = append(offsets, p)
		}
	}
	return offsets
}

// isLocalMax reports whether no 8-neighbour of (x, y) has a larger value.
func isLocalMax(v []int32, width, height, x, y int) bool {
	c := v[y*width+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= width || ny < 0 || ny >= height {
				continue
			}
			if v[ny*width+nx] > c {
				return false
			}
		}
	}
	return true
}

// inkFraction returns the fraction of ring points around the mask-relative
// centre (x, y) that are foreground. Points outside the mask are background.
func inkFraction(mask *image.Gray, x, y int, ring []image.Point) float64 {
	width := mask.Rect.Dx()
	height := mask.Rect.Dy()

	ink := 0
	for _, o := range ring {
		px, py := x+o.X, y+o.Y
		if px < 0 || py < 0 || px >= width || py >= height {
			continue
		}
		if mask.Pix[py*mask.Stride+px] != 0 {
			ink++
		}
	}
	return float64(ink) / float64(len(ring))
}

// suppressNonMaxima keeps the strongest candidates whose centres are at least
// minDist apart.
func suppressNonMaxima(candidates []candidate, minDist int) []Circle {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.R < b.R
	})

	minDist2 := minDist * minDist
	kept := make([]Circle, 0)
	for _, c := range candidates {
		isDuplicate := false
		for _, k := range kept {
			dx := c.X - k.X
			dy := c.Y - k.Y
			if dx*dx+dy*dy < minDist2 {
				isDuplicate = true
				break
			}
		}
		if !isDuplicate {
			kept = append(kept, c.Circle)
		}
	}
	return kept
}
