package omr

import (
	"image"
	"math"

	"github.com/ironsheep/omr-grader/internal/detection"
	"github.com/ironsheep/omr-grader/internal/imaging"
)

// InkCount returns the number of foreground mask pixels inside the disk
// dx²+dy² <= r² centred on c. Pixels outside the mask count as background.
func InkCount(c detection.Circle, mask *image.Gray) int {
	r2 := c.R * c.R
	count := 0
	for dy := -c.R; dy <= c.R; dy++ {
		for dx := -c.R; dx <= c.R; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			if imaging.IsForeground(mask, c.X+dx, c.Y+dy) {
				count++
			}
		}
	}
	return count
}

// Coverage returns the ink count of c divided by the disk's analytic area
// π·r². A degenerate circle has zero coverage.
func Coverage(c detection.Circle, mask *image.Gray) float64 {
	if c.R <= 0 {
		return 0
	}
	return float64(InkCount(c, mask)) / (math.Pi * float64(c.R*c.R))
}

// IsFilled reports whether the ink inside c exceeds fraction of π·r².
func IsFilled(c detection.Circle, mask *image.Gray, fraction float64) bool {
	if c.R <= 0 {
		return false
	}
	return float64(InkCount(c, mask)) > fraction*math.Pi*float64(c.R*c.R)
}
