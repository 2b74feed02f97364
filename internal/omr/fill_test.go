package omr

import (
	"math"
	"testing"

	"github.com/ironsheep/omr-grader/internal/detection"
)

func TestIsFilled(t *testing.T) {
	bubble := detection.Circle{X: 30, Y: 30, R: 13}

	tests := []struct {
		name string
		ink  []detection.Circle
		want bool
	}{
		{"blank", nil, false},
		{"solid", []detection.Circle{{X: 30, Y: 30, R: 13}}, true},
		{"slightly smaller mark", []detection.Circle{{X: 30, Y: 30, R: 11}}, true},
		{"small tick", []detection.Circle{{X: 30, Y: 30, R: 6}}, false},
		{"mark straddling the edge", []detection.Circle{{X: 40, Y: 30, R: 9}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := inkMask(60, 60, tt.ink...)
			if got := IsFilled(bubble, mask, 0.5); got != tt.want {
				t.Errorf("IsFilled: got %v, want %v (coverage %.2f)", got, tt.want, Coverage(bubble, mask))
			}
		})
	}
}

func TestIsFilled_FractionBoundary(t *testing.T) {
	c := detection.Circle{X: 10, Y: 10, R: 5}
	mask := inkMask(20, 20, c)
	count := InkCount(c, mask)

	exact := float64(count) / (math.Pi * 25)
	if IsFilled(c, mask, exact+0.01) {
		t.Errorf("count %d below the threshold should not be filled", count)
	}
	if !IsFilled(c, mask, exact-0.01) {
		t.Errorf("count %d above the threshold should be filled", count)
	}
}

func TestInkCount_OutsideImageIsBackground(t *testing.T) {
	mask := inkMask(20, 20)
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}

	inside := InkCount(detection.Circle{X: 10, Y: 10, R: 3}, mask)
	corner := InkCount(detection.Circle{X: 0, Y: 0, R: 3}, mask)

	if corner >= inside {
		t.Errorf("corner circle counted %d ink pixels, want fewer than %d", corner, inside)
	}
	if corner == 0 {
		t.Error("corner circle should still count its in-image quadrant")
	}
}

func TestCoverage(t *testing.T) {
	mask := inkMask(60, 60, detection.Circle{X: 30, Y: 30, R: 13})

	if got := Coverage(detection.Circle{X: 30, Y: 30, R: 13}, mask); got < 0.95 || got > 1.05 {
		t.Errorf("solid coverage: got %.3f, want ~1", got)
	}
	if got := Coverage(detection.Circle{X: 30, Y: 30, R: 0}, mask); got != 0 {
		t.Errorf("zero radius coverage: got %v, want 0", got)
	}
	if IsFilled(detection.Circle{X: 30, Y: 30, R: 0}, mask, 0.5) {
		t.Error("zero radius circle should never be filled")
	}
}
