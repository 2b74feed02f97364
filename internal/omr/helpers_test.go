package omr

import (
	"image"
	"image/color"

	"github.com/ironsheep/omr-grader/internal/detection"
)

// inkMask returns a mask with the given disks painted as foreground.
func inkMask(width, height int, disks ...detection.Circle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, width, height))
	for _, d := range disks {
		for y := d.Y - d.R; y <= d.Y+d.R; y++ {
			for x := d.X - d.R; x <= d.X+d.R; x++ {
				if (x-d.X)*(x-d.X)+(y-d.Y)*(y-d.Y) <= d.R*d.R {
					m.SetGray(x, y, color.Gray{Y: 255})
				}
			}
		}
	}
	return m
}

// sheetBubble describes one printed bubble on a synthetic sheet.
type sheetBubble struct {
	X, Y   int
	Filled bool
}

// drawSheet renders a white page with black bubble outlines (radius 14,
// two pixels thick); filled bubbles are solid.
func drawSheet(width, height int, bubbles []sheetBubble) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	black := color.RGBA{0, 0, 0, 255}
	for _, b := range bubbles {
		for y := b.Y - 15; y <= b.Y+15; y++ {
			for x := b.X - 15; x <= b.X+15; x++ {
				d2 := (x-b.X)*(x-b.X) + (y-b.Y)*(y-b.Y)
				if (b.Filled && d2 <= 14*14) || (!b.Filled && d2 > 12*12 && d2 <= 14*14) {
					img.SetRGBA(x, y, black)
				}
			}
		}
	}
	return img
}

// formSheet lays out answers on a two-column, five-option form 500x260 px.
// answers[q] lists the 0-based filled options of question q+1; the first
// half of the questions go in the left column.
func formSheet(answers [][]int) *image.RGBA {
	columnX := []int{40, 290}
	perColumn := (len(answers) + 1) / 2

	var bubbles []sheetBubble
	for q, filled := range answers {
		col, row := q/perColumn, q%perColumn
		for opt := 0; opt < 5; opt++ {
			isFilled := false
			for _, f := range filled {
				if f == opt {
					isFilled = true
				}
			}
			bubbles = append(bubbles, sheetBubble{
				X:      columnX[col] + 40*opt,
				Y:      40 + 40*row,
				Filled: isFilled,
			})
		}
	}
	return drawSheet(500, 260, bubbles)
}
