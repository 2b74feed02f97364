package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay palette.
var (
	filledColor   = color.RGBA{0, 0, 255, 255}
	unfilledColor = color.RGBA{0, 255, 0, 255}
	centerColor   = color.RGBA{255, 128, 0, 255}
	rowBoxColor   = color.RGBA{255, 0, 255, 255}
	labelColor    = color.RGBA{255, 255, 255, 255}
	rowTextColor  = color.RGBA{0, 0, 0, 255}
)

// outlineColor returns the ring colour of m. Unfilled rings are blended in
// L*a*b* from the unfilled towards the filled colour by m.Level, so a bubble
// that nearly reached the fill fraction reads as almost blue.
func outlineColor(m Mark) color.RGBA {
	if m.Filled {
		return filledColor
	}
	if m.Level <= 0 {
		return unfilledColor
	}
	t := math.Min(m.Level, 1)

	from, _ := colorful.MakeColor(unfilledColor)
	to, _ := colorful.MakeColor(filledColor)
	r, g, b := from.BlendLab(to, t).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Mark is one detected bubble as drawn on an overlay.
type Mark struct {
	X      int
	Y      int
	R      int
	Filled bool
	// Level is the bubble's ink coverage as a share of the fill fraction,
	// 0 for a blank bubble and 1 or more at the fill decision.
	Level float64
	// Label is the option letter; empty for circles beyond the labelled options.
	Label string
}

// MarkedRow is a numbered question row as drawn on an overlay.
type MarkedRow struct {
	Number int
	Marks  []Mark
}

// Overlay draws the grading decisions on top of a copy of img.
//
// For every row it draws:
//   - each circle outline, blue when filled and otherwise shaded from green
//     towards blue by its Level
//   - a small orange square at each circle centre
//   - the option letter inside each labelled circle
//   - the question number above the row
//   - a purple bounding box around the row
//
// The source image is not modified. The result has its origin at (0,0).
func Overlay(img image.Image, rows []MarkedRow) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	for _, row := range rows {
		if len(row.Marks) == 0 {
			continue
		}

		minX, minY := row.Marks[0].X-row.Marks[0].R, row.Marks[0].Y-row.Marks[0].R
		maxX, maxY := row.Marks[0].X+row.Marks[0].R, row.Marks[0].Y+row.Marks[0].R

		for _, m := range row.Marks {
			drawRing(dst, m.X, m.Y, m.R, outlineColor(m))
			fillRect(dst, m.X-2, m.Y-2, m.X+2, m.Y+2, centerColor)
			if m.Label != "" {
				drawText(dst, m.X-3, m.Y+4, m.Label, labelColor)
			}

			minX = min(minX, m.X-m.R)
			minY = min(minY, m.Y-m.R)
			maxX = max(maxX, m.X+m.R)
			maxY = max(maxY, m.Y+m.R)
		}

		first := row.Marks[0]
		drawText(dst, first.X-first.R-10, first.Y-first.R-2, strconv.Itoa(row.Number), rowTextColor)
		drawRect(dst, minX, minY, maxX, maxY, rowBoxColor)
	}

	return dst
}

// drawRing draws a circle outline roughly two pixels thick.
func drawRing(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	inner := (r - 1) * (r - 1)
	outer := (r + 1) * (r + 1)
	for dy := -r - 1; dy <= r+1; dy++ {
		for dx := -r - 1; dx <= r+1; dx++ {
			d2 := dx*dx + dy*dy
			if d2 >= inner && d2 <= outer {
				setPixel(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawRect draws a two pixel rectangle outline with inclusive corners.
func drawRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	for t := 0; t < 2; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(img, x, y1+t, c)
			setPixel(img, x, y2-t, c)
		}
		for y := y1; y <= y2; y++ {
			setPixel(img, x1+t, y, c)
			setPixel(img, x2-t, y, c)
		}
	}
}

func fillRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			setPixel(img, x, y, c)
		}
	}
}

// setPixel writes c at (x, y), silently ignoring points outside img.
func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetRGBA(x, y, c)
	}
}

// drawText renders s with its baseline starting at (x, y).
func drawText(img *image.RGBA, x, y int, s string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// EncodedImage contains an image encoded as base64 PNG.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as base64 PNG for transport over JSON.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// SaveImage writes img to path. The format is chosen from the file extension
// (.png, .jpg/.jpeg, .gif, .tif/.tiff, .bmp).
func SaveImage(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}
	return nil
}
