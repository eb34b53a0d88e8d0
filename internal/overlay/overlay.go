// Package overlay renders the tracking state onto a frame-sized image for
// the dashboard snapshot: target bounding box, landmark dots and the
// dead-zone guides.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/face-tracker/internal/frame"
)

var (
	boxColor      = color.RGBA{0, 200, 0, 255}
	lostBoxColor  = color.RGBA{230, 160, 0, 255}
	landmarkColor = color.RGBA{255, 0, 0, 255}
	guideColor    = color.RGBA{80, 80, 220, 255}
	background    = color.RGBA{24, 24, 24, 255}
)

// Renderer draws snapshots at a fixed frame geometry.
type Renderer struct {
	width  int
	height int
}

// NewRenderer creates a renderer for frames of the given size.
func NewRenderer(width, height int) *Renderer {
	return &Renderer{width: width, height: height}
}

// Snapshot describes what to draw.
type Snapshot struct {
	BBox          *frame.BBox
	Landmarks     frame.Landmarks
	DeadZoneRatio float64
	// Lost switches the box to the warning color while the target is
	// missed inside the grace period.
	Lost bool
}

// Render draws the snapshot and returns it PNG-encoded.
func (r *Renderer) Render(s Snapshot) ([]byte, error) {
	img := r.Draw(s)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("could not encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Draw renders the snapshot into a fresh image.
func (r *Renderer) Draw(s Snapshot) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	r.drawGuides(dst, s.DeadZoneRatio)

	if s.BBox != nil {
		c := boxColor
		if s.Lost {
			c = lostBoxColor
		}
		r.drawBox(dst, *s.BBox, c)
	}
	for _, p := range s.Landmarks {
		r.drawDot(dst, p, landmarkColor)
	}
	return dst
}

// drawGuides draws the two vertical dead-zone boundaries around the frame
// center.
func (r *Renderer) drawGuides(dst *image.RGBA, ratio float64) {
	if ratio <= 0 {
		return
	}
	half := int(float64(r.width) * ratio)
	left := r.width/2 - half
	right := r.width/2 + half
	drawVLine(dst, 0, r.height-1, left, guideColor)
	drawVLine(dst, 0, r.height-1, right, guideColor)
}

const boxLineWidth = 2

func (r *Renderer) drawBox(dst *image.RGBA, b frame.BBox, c color.RGBA) {
	x1 := int(b.X)
	y1 := int(b.Y)
	x2 := int(b.X + b.Width)
	y2 := int(b.Y + b.Height)

	for w := range boxLineWidth {
		drawHLine(dst, x1, x2, y1+w, c)
		drawHLine(dst, x1, x2, y2-w, c)
		drawVLine(dst, y1, y2, x1+w, c)
		drawVLine(dst, y1, y2, x2-w, c)
	}
}

const dotRadius = 2

func (r *Renderer) drawDot(dst *image.RGBA, p frame.Point, c color.RGBA) {
	cx, cy := int(p.X), int(p.Y)
	for y := cy - dotRadius; y <= cy+dotRadius; y++ {
		drawHLine(dst, cx-dotRadius, cx+dotRadius, y, c)
	}
}

// drawHLine draws a horizontal line on the image.
func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	bounds := dst.Bounds()
	if y < 0 || y >= bounds.Dy() {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= 0 && x < bounds.Dx() {
			dst.Set(x, y, c)
		}
	}
}

// drawVLine draws a vertical line on the image.
func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	bounds := dst.Bounds()
	if x < 0 || x >= bounds.Dx() {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= 0 && y < bounds.Dy() {
			dst.Set(x, y, c)
		}
	}
}
