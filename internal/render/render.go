// Package render draws processed heatmap frames with their fitted contacts
// into PNG images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"touch-tracer/internal/contact"
	img "touch-tracer/internal/image"
)

// Value range mapped onto the colormap; matches the intensity range of
// filtered contact heatmaps.
const (
	rangeMin = 0.0
	rangeMax = 0.3
)

var overlayColor = color.NRGBA{R: 255, A: 255}

// Plotter renders frames of one fixed shape onto a reusable canvas.
type Plotter struct {
	frameW, frameH int
	small          *image.RGBA
	canvas         *image.RGBA
}

// NewPlotter creates a plotter for the given frame shape rendering onto a
// canvas of the given size.
func NewPlotter(frameW, frameH, canvasW, canvasH int) *Plotter {
	return &Plotter{
		frameW: frameW,
		frameH: frameH,
		small:  image.NewRGBA(image.Rect(0, 0, frameW, frameH)),
		canvas: image.NewRGBA(image.Rect(0, 0, canvasW, canvasH)),
	}
}

// Render maps the frame through the viridis colormap with row 0 at the
// bottom, upscales it with nearest-neighbour sampling, and overlays each contact as a centre cross
// plus its scaled covariance eigenvector axes. The returned image is owned
// by the plotter and valid until the next Render.
func (p *Plotter) Render(frame *img.Image[float32], contacts []contact.Contact) *image.RGBA {
	if frame.W != p.frameW || frame.H != p.frameH {
		panic(fmt.Sprintf("render: frame shape %dx%d does not match plotter %dx%d",
			frame.W, frame.H, p.frameW, p.frameH))
	}

	for y := 0; y < frame.H; y++ {
		for x := 0; x < frame.W; x++ {
			t := (float64(frame.At(x, y)) - rangeMin) / (rangeMax - rangeMin)
			p.small.SetRGBA(x, frame.H-1-y, rgba(Viridis(t)))
		}
	}

	xdraw.NearestNeighbor.Scale(p.canvas, p.canvas.Bounds(), p.small, p.small.Bounds(), xdraw.Src, nil)

	for _, c := range contacts {
		p.drawContact(c)
	}

	return p.canvas
}

// drawContact draws the centre cross and the covariance axes, scaled by
// 1.5 standard deviations along each eigenvector.
func (p *Plotter) drawContact(c contact.Contact) {
	cov, ok := c.Prec.Inv(1e-12)
	if !ok {
		return
	}
	eig := cov.Eigenvectors()

	mx, my := c.Mean.X, c.Mean.Y

	p.line(mx+0.1, my+0.5, mx+0.9, my+0.5)
	p.line(mx+0.5, my+0.1, mx+0.5, my+0.9)

	for i := 0; i < 2; i++ {
		if eig.W[i] <= 0 {
			continue
		}
		s := 1.5 * math.Sqrt(eig.W[i])
		p.line(mx+0.5, my+0.5, mx+0.5+eig.V[i].X*s, my+0.5+eig.V[i].Y*s)
	}
}

// line draws a segment between two points in frame coordinates. The
// vertical axis is flipped so the origin sits at the bottom-left, matching
// the sensor orientation.
func (p *Plotter) line(x0, y0, x1, y1 float64) {
	b := p.canvas.Bounds()
	sx := float64(b.Dx()) / float64(p.frameW)
	sy := float64(b.Dy()) / float64(p.frameH)

	px0, py0 := x0*sx, float64(b.Dy())-y0*sy
	px1, py1 := x1*sx, float64(b.Dy())-y1*sy

	dx, dy := px1-px0, py1-py0
	steps := int(math.Max(math.Abs(dx), math.Abs(dy))) + 1

	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(px0 + dx*t)
		y := int(py0 + dy*t)

		if x >= 0 && x < b.Dx() && y >= 0 && y < b.Dy() {
			p.canvas.SetRGBA(x, y, rgba(overlayColor))
		}
	}
}

// WriteFrame writes a rendered frame as out-NNNN.png into dir.
func WriteFrame(dir string, index int, m image.Image) error {
	path := filepath.Join(dir, fmt.Sprintf("out-%04d.png", index))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, m); err != nil {
		return fmt.Errorf("render: encoding %s: %w", path, err)
	}
	return nil
}

func rgba(c color.NRGBA) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}
