package render

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"touch-tracer/internal/contact"
	img "touch-tracer/internal/image"
	"touch-tracer/pkg/linalg"
)

func TestViridisEndpoints(t *testing.T) {
	lo := Viridis(0)
	if lo.R != 68 || lo.G != 1 || lo.B != 84 {
		t.Errorf("Viridis(0): got %+v", lo)
	}

	hi := Viridis(1)
	if hi.R != 253 || hi.G != 231 || hi.B != 37 {
		t.Errorf("Viridis(1): got %+v", hi)
	}

	// Out-of-range values clamp.
	if Viridis(-3) != lo || Viridis(7) != hi {
		t.Error("Viridis does not clamp")
	}
}

func TestViridisMonotoneGreen(t *testing.T) {
	// The green channel rises monotonically along the map; a quick sanity
	// check that interpolation walks the anchors in order.
	prev := -1
	for i := 0; i <= 10; i++ {
		c := Viridis(float64(i) / 10)
		if int(c.G) < prev {
			t.Fatalf("green channel decreases at t=%v", float64(i)/10)
		}
		prev = int(c.G)
	}
}

func TestRenderCanvas(t *testing.T) {
	frame := img.New[float32](72, 48)
	frame.Set(36, 24, 0.3)

	contacts := []contact.Contact{{
		Mean: linalg.Vec2[float64]{X: 36, Y: 24},
		Prec: linalg.Mat2s[float64]{XX: 0.25, YY: 0.25},
	}}

	p := NewPlotter(72, 48, 900, 600)
	canvas := p.Render(frame, contacts)

	b := canvas.Bounds()
	if b.Dx() != 900 || b.Dy() != 600 {
		t.Fatalf("canvas %dx%d, want 900x600", b.Dx(), b.Dy())
	}

	// The overlay paints pure red somewhere near the contact.
	found := false
	for y := 0; y < 600 && !found; y++ {
		for x := 0; x < 900; x++ {
			c := canvas.RGBAAt(x, y)
			if c.R == 255 && c.G == 0 && c.B == 0 {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("no overlay pixels on the canvas")
	}
}

func TestRenderShapeMismatchPanics(t *testing.T) {
	p := NewPlotter(72, 48, 900, 600)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on frame shape mismatch")
		}
	}()
	p.Render(img.New[float32](48, 72), nil)
}

func TestWriteFrame(t *testing.T) {
	dir := t.TempDir()

	p := NewPlotter(8, 8, 80, 80)
	canvas := p.Render(img.New[float32](8, 8), nil)

	if err := WriteFrame(dir, 3, canvas); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "out-0003.png"))
	if err != nil {
		t.Fatalf("output file: %v", err)
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 80 {
		t.Errorf("decoded width %d, want 80", decoded.Bounds().Dx())
	}
}
