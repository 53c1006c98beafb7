package contact

import (
	"testing"

	img "touch-tracer/internal/image"
)

// fromRows builds a float32 image from rows of 0/1 values.
func fromRows(rows [][]float32) *img.Image[float32] {
	h := len(rows)
	w := len(rows[0])

	m := img.New[float32](w, h)
	for y, row := range rows {
		for x, v := range row {
			m.Set(x, y, v)
		}
	}
	return m
}

func TestLabelPlusShape(t *testing.T) {
	src := fromRows([][]float32{
		{0, 1, 0},
		{1, 1, 1},
		{0, 1, 0},
	})

	var l Labeler
	dst := img.New[uint16](3, 3)

	if n := l.Label(dst, src, 0, 4); n != 1 {
		t.Fatalf("plus shape with 4-connectivity: %d labels, want 1", n)
	}

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			want := uint16(0)
			if src.At(x, y) > 0 {
				want = 1
			}
			if dst.At(x, y) != want {
				t.Errorf("pixel (%d,%d): label %d, want %d", x, y, dst.At(x, y), want)
			}
		}
	}
}

func TestLabelDiagonalConnectivity(t *testing.T) {
	src := fromRows([][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	})

	var l Labeler
	dst := img.New[uint16](3, 3)

	if n := l.Label(dst, src, 0, 4); n != 3 {
		t.Errorf("diagonal with 4-connectivity: %d labels, want 3", n)
	}
	if n := l.Label(dst, src, 0, 8); n != 1 {
		t.Errorf("diagonal with 8-connectivity: %d labels, want 1", n)
	}
}

func TestLabelUShapeMerges(t *testing.T) {
	// The two arms get distinct provisional labels that must merge at the
	// bottom row.
	src := fromRows([][]float32{
		{1, 0, 1},
		{1, 0, 1},
		{1, 1, 1},
	})

	var l Labeler
	dst := img.New[uint16](3, 3)

	if n := l.Label(dst, src, 0, 4); n != 1 {
		t.Fatalf("u-shape: %d labels, want 1", n)
	}
}

func TestLabelContiguousRange(t *testing.T) {
	src := fromRows([][]float32{
		{1, 0, 1, 0, 1},
		{1, 0, 1, 0, 1},
		{0, 0, 0, 0, 0},
		{1, 1, 0, 1, 1},
	})

	var l Labeler
	dst := img.New[uint16](5, 4)
	n := l.Label(dst, src, 0, 4)

	if n != 5 {
		t.Fatalf("got %d labels, want 5", n)
	}

	seen := make(map[uint16]bool)
	for i, v := range dst.Pix {
		if src.Pix[i] <= 0 {
			if v != 0 {
				t.Errorf("background pixel %d labelled %d", i, v)
			}
			continue
		}
		if v == 0 || int(v) > n {
			t.Errorf("foreground pixel %d: label %d out of [1, %d]", i, v, n)
		}
		seen[v] = true
	}

	for lbl := uint16(1); lbl <= uint16(n); lbl++ {
		if !seen[lbl] {
			t.Errorf("label %d unused, range not contiguous", lbl)
		}
	}
}

func TestLabelThreshold(t *testing.T) {
	// Strictly-above semantics: pixels at the threshold are background.
	src := fromRows([][]float32{
		{0.5, 0.5},
		{0.5, 1.0},
	})

	var l Labeler
	dst := img.New[uint16](2, 2)

	if n := l.Label(dst, src, 0.5, 4); n != 1 {
		t.Errorf("got %d labels, want 1", n)
	}
	if dst.At(0, 0) != 0 || dst.At(1, 1) != 1 {
		t.Errorf("threshold semantics: got %v", dst.Pix)
	}
}

func TestLabelReuseAcrossFrames(t *testing.T) {
	// The same Labeler must produce identical results when reused.
	src := fromRows([][]float32{
		{1, 1, 0, 1},
		{0, 1, 0, 1},
	})

	var l Labeler
	a := img.New[uint16](4, 2)
	b := img.New[uint16](4, 2)

	na := l.Label(a, src, 0, 4)
	nb := l.Label(b, src, 0, 4)

	if na != nb {
		t.Fatalf("label counts differ across reuse: %d vs %d", na, nb)
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("pixel %d differs across reuse: %d vs %d", i, a.Pix[i], b.Pix[i])
		}
	}
}
