package render

import "image/color"

// viridisAnchors are evenly spaced control points of the viridis colormap;
// lookup interpolates linearly between them.
var viridisAnchors = [][3]uint8{
	{68, 1, 84},
	{72, 40, 120},
	{62, 74, 137},
	{49, 104, 142},
	{38, 130, 142},
	{31, 158, 137},
	{53, 183, 121},
	{109, 205, 89},
	{180, 222, 44},
	{253, 231, 37},
}

// Viridis maps t in [0, 1] to the viridis colormap. Values outside the
// range clamp to the endpoints.
func Viridis(t float64) color.NRGBA {
	if t <= 0 {
		a := viridisAnchors[0]
		return color.NRGBA{R: a[0], G: a[1], B: a[2], A: 255}
	}
	if t >= 1 {
		a := viridisAnchors[len(viridisAnchors)-1]
		return color.NRGBA{R: a[0], G: a[1], B: a[2], A: 255}
	}

	pos := t * float64(len(viridisAnchors)-1)
	i := int(pos)
	f := pos - float64(i)

	a, b := viridisAnchors[i], viridisAnchors[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*f + 0.5)
	}

	return color.NRGBA{R: lerp(a[0], b[0]), G: lerp(a[1], b[1]), B: lerp(a[2], b[2]), A: 255}
}
