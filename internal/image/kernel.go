package image

import "math"

// Kernel is a fixed-size, odd-sided, centred 2D weight grid stored in
// row-major order.
type Kernel struct {
	W, H int
	Wt   []float32
}

// At returns the weight at kernel position (i, j).
func (k *Kernel) At(i, j int) float32 {
	return k.Wt[j*k.W+i]
}

// Center returns the kernel centre offsets ((W-1)/2, (H-1)/2).
func (k *Kernel) Center() (int, int) {
	return (k.W - 1) / 2, (k.H - 1) / 2
}

// Gaussian synthesises a normalised Gaussian kernel of the given odd shape.
// Weights are exp(-1/2 (r/sigma)^2) over the distance r from the centre,
// scaled so that the kernel sums to one.
func Gaussian(w, h int, sigma float64) *Kernel {
	if w%2 == 0 || h%2 == 0 {
		panic("image: gaussian kernel sides must be odd")
	}

	k := &Kernel{W: w, H: h, Wt: make([]float32, w*h)}
	dx, dy := k.Center()

	sum := 0.0
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			x := float64(i-dx) / sigma
			y := float64(j-dy) / sigma
			v := math.Exp(-0.5 * (x*x + y*y))

			k.Wt[j*w+i] = float32(v)
			sum += v
		}
	}

	for i := range k.Wt {
		k.Wt[i] = float32(float64(k.Wt[i]) / sum)
	}

	return k
}

// Sobel gradient and second-derivative kernels. Applied by correlation,
// matching the convolution contract: out[x,y] = sum in[x-dx+i, y-dy+j]*k[i,j].
var (
	Sobel3X = &Kernel{W: 3, H: 3, Wt: []float32{
		1, 0, -1,
		2, 0, -2,
		1, 0, -1,
	}}

	Sobel3Y = &Kernel{W: 3, H: 3, Wt: []float32{
		1, 2, 1,
		0, 0, 0,
		-1, -2, -1,
	}}

	Sobel3XX = &Kernel{W: 3, H: 3, Wt: []float32{
		1, -2, 1,
		2, -4, 2,
		1, -2, 1,
	}}

	Sobel3YY = &Kernel{W: 3, H: 3, Wt: []float32{
		1, 2, 1,
		-2, -4, -2,
		1, 2, 1,
	}}

	Sobel3XY = &Kernel{W: 3, H: 3, Wt: []float32{
		1, 0, -1,
		0, 0, 0,
		-1, 0, 1,
	}}
)
