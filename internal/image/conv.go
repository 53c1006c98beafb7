package image

import "touch-tracer/pkg/linalg"

// Border selects how convolution reads pixels outside the image.
type Border int

const (
	// BorderExtend clamps out-of-range reads to the nearest edge pixel.
	BorderExtend Border = iota
	// BorderZero treats out-of-range pixels as contributing nothing.
	BorderZero
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApplyAt evaluates the kernel centred on (x, y) under the given border
// policy.
func ApplyAt(in *Image[float32], k *Kernel, x, y int, b Border) float32 {
	dx, dy := k.Center()

	var sum float32
	for j := 0; j < k.H; j++ {
		for i := 0; i < k.W; i++ {
			sx := x - dx + i
			sy := y - dy + j

			switch b {
			case BorderExtend:
				sx = clamp(sx, 0, in.W-1)
				sy = clamp(sy, 0, in.H-1)
			case BorderZero:
				if sx < 0 || sx >= in.W || sy < 0 || sy >= in.H {
					continue
				}
			}

			sum += in.Pix[sy*in.W+sx] * k.Wt[j*k.W+i]
		}
	}

	return sum
}

// Conv convolves a scalar image with a kernel, writing into out. Shapes of
// out and in must match. 3x3 and 5x5 kernels with the extend border take a
// hot path that hoists border handling out of the interior loop; the
// generic path is semantically identical.
func Conv(out, in *Image[float32], k *Kernel, b Border) {
	MustSameShape(out, in)

	if b == BorderExtend {
		switch {
		case k.W == 3 && k.H == 3 && in.W >= 3 && in.H >= 3:
			conv3x3Extend(out, in, k)
			return
		case k.W == 5 && k.H == 5 && in.W >= 5 && in.H >= 5:
			conv5x5Extend(out, in, k)
			return
		}
	}

	for y := 0; y < in.H; y++ {
		for x := 0; x < in.W; x++ {
			out.Pix[y*in.W+x] = ApplyAt(in, k, x, y, b)
		}
	}
}

// conv3x3Extend handles the interior with unchecked linear indexing and
// leaves the one-pixel frame to the clamped path.
func conv3x3Extend(out, in *Image[float32], k *Kernel) {
	w, h := in.W, in.H
	kw := k.Wt

	for y := 1; y < h-1; y++ {
		row := y * w
		for x := 1; x < w-1; x++ {
			i := row + x
			out.Pix[i] = in.Pix[i-w-1]*kw[0] + in.Pix[i-w]*kw[1] + in.Pix[i-w+1]*kw[2] +
				in.Pix[i-1]*kw[3] + in.Pix[i]*kw[4] + in.Pix[i+1]*kw[5] +
				in.Pix[i+w-1]*kw[6] + in.Pix[i+w]*kw[7] + in.Pix[i+w+1]*kw[8]
		}
	}

	convFrameExtend(out, in, k, 1)
}

// conv5x5Extend is the 5x5 analogue with a two-pixel frame.
func conv5x5Extend(out, in *Image[float32], k *Kernel) {
	w, h := in.W, in.H
	kw := k.Wt

	for y := 2; y < h-2; y++ {
		row := y * w
		for x := 2; x < w-2; x++ {
			i := row + x

			var sum float32
			ki := 0
			for j := -2; j <= 2; j++ {
				base := i + j*w
				sum += in.Pix[base-2]*kw[ki] + in.Pix[base-1]*kw[ki+1] + in.Pix[base]*kw[ki+2] +
					in.Pix[base+1]*kw[ki+3] + in.Pix[base+2]*kw[ki+4]
				ki += 5
			}

			out.Pix[i] = sum
		}
	}

	convFrameExtend(out, in, k, 2)
}

// convFrameExtend fills the margin pixels left by a fast path.
func convFrameExtend(out, in *Image[float32], k *Kernel, margin int) {
	w, h := in.W, in.H

	for y := 0; y < h; y++ {
		if y >= margin && y < h-margin {
			for x := 0; x < margin; x++ {
				out.Pix[y*w+x] = ApplyAt(in, k, x, y, BorderExtend)
			}
			for x := w - margin; x < w; x++ {
				out.Pix[y*w+x] = ApplyAt(in, k, x, y, BorderExtend)
			}
			continue
		}
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = ApplyAt(in, k, x, y, BorderExtend)
		}
	}
}

// ConvMat2s convolves a field of symmetric 2x2 matrices with a kernel under
// the extend border. The convolution is linear, so each matrix component is
// blurred independently.
func ConvMat2s(out, in *Image[linalg.Mat2s[float32]], k *Kernel) {
	MustSameShape(out, in)

	dx, dy := k.Center()

	for y := 0; y < in.H; y++ {
		for x := 0; x < in.W; x++ {
			var acc linalg.Mat2s[float32]

			for j := 0; j < k.H; j++ {
				sy := clamp(y-dy+j, 0, in.H-1)
				for i := 0; i < k.W; i++ {
					sx := clamp(x-dx+i, 0, in.W-1)

					wt := k.Wt[j*k.W+i]
					s := in.Pix[sy*in.W+sx]

					acc.XX += s.XX * wt
					acc.XY += s.XY * wt
					acc.YY += s.YY * wt
				}
			}

			out.Pix[y*in.W+x] = acc
		}
	}
}
