package contact

import (
	img "touch-tracer/internal/image"
	"touch-tracer/pkg/linalg"
)

// structureTensorPrep computes the outer product of the image gradient per
// pixel. Gradients come from the 3x3 Sobel kernels with the extend border;
// the caller blurs the resulting matrix field.
func structureTensorPrep(out *img.Image[linalg.Mat2s[float32]], in *img.Image[float32]) {
	img.MustSameShape(out, in)

	for y := 0; y < in.H; y++ {
		for x := 0; x < in.W; x++ {
			gx := img.ApplyAt(in, img.Sobel3X, x, y, img.BorderExtend)
			gy := img.ApplyAt(in, img.Sobel3Y, x, y, img.BorderExtend)

			out.Pix[y*in.W+x] = linalg.Mat2s[float32]{
				XX: gx * gx,
				XY: gx * gy,
				YY: gy * gy,
			}
		}
	}
}

// hessian computes the second-order partials per pixel via the 3x3
// second-derivative Sobel kernels. Out-of-range reads contribute nothing.
func hessian(out *img.Image[linalg.Mat2s[float32]], in *img.Image[float32]) {
	img.MustSameShape(out, in)

	for y := 0; y < in.H; y++ {
		for x := 0; x < in.W; x++ {
			out.Pix[y*in.W+x] = linalg.Mat2s[float32]{
				XX: img.ApplyAt(in, img.Sobel3XX, x, y, img.BorderZero),
				XY: img.ApplyAt(in, img.Sobel3XY, x, y, img.BorderZero),
				YY: img.ApplyAt(in, img.Sobel3YY, x, y, img.BorderZero),
			}
		}
	}
}
