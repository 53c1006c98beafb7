package contact

import (
	img "touch-tracer/internal/image"
)

// findLocalMaxima appends to out the linear index of every pixel that is
// strictly greater than each of its in-bounds 8-neighbours and at least
// threshold. Border pixels simply have fewer neighbours to beat.
func findLocalMaxima(in *img.Image[float32], threshold float32, out []int) []int {
	w, h := in.W, in.H

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			v := in.Pix[i]

			if v < threshold {
				continue
			}

			max := true
			for dy := -1; dy <= 1 && max; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					if in.Pix[ny*w+nx] >= v {
						max = false
						break
					}
				}
			}

			if max {
				out = append(out, i)
			}
		}
	}

	return out
}
