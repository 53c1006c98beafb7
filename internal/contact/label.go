package contact

import (
	img "touch-tracer/internal/image"
)

// Labeler performs connected-component labelling. It owns the union-find
// table so repeated labelling of same-sized frames does not allocate.
type Labeler struct {
	parent  []uint16
	relabel []uint16
}

// Label segments src into connected components of pixels with value above
// threshold, writing per-pixel labels into dst and returning the number of
// components. Background pixels receive label 0; components are numbered
// contiguously from 1 in scan order. Connectivity must be 4 or 8.
//
// Classic two-pass algorithm: the first pass assigns provisional labels
// from the already-visited neighbours and records equivalences in a
// union-find table, the second pass resolves each pixel to its canonical,
// renumbered label.
func (l *Labeler) Label(dst *img.Image[uint16], src *img.Image[float32], threshold float32, connectivity int) int {
	img.MustSameShape(dst, src)
	if connectivity != 4 && connectivity != 8 {
		panic("contact: connectivity must be 4 or 8")
	}

	w, h := src.W, src.H

	// Provisional label 0 is background; the table is seeded with it so
	// parent[n] == n holds for every live label.
	l.parent = append(l.parent[:0], 0)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x

			if src.Pix[i] <= threshold {
				dst.Pix[i] = 0
				continue
			}

			// Previously visited neighbours: left, upper; with 8-conn
			// also upper-left and upper-right.
			var neigh [4]uint16
			n := 0

			if x > 0 {
				if v := dst.Pix[i-1]; v > 0 {
					neigh[n] = v
					n++
				}
			}
			if y > 0 {
				if v := dst.Pix[i-w]; v > 0 {
					neigh[n] = v
					n++
				}
				if connectivity == 8 {
					if x > 0 {
						if v := dst.Pix[i-w-1]; v > 0 {
							neigh[n] = v
							n++
						}
					}
					if x < w-1 {
						if v := dst.Pix[i-w+1]; v > 0 {
							neigh[n] = v
							n++
						}
					}
				}
			}

			if n == 0 {
				next := uint16(len(l.parent))
				l.parent = append(l.parent, next)
				dst.Pix[i] = next
				continue
			}

			min := l.find(neigh[0])
			for j := 1; j < n; j++ {
				r := l.find(neigh[j])
				if r < min {
					l.parent[min] = r
					min = r
				} else if r > min {
					l.parent[r] = min
				}
			}
			dst.Pix[i] = min
		}
	}

	// Second pass: canonical labels, renumbered contiguously.
	if cap(l.relabel) < len(l.parent) {
		l.relabel = make([]uint16, len(l.parent))
	}
	l.relabel = l.relabel[:len(l.parent)]
	for i := range l.relabel {
		l.relabel[i] = 0
	}

	num := uint16(0)
	for i := range dst.Pix {
		v := dst.Pix[i]
		if v == 0 {
			continue
		}

		r := l.find(v)
		if l.relabel[r] == 0 {
			num++
			l.relabel[r] = num
		}
		dst.Pix[i] = l.relabel[r]
	}

	return int(num)
}

func (l *Labeler) find(x uint16) uint16 {
	for l.parent[x] != x {
		l.parent[x] = l.parent[l.parent[x]]
		x = l.parent[x]
	}
	return x
}
