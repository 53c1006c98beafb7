package contact

import (
	"container/heap"
	"math"

	img "touch-tracer/internal/image"
)

// qItem is a pending pixel in the distance-transform priority queue.
type qItem struct {
	idx  int
	dist float32
}

// distQueue implements heap.Interface over a reusable backing slice.
type distQueue []qItem

func (q distQueue) Len() int            { return len(q) }
func (q distQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q distQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *distQueue) Push(x interface{}) { *q = append(*q, x.(qItem)) }

func (q *distQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// distanceTransform computes a weighted shortest-path distance over the
// pixel grid with 4-connectivity, Dijkstra style.
//
// Seeds enter the queue with distance zero. Neighbours are relaxed only
// where mask holds; pixels outside the mask keep +Inf. cost(i, dx, dy)
// is the non-negative cost of entering pixel i from its neighbour offset
// by (dx, dy); tentative distances above limit are not relaxed. The queue
// backing buffer is caller-provided and reused across frames.
func distanceTransform(dst *img.Image[float32], seed, mask func(i int) bool, cost func(i, dx, dy int) float32, q *distQueue, limit float32) {
	w, h := dst.W, dst.H
	inf := float32(math.Inf(1))

	dst.Fill(inf)

	*q = (*q)[:0]
	for i := 0; i < dst.Len(); i++ {
		if seed(i) {
			dst.Pix[i] = 0
			*q = append(*q, qItem{idx: i, dist: 0})
		}
	}
	heap.Init(q)

	steps := [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

	for q.Len() > 0 {
		item := heap.Pop(q).(qItem)

		// Stale entry; the pixel was settled with a smaller distance.
		if item.dist > dst.Pix[item.idx] {
			continue
		}

		x := item.idx % w
		y := item.idx / w

		for _, s := range steps {
			nx, ny := x+s[0], y+s[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}

			j := ny*w + nx
			if !mask(j) {
				continue
			}

			d := item.dist + cost(j, s[0], s[1])
			if d > limit || d >= dst.Pix[j] {
				continue
			}

			dst.Pix[j] = d
			heap.Push(q, qItem{idx: j, dist: d})
		}
	}
}
