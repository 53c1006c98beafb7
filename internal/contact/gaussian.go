package contact

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	img "touch-tracer/internal/image"
	"touch-tracer/pkg/linalg"
)

// logEps regularises the log of the weighted intensity. The data is
// normalised into [0, 1], so a fixed floor keeps the log bounded without
// depending on the element type's machine epsilon.
const logEps = 1e-12

// detEps is the smallest precision-matrix determinant considered
// non-degenerate.
const detEps = 1e-12

// BBox is an inclusive bounding box of a sampling window, in image
// coordinates.
type BBox struct {
	XMin, XMax int
	YMin, YMax int
}

// Parameters holds one candidate contact: a 2D Gaussian described by its
// amplitude, centre and precision matrix, plus the sampling window and the
// per-window responsibility weights.
type Parameters struct {
	Valid   bool
	Scale   float64
	Mean    linalg.Vec2[float64]
	Prec    linalg.Mat2s[float64]
	Bounds  BBox
	Weights *img.Image[float64]
}

// Reserve grows the parameter slice to hold at least n slots and resets
// every slot to invalid. New slots receive freshly allocated weight images
// of the given window shape; existing slots keep theirs. The slice never
// shrinks, and growth must not drop window buffers: each slot references
// its image through a pointer, so appending re-seats the structs but the
// pixel memory survives.
func Reserve(params []Parameters, n, windowW, windowH int) []Parameters {
	for len(params) < n {
		params = append(params, Parameters{
			Scale:   1,
			Prec:    linalg.Mat2s[float64]{XX: 1, YY: 1},
			Bounds:  BBox{XMin: 0, XMax: -1, YMin: 0, YMax: -1},
			Weights: img.New[float64](windowW, windowH),
		})
	}

	for i := range params {
		params[i].Valid = false
	}

	return params
}

// Fitter fits a mixture of 2D Gaussians to a non-negative image by
// iterating responsibility weight maps and per-Gaussian weighted least
// squares on the log intensity. The 6x6 normal-equations solve reuses one
// dense system across slots and iterations.
type Fitter struct {
	sys *mat.Dense
	rhs *mat.VecDense
	chi *mat.VecDense
	log zerolog.Logger
}

// NewFitter creates a Fitter logging diagnostics to log. The diagnostics
// are advisory; degenerate slots are invalidated silently either way.
func NewFitter(log zerolog.Logger) *Fitter {
	return &Fitter{
		sys: mat.NewDense(6, 6, nil),
		rhs: mat.NewVecDense(6, nil),
		chi: mat.NewVecDense(6, nil),
		log: log,
	}
}

// Fit runs nIter EM-style iterations over all valid parameter slots.
// data is the filtered frame, total a scratch image of the frame shape for
// summed responsibilities. Means and precision matrices enter and leave in
// image coordinates; internally the frame is scaled to [-1, 1]^2.
func (f *Fitter) Fit(params []Parameters, data *img.Image[float32], total *img.Image[float64], nIter int) {
	img.MustSameShape(total, data)

	sx := 2.0 / float64(data.W)
	sy := 2.0 / float64(data.H)

	// Down-scale into the fitting frame.
	for i := range params {
		p := &params[i]
		if !p.Valid {
			continue
		}

		p.Mean.X = p.Mean.X*sx - 1
		p.Mean.Y = p.Mean.Y*sy - 1

		p.Prec.XX /= sx * sx
		p.Prec.XY /= sx * sy
		p.Prec.YY /= sy * sy
	}

	for iter := 0; iter < nIter; iter++ {
		updateWeightMaps(params, total)

		for i := range params {
			p := &params[i]
			if !p.Valid {
				continue
			}

			f.assembleSystem(p, data)

			if err := f.chi.SolveVec(f.sys, f.rhs); err != nil {
				p.Valid = false
				f.log.Warn().Int("slot", i).Err(err).Msg("invalid equation system")
				continue
			}

			if !extractParams(f.chi, p) {
				p.Valid = false
				f.log.Warn().Int("slot", i).Msg("parameter extraction failed")
			}
		}
	}

	// Undo the down-scaling.
	for i := range params {
		p := &params[i]
		if !p.Valid {
			continue
		}

		p.Mean.X = (p.Mean.X + 1) / sx
		p.Mean.Y = (p.Mean.Y + 1) / sy

		p.Prec.XX *= sx * sx
		p.Prec.XY *= sx * sy
		p.Prec.YY *= sy * sy
	}
}

// assembleSystem builds the weighted normal equations for the coefficients
// chi = (a, 2b, c, d, e, f) of log g ~ a x^2 + 2b xy + c y^2 + d x + e y + f
// fitted to log(w*I + eps) with weights (w*I)^2, over the slot's window.
//
// In the monomial basis (x^2, xy, y^2, x, y, 1) the system is the plain
// Gram matrix with no extra scaling; the factor 2 of the cross term lives
// entirely in the interpretation of chi[1], which extractParams accounts
// for. (The reference implementation instead scaled one matrix row by two,
// which is not a valid transformation of the system; see DESIGN.md.)
func (f *Fitter) assembleSystem(p *Parameters, data *img.Image[float32]) {
	sx := 2.0 / float64(data.W)
	sy := 2.0 / float64(data.H)

	// Upper triangle of the symmetric 6x6 Gram matrix, row-major.
	var m [21]float64
	var r [6]float64

	b := p.Bounds
	for iy := b.YMin; iy <= b.YMax; iy++ {
		y := float64(iy)*sy - 1
		for ix := b.XMin; ix <= b.XMax; ix++ {
			x := float64(ix)*sx - 1

			w := p.Weights.At(ix-b.XMin, iy-b.YMin)
			d := w * float64(data.At(ix, iy))
			v := math.Log(d+logEps) * d * d
			dd := d * d

			phi := [6]float64{x * x, x * y, y * y, x, y, 1}

			k := 0
			for j := 0; j < 6; j++ {
				r[j] += v * phi[j]
				for l := j; l < 6; l++ {
					m[k] += dd * phi[j] * phi[l]
					k++
				}
			}
		}
	}

	k := 0
	for j := 0; j < 6; j++ {
		f.rhs.SetVec(j, r[j])
		for l := j; l < 6; l++ {
			f.sys.Set(j, l, m[k])
			f.sys.Set(l, j, m[k])
			k++
		}
	}
}

// extractParams recovers amplitude, mean and precision from the solved
// coefficients. Slots whose precision determinant is not positive are
// degenerate and reported as failed.
func extractParams(chi *mat.VecDense, p *Parameters) bool {
	prec := linalg.Mat2s[float64]{
		XX: -2 * chi.AtVec(0),
		XY: -chi.AtVec(1),
		YY: -2 * chi.AtVec(2),
	}

	d := prec.Det()
	if d <= detEps || prec.XX <= 0 {
		return false
	}

	// mu = prec^-1 * (d, e)
	mean := linalg.Vec2[float64]{
		X: (prec.YY*chi.AtVec(3) - prec.XY*chi.AtVec(4)) / d,
		Y: (prec.XX*chi.AtVec(4) - prec.XY*chi.AtVec(3)) / d,
	}

	p.Prec = prec
	p.Mean = mean
	p.Scale = math.Exp(chi.AtVec(5) + prec.QuadForm(mean)/2)

	return true
}

// updateWeightMaps runs the E-step: evaluate each valid Gaussian over its
// window, sum the contributions into total, and normalise each window by
// the summed responsibility. Pixels with zero total keep zero weights.
func updateWeightMaps(params []Parameters, total *img.Image[float64]) {
	sx := 2.0 / float64(total.W)
	sy := 2.0 / float64(total.H)

	total.Fill(0)

	for i := range params {
		p := &params[i]
		if !p.Valid {
			continue
		}

		b := p.Bounds
		for iy := b.YMin; iy <= b.YMax; iy++ {
			y := float64(iy)*sy - 1
			for ix := b.XMin; ix <= b.XMax; ix++ {
				x := float64(ix)*sx - 1

				dv := linalg.Vec2[float64]{X: x, Y: y}.Sub(p.Mean)
				v := p.Scale * math.Exp(-p.Prec.QuadForm(dv)/2)

				p.Weights.Set(ix-b.XMin, iy-b.YMin, v)
				total.Pix[iy*total.W+ix] += v
			}
		}
	}

	for i := range params {
		p := &params[i]
		if !p.Valid {
			continue
		}

		b := p.Bounds
		for iy := b.YMin; iy <= b.YMax; iy++ {
			for ix := b.XMin; ix <= b.XMax; ix++ {
				t := total.Pix[iy*total.W+ix]
				if t > 0 {
					w := p.Weights.At(ix-b.XMin, iy-b.YMin)
					p.Weights.Set(ix-b.XMin, iy-b.YMin, w/t)
				}
			}
		}
	}
}
