// Package contact implements the per-frame touch contact detection
// pipeline: preprocessing, structure tensor, Hessian ridge measure,
// component labelling and scoring, weighted distance filtering, and
// iterative 2D Gaussian fitting.
package contact

import (
	"math"

	"github.com/rs/zerolog"

	img "touch-tracer/internal/image"
	"touch-tracer/internal/perf"
	"touch-tracer/pkg/linalg"
)

// Config holds the pipeline tuning parameters.
type Config struct {
	BlurSize  int     // Gaussian kernel side for all blurs
	BlurSigma float64 // Gaussian sigma for all blurs

	MaximaThreshold float32 // minimum value for local maxima

	ObjectiveHeat  float32 // weight of the preprocessed image in the objective
	ObjectiveRidge float32 // weight of the ridge measure in the objective

	InclusionThreshold float32 // component score above which a label seeds the included pass

	CostRidge     float32 // distance-transform cost weight on the ridge measure
	CostGrad      float32 // distance-transform cost weight on the gradient measure
	CostDist      float32 // distance-transform cost weight on the step length
	DistanceLimit float32 // distance-transform cutoff

	WindowSize    int // Gaussian fitting window side
	FitIterations int // Gaussian fitting EM iterations
}

// DefaultConfig returns the tuning used for 72x48 capacitive heatmaps.
func DefaultConfig() Config {
	return Config{
		BlurSize:           5,
		BlurSigma:          1.0,
		MaximaThreshold:    0.05,
		ObjectiveHeat:      1.1,
		ObjectiveRidge:     0.9,
		InclusionThreshold: 0.6,
		CostRidge:          9.0,
		CostGrad:           1.0,
		CostDist:           0.1,
		DistanceLimit:      6.0,
		WindowSize:         11,
		FitIterations:      3,
	}
}

// Contact is one detected touch contact: the centre and precision matrix of
// its fitted Gaussian, in image coordinates.
type Contact struct {
	Mean linalg.Vec2[float64]  `json:"mean"`
	Prec linalg.Mat2s[float64] `json:"prec"`
}

// ComponentStats accumulates per-label statistics for scoring.
type ComponentStats struct {
	Size        uint32
	Volume      float32
	Incoherence float32
	Maximas     uint32
}

// Pipeline detects touch contacts in heatmap frames. All working buffers
// are allocated once for a fixed frame shape and reused; Process never
// allocates for frames of that shape (the parameter vector grows when a
// frame carries more maxima than any before it, keeping existing slots and
// their window buffers in place).
type Pipeline struct {
	cfg Config
	w   int
	h   int

	pp     *img.Image[float32]
	stMat  *img.Image[linalg.Mat2s[float32]]
	stBlur *img.Image[linalg.Mat2s[float32]]
	stEv   *img.Image[linalg.Vec2[float32]]
	rdg    *img.Image[float32]
	obj    *img.Image[float32]
	lbl    *img.Image[uint16]
	dmInc  *img.Image[float32]
	dmExc  *img.Image[float32]
	flt    *img.Image[float32]
	fitTmp *img.Image[float64]

	kernPP *img.Kernel
	kernST *img.Kernel
	kernHS *img.Kernel

	maximas []int
	cstats  []ComponentStats
	cscore  []float32

	labeler Labeler
	queue   distQueue
	fitter  *Fitter
	params  []Parameters

	log zerolog.Logger

	tPrep, tST, tSTEv, tHess, tRdg   *perf.Entry
	tObj, tLMax, tLbl, tCScr         *perf.Entry
	tWdt, tFlt, tLMaxF, tFit, tTotal *perf.Entry
}

// NewPipeline allocates a pipeline for frames of the given shape.
// reg may be nil to disable per-stage timing.
func NewPipeline(w, h int, cfg Config, log zerolog.Logger, reg *perf.Registry) *Pipeline {
	p := &Pipeline{
		cfg: cfg,
		w:   w,
		h:   h,

		pp:     img.New[float32](w, h),
		stMat:  img.New[linalg.Mat2s[float32]](w, h),
		stBlur: img.New[linalg.Mat2s[float32]](w, h),
		stEv:   img.New[linalg.Vec2[float32]](w, h),
		rdg:    img.New[float32](w, h),
		obj:    img.New[float32](w, h),
		lbl:    img.New[uint16](w, h),
		dmInc:  img.New[float32](w, h),
		dmExc:  img.New[float32](w, h),
		flt:    img.New[float32](w, h),
		fitTmp: img.New[float64](w, h),

		kernPP: img.Gaussian(cfg.BlurSize, cfg.BlurSize, cfg.BlurSigma),
		kernST: img.Gaussian(cfg.BlurSize, cfg.BlurSize, cfg.BlurSigma),
		kernHS: img.Gaussian(cfg.BlurSize, cfg.BlurSize, cfg.BlurSigma),

		maximas: make([]int, 0, 64),
		queue:   make(distQueue, 0, 1024),
		fitter:  NewFitter(log),
		log:     log,

		tTotal: reg.Entry("total"),
		tPrep:  reg.Entry("preprocessing"),
		tST:    reg.Entry("structure-tensor"),
		tSTEv:  reg.Entry("structure-tensor.eigenvalues"),
		tHess:  reg.Entry("hessian"),
		tRdg:   reg.Entry("ridge"),
		tObj:   reg.Entry("objective"),
		tLMax:  reg.Entry("objective.maximas"),
		tLbl:   reg.Entry("labels"),
		tCScr:  reg.Entry("component-score"),
		tWdt:   reg.Entry("distance-transform"),
		tFlt:   reg.Entry("filter"),
		tLMaxF: reg.Entry("filter.maximas"),
		tFit:   reg.Entry("gaussian-fitting"),
	}

	p.params = Reserve(nil, 32, cfg.WindowSize, cfg.WindowSize)

	return p
}

// Process runs the full detection pipeline on one frame. The frame shape
// must match the pipeline shape.
func (p *Pipeline) Process(hm *img.Image[float32]) {
	img.MustSameShape(hm, p.pp)

	stopTotal := p.tTotal.Record()

	// Preprocessing: blur, then remove the DC offset.
	stop := p.tPrep.Record()
	img.Conv(p.pp, hm, p.kernPP, img.BorderExtend)
	subtractMean(p.pp)
	stop()

	// Structure tensor: gradient outer product, blurred.
	stop = p.tST.Record()
	structureTensorPrep(p.stMat, p.pp)
	img.ConvMat2s(p.stBlur, p.stMat, p.kernST)
	stop()

	// Eigenvalues of the structure tensor.
	stop = p.tSTEv.Record()
	for i, s := range p.stBlur.Pix {
		ew1, ew2 := s.Eigenvalues()
		p.stEv.Pix[i] = linalg.Vec2[float32]{X: ew1, Y: ew2}
	}
	stop()

	// Hessian, blurred. stMat is dead after the structure tensor stage and
	// is reused as the Hessian scratch.
	stop = p.tHess.Record()
	hessian(p.stMat, p.pp)
	img.ConvMat2s(p.stBlur, p.stMat, p.kernHS)
	stop()

	// Ridge measure: sum of positive Hessian eigenvalues.
	stop = p.tRdg.Record()
	for i, hs := range p.stBlur.Pix {
		ev1, ev2 := hs.Eigenvalues()
		p.rdg.Pix[i] = max(ev1, 0) + max(ev2, 0)
	}
	stop()

	// Objective for labelling.
	stop = p.tObj.Record()
	for i := range p.obj.Pix {
		p.obj.Pix[i] = p.cfg.ObjectiveHeat*p.pp.Pix[i] - p.cfg.ObjectiveRidge*p.rdg.Pix[i]
	}
	stop()

	// Coarse local maxima on the preprocessed image.
	stop = p.tLMax.Record()
	p.maximas = findLocalMaxima(p.pp, p.cfg.MaximaThreshold, p.maximas[:0])
	stop()

	// Connected components of the objective above zero.
	stop = p.tLbl.Record()
	numLabels := p.labeler.Label(p.lbl, p.obj, 0, 4)
	stop()

	// Component scoring.
	stop = p.tCScr.Record()
	p.scoreComponents(numLabels)
	stop()

	// Weighted distance transform, seeded by included and excluded labels.
	stop = p.tWdt.Record()
	p.distanceTransforms()
	stop()

	// Soft filter: blend by Gaussian of the two distances.
	stop = p.tFlt.Record()
	for i := range p.flt.Pix {
		wInc := gaussOfDistance(p.dmInc.Pix[i])
		wExc := gaussOfDistance(p.dmExc.Pix[i])

		total := wInc + wExc
		w := float32(0)
		if total > 0 {
			w = wInc / total
		}

		p.flt.Pix[i] = p.pp.Pix[i] * w
	}
	stop()

	// Fine local maxima on the filtered image.
	stop = p.tLMaxF.Record()
	p.maximas = findLocalMaxima(p.flt, p.cfg.MaximaThreshold, p.maximas[:0])
	stop()

	// Gaussian fitting, one candidate per fine maximum.
	stop = p.tFit.Record()
	p.fitContacts()
	stop()

	stopTotal()
}

// Filtered returns the filtered image of the last processed frame. The
// buffer is owned by the pipeline and overwritten by the next Process.
func (p *Pipeline) Filtered() *img.Image[float32] {
	return p.flt
}

// Contacts appends the valid fitted Gaussians of the last processed frame
// to dst and returns it.
func (p *Pipeline) Contacts(dst []Contact) []Contact {
	for i := range p.params {
		if p.params[i].Valid {
			dst = append(dst, Contact{Mean: p.params[i].Mean, Prec: p.params[i].Prec})
		}
	}
	return dst
}

func (p *Pipeline) scoreComponents(numLabels int) {
	p.cstats = p.cstats[:0]
	for i := 0; i < numLabels; i++ {
		p.cstats = append(p.cstats, ComponentStats{})
	}

	for i, label := range p.lbl.Pix {
		if label == 0 {
			continue
		}

		st := &p.cstats[label-1]

		ev := p.stEv.Pix[i]
		coherence := float32(1)
		if ev.X+ev.Y != 0 {
			coherence = (ev.X - ev.Y) / (ev.X + ev.Y)
		}

		st.Size++
		st.Volume += p.pp.Pix[i]
		st.Incoherence += 1 - coherence*coherence
	}

	for _, m := range p.maximas {
		if label := p.lbl.Pix[m]; label > 0 {
			p.cstats[label-1].Maximas++
		}
	}

	p.cscore = p.cscore[:0]
	for i := 0; i < numLabels; i++ {
		st := &p.cstats[i]

		v := float32(0)
		if st.Maximas > 0 {
			v = 100 * (st.Incoherence / float32(st.Size*st.Size)) / float32(st.Maximas)
		}

		p.cscore = append(p.cscore, v/(1+v))
	}
}

func (p *Pipeline) distanceTransforms() {
	cost := func(i, dx, dy int) float32 {
		ev := p.stEv.Pix[i]
		grad := max(ev.X, 0) + max(ev.Y, 0)
		dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))

		return p.cfg.CostRidge*p.rdg.Pix[i] + p.cfg.CostGrad*grad + p.cfg.CostDist*dist
	}

	mask := func(i int) bool {
		return p.pp.Pix[i] > 0 && p.lbl.Pix[i] == 0
	}

	included := func(i int) bool {
		l := p.lbl.Pix[i]
		return l > 0 && p.cscore[l-1] > p.cfg.InclusionThreshold
	}

	excluded := func(i int) bool {
		l := p.lbl.Pix[i]
		return l > 0 && p.cscore[l-1] <= p.cfg.InclusionThreshold
	}

	distanceTransform(p.dmInc, included, mask, cost, &p.queue, p.cfg.DistanceLimit)
	distanceTransform(p.dmExc, excluded, mask, cost, &p.queue, p.cfg.DistanceLimit)
}

func (p *Pipeline) fitContacts() {
	p.params = Reserve(p.params, len(p.maximas), p.cfg.WindowSize, p.cfg.WindowSize)

	half := (p.cfg.WindowSize - 1) / 2

	for i, m := range p.maximas {
		x, y := p.flt.Unravel(m)

		// TODO: move the window inwards instead of clamping?
		bounds := BBox{
			XMin: max(x-half, 0),
			XMax: min(x+half, p.w-1),
			YMin: max(y-half, 0),
			YMax: min(y+half, p.h-1),
		}

		p.params[i].Valid = true
		p.params[i].Scale = 1
		p.params[i].Mean = linalg.Vec2[float64]{X: float64(x), Y: float64(y)}
		p.params[i].Prec = linalg.Mat2s[float64]{XX: 1, YY: 1}
		p.params[i].Bounds = bounds
	}

	p.fitter.Fit(p.params, p.flt, p.fitTmp, p.cfg.FitIterations)
}

// gaussOfDistance maps a distance to a soft weight exp(-(d/sigma)^2) with
// sigma = 1; +Inf maps to zero.
func gaussOfDistance(d float32) float32 {
	if math.IsInf(float64(d), 1) {
		return 0
	}
	return float32(math.Exp(float64(-d * d)))
}

func subtractMean(m *img.Image[float32]) {
	var sum float64
	for _, v := range m.Pix {
		sum += float64(v)
	}
	mean := float32(sum / float64(len(m.Pix)))

	for i := range m.Pix {
		m.Pix[i] -= mean
	}
}
