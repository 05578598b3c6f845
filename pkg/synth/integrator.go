package synth

import(
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abworrall/hsi-synth/pkg/ecolor"
	"github.com/abworrall/hsi-synth/pkg/emath"
	"github.com/abworrall/hsi-synth/pkg/hsi"
	"github.com/abworrall/hsi-synth/pkg/spectra"
)

type State int32

const(
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State)String() string {
	switch s {
	case StateIdle:      return "idle"
	case StateRunning:   return "running"
	case StateCompleted: return "completed"
	case StateCancelled: return "cancelled"
	case StateFailed:    return "failed"
	default:             return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether the run is over.
func (s State)Terminal() bool { return s >= StateCompleted }

// A Result is what a completed run produces.
type Result struct {
	Image  *Image // post-processed, for display
	Raw    *Image // the integrals, before any post-processing
	Linear *Image // Raw after the color transform (if any); scene-referred, for HDR output
}

// An Integrator turns a hypercube into an RGB image, one row at a time.
// All the curve preparation happens in Prepare; Run just streams rows.
// Run it once, then throw it away.
type Integrator struct {
	Cube         hsi.Hypercube
	Kind         spectra.Kind
	Mask         []int          // cube band indices inside the effective domain
	Wavelengths  []float64      // the cube wavelengths at those indices
	Weights      [3][]float64   // normalized response * illuminant, per masked band
	Referencer   Referencer
	Post         PostOptions
	Workers      int
	Verbosity    int
	DebugPixels  []image.Point
	Timings      *RowTimings

	token        *CancelToken
	state        atomic.Int32
}

// Prepare checks every precondition and does all the resampling and
// normalization, so a failure here means no rows were read. `token` may
// be nil, in which case the run can't be cancelled.
func Prepare(cube hsi.Hypercube, p Parameters, token *CancelToken) (*Integrator, error) {
	w := cube.Wavelengths()
	if len(w) == 0 {
		return nil, ErrMissingWavelengths
	} else if len(w) != cube.NumBands() || !emath.StrictlyIncreasing(w) {
		return nil, fmt.Errorf("%w: %d wavelengths for %d bands, or not increasing", ErrMissingWavelengths,
			len(w), cube.NumBands())
	}

	if err := p.Responses.Validate(); err != nil {
		return nil, fmt.Errorf("prepare: %v", err)
	}

	// The illuminant's domain limits things as well; it is never extrapolated.
	lo, hi := p.Responses.Domain()
	if p.Illuminant != nil {
		if err := p.Illuminant.Validate(); err != nil {
			return nil, fmt.Errorf("prepare: %v", err)
		}
		lo, hi = math.Max(lo, p.Illuminant.Min()), math.Min(hi, p.Illuminant.Max())
	}

	mask, err := EffectiveDomain(w, lo, hi)
	if err != nil {
		return nil, err
	}
	wavelengths := pick(w, mask)

	var channels [3][]float64
	for ch:=0; ch<3; ch++ {
		if channels[ch], err = p.Responses.Channels[ch].Resample(wavelengths); err != nil {
			return nil, fmt.Errorf("prepare: %v", err)
		}
	}
	illum, err := p.Illuminant.Weights(wavelengths)
	if err != nil {
		return nil, fmt.Errorf("prepare: %v", err)
	}

	normalized, err := normalizeResponses(p.Responses.Kind, channels, illum, wavelengths)
	if err != nil {
		return nil, err
	}

	in := Integrator{
		Cube:        cube,
		Kind:        p.Responses.Kind,
		Mask:        mask,
		Wavelengths: wavelengths,
		Workers:     p.Workers,
		Verbosity:   p.Verbosity,
		DebugPixels: append([]image.Point(nil), p.DebugPixels...),
		Timings:     NewRowTimings(),
		token:       token,
	}
	for ch:=0; ch<3; ch++ {
		in.Weights[ch] = make([]float64, len(wavelengths))
		for i := range wavelengths {
			in.Weights[ch][i] = normalized[ch][i] * illum[i]
		}
	}
	if in.token == nil {
		in.token = NewCancelToken()
	}

	if in.Referencer, err = prepareReferencer(cube, p, mask); err != nil {
		return nil, err
	}
	if in.Post, err = preparePost(p); err != nil {
		return nil, err
	}

	log.Printf("Prepared %s over %d bands (%.1f-%.1fnm of the cube's %d), %s",
		p.Responses, len(mask), wavelengths[0], wavelengths[len(wavelengths)-1], len(w), in.Referencer)

	return &in, nil
}

func prepareReferencer(cube hsi.Hypercube, p Parameters, mask []int) (Referencer, error) {
	trim := func(name string, ref []float64) ([]float64, error) {
		if ref == nil {
			return nil, nil
		} else if len(ref) != cube.NumBands() {
			return nil, fmt.Errorf("%w: %s reference has %d samples, cube has %d bands", ErrReferenceMismatch,
				name, len(ref), cube.NumBands())
		}
		return pick(ref, mask), nil
	}

	white, err := trim("white", p.WhiteRef)
	if err != nil { return Referencer{}, err }
	black, err := trim("black", p.BlackRef)
	if err != nil { return Referencer{}, err }

	return NewReferencer(white, black)
}

func preparePost(p Parameters) (PostOptions, error) {
	opts := PostOptions{PerChannelContrast: p.PerChannelContrast}

	if p.ApplyColorTransform {
		if p.Responses.ColorTransformApplicable() {
			m, err := ecolor.GetColorTransform(p.ColorTransform)
			if err != nil {
				return opts, err
			}
			opts.ColorTransform = &m
		} else {
			log.Printf("Color transform only applies to CIE responses, skipping it for %s", p.Responses.Kind)
		}
	}

	if p.ApplyGammaEncoding {
		f, err := ecolor.GetGammaFunc(p.Gamma)
		if err != nil {
			return opts, err
		}
		opts.Gamma = f
	}

	return opts, nil
}

func (in *Integrator)State() State { return State(in.state.Load()) }
func (in *Integrator)Token() *CancelToken { return in.token }

func (in *Integrator)String() string {
	return fmt.Sprintf("Integrator[%s, %dx%d, %d bands, %s]", in.Kind, in.Cube.NumRows(), in.Cube.NumCols(),
		len(in.Mask), in.State())
}

// progressPercent is how far through the run we are once row `row` is
// done. A single-row cube is 100% done after its only row.
func progressPercent(row, rows int) int {
	if rows <= 1 {
		return 100
	}
	return int(math.Round(float64(row) / float64(rows-1) * 100.0))
}

// Run integrates every row, then post-processes. `progress` (which may
// be nil) is called with strictly increasing percentages, from
// whichever goroutine finished the row.
//
// A cancelled run returns a nil result and a nil error; a failed run
// returns the error. Neither leaves a partial image behind.
func (in *Integrator)Run(progress func(int)) (*Result, error) {
	if !in.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, fmt.Errorf("Integrator.Run: already %s", in.State())
	}
	if progress == nil {
		progress = func(int) {}
	}

	rows, cols := in.Cube.NumRows(), in.Cube.NumCols()
	raw := NewImage(cols, rows)
	tStart := time.Now()

	var completed bool
	var err error
	if in.Workers > 1 {
		completed, err = in.runParallel(raw, progress)
	} else {
		completed, err = in.runSequential(raw, progress)
	}

	switch {
	case err != nil:
		in.state.Store(int32(StateFailed))
		return nil, err
	case !completed:
		in.state.Store(int32(StateCancelled))
		log.Printf("Synthesis cancelled after %s", time.Since(tStart))
		return nil, nil
	}

	linear := raw.Copy()
	if in.Post.ColorTransform != nil {
		applyColorTransform(linear, *in.Post.ColorTransform)
	}
	img := raw.Copy()
	PostProcess(img, in.Post)
	in.state.Store(int32(StateCompleted))

	log.Printf("Synthesized %dx%d image in %s", cols, rows, time.Since(tStart))
	if in.Verbosity > 0 {
		log.Printf("%s", in.Timings)
		log.Printf("raw: %s", raw.Stats())
	}

	res := &Result{Image: img, Raw: raw, Linear: linear}
	for _, pt := range in.DebugPixels {
		log.Printf("%s", in.DescribePixel(res, pt))
	}

	return res, nil
}

func (in *Integrator)runSequential(raw *Image, progress func(int)) (bool, error) {
	rows := in.Cube.NumRows()
	last := -1
	for row:=0; row<rows; row++ {
		if in.token.Cancelled() {
			return false, nil
		}
		if err := in.integrateRow(row, raw); err != nil {
			return false, err
		}
		if pct := progressPercent(row, rows); pct > last {
			last = pct
			progress(pct)
		}
	}
	return true, nil
}

// runParallel hands rows out to a bounded set of goroutines. Rows can
// finish in any order, so progress comes from a count of completed
// rows rather than the row number.
func (in *Integrator)runParallel(raw *Image, progress func(int)) (bool, error) {
	rows := in.Cube.NumRows()
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(in.Workers)

	var done atomic.Int64
	var mu sync.Mutex
	last := -1

	for row:=0; row<rows; row++ {
		if in.token.Cancelled() || ctx.Err() != nil {
			break
		}
		row := row
		g.Go(func() error {
			if in.token.Cancelled() || ctx.Err() != nil {
				return nil
			}
			if err := in.integrateRow(row, raw); err != nil {
				return err
			}

			n := done.Add(1)
			mu.Lock()
			defer mu.Unlock()
			if pct := progressPercent(int(n-1), rows); pct > last {
				last = pct
				progress(pct)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return false, err
	}
	return done.Load() == int64(rows), nil
}

// integrateRow reads one row and writes its integrals into the image.
// Different rows touch disjoint parts of the image.
func (in *Integrator)integrateRow(row int, raw *Image) error {
	cols, bands := in.Cube.NumCols(), in.Cube.NumBands()

	tRead := time.Now()
	data, err := in.Cube.ReadRow(row)
	if err != nil {
		return fmt.Errorf("%w: row %d: %v", ErrReadFailure, row, err)
	} else if len(data) != cols*bands {
		return fmt.Errorf("%w: row %d: got %d samples, expected %d", ErrReadFailure, row, len(data), cols*bands)
	}
	in.Timings.Record(time.Since(tRead))

	n := len(in.Mask)
	spectrum  := make([]float64, n)
	integrand := make([]float64, n)
	out := [3][]float64{raw.Planes[0].Row(row), raw.Planes[1].Row(row), raw.Planes[2].Row(row)}

	for col:=0; col<cols; col++ {
		px := data[col*bands : (col+1)*bands]
		for i, b := range in.Mask {
			spectrum[i] = px[b]
		}
		in.Referencer.Apply(spectrum)

		for ch:=0; ch<3; ch++ {
			for i := range spectrum {
				integrand[i] = spectrum[i] * in.Weights[ch][i]
			}
			out[ch][col] = emath.Simpson(in.Wavelengths, integrand)
		}
	}

	return nil
}
