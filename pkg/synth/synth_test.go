package synth

import(
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/hsi-synth/pkg/ecolor"
	"github.com/abworrall/hsi-synth/pkg/emath"
	"github.com/abworrall/hsi-synth/pkg/hsi"
	"github.com/abworrall/hsi-synth/pkg/spectra"
)

const tolerance = 1e-9

func flatCurve(name string, lo, hi float64) spectra.Curve {
	return spectra.Curve{Name: name, Wavelengths: []float64{lo, (lo+hi)/2, hi}, Values: []float64{1, 1, 1}}
}

func flatSRF(lo, hi float64) spectra.ResponseSet {
	return spectra.ResponseSet{
		Kind:     spectra.KindSRF,
		Name:     "flat",
		Channels: [3]spectra.Curve{flatCurve("R", lo, hi), flatCurve("G", lo, hi), flatCurve("B", lo, hi)},
	}
}

// A sensor with three overlapping humps
func humpSRF() spectra.ResponseSet {
	w := []float64{400, 450, 500, 550, 600, 650, 700}
	return spectra.ResponseSet{
		Kind: spectra.KindSRF,
		Name: "humps",
		Channels: [3]spectra.Curve{
			{Name: "R", Wavelengths: w, Values: []float64{0, 0, 0.05, 0.2, 0.9, 1.0, 0.4}},
			{Name: "G", Wavelengths: w, Values: []float64{0, 0.1, 0.6, 1.0, 0.5, 0.1, 0}},
			{Name: "B", Wavelengths: w, Values: []float64{0.5, 1.0, 0.6, 0.1, 0, 0, 0}},
		},
	}
}

func grid(lo, step float64, n int) []float64 {
	w := make([]float64, n)
	for i := range w { w[i] = lo + step*float64(i) }
	return w
}

// varyingCube has a different, smooth spectrum at every pixel.
func varyingCube(rows, cols int, w []float64) *hsi.MemCube {
	mc := hsi.NewMemCube(rows, cols, 0, w)
	for r:=0; r<rows; r++ {
		for c:=0; c<cols; c++ {
			s := make([]float64, len(w))
			for b := range s {
				s[b] = 0.2 + 0.1*float64(r) + 0.05*float64(c) + 0.3*math.Sin(float64(b*(c+1))/7.0 + float64(r))
			}
			mc.Set(r, c, s)
		}
	}
	return mc
}

func hdrXYZ(v [3]float64) hdrcolor.XYZ { return hdrcolor.XYZ{X: v[0], Y: v[1], Z: v[2]} }

func constant(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s { s[i] = v }
	return s
}

func mustPrepare(t *testing.T, cube hsi.Hypercube, p Parameters, token *CancelToken) *Integrator {
	t.Helper()
	in, err := Prepare(cube, p, token)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return in
}

func mustRun(t *testing.T, in *Integrator) *Result {
	t.Helper()
	res, err := in.Run(nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	} else if res == nil {
		t.Fatalf("Run: no result, state %s", in.State())
	}
	return res
}

func TestEffectiveDomain(t *testing.T) {
	w := []float64{400, 450, 500, 550, 600}
	tests := []struct{
		lo, hi float64
		expect []int
		err    error
	}{
		{300, 800, []int{0, 1, 2, 3, 4}, nil},
		{450, 550, []int{1, 2, 3}, nil},
		{420, 580, []int{1, 2, 3}, nil},
		{700, 800, nil, ErrEmptySpectralOverlap},
		{300, 390, nil, ErrEmptySpectralOverlap},
		{540, 560, nil, ErrInsufficientSpectralSamples},
	}

	for i, test := range tests {
		mask, err := EffectiveDomain(w, test.lo, test.hi)
		if test.err != nil {
			if !errors.Is(err, test.err) {
				t.Errorf("[%d] expected %v, got %v", i, test.err, err)
			}
			continue
		} else if err != nil {
			t.Fatalf("[%d] %v", i, err)
		}
		if len(mask) != len(test.expect) {
			t.Fatalf("[%d] got %v, expected %v", i, mask, test.expect)
		}
		for j := range mask {
			if mask[j] != test.expect[j] {
				t.Errorf("[%d] got %v, expected %v", i, mask, test.expect)
			}
		}
	}
}

func TestNormalizeResponses(t *testing.T) {
	w := grid(400, 50, 5)
	illum := []float64{1, 1, 1, 1, 1}
	ch := [3][]float64{constant(5, 2), constant(5, 4), constant(5, 8)}

	// CIE: everything divided by the integral of Y (4*200)
	cie, err := normalizeResponses(spectra.KindCIE, ch, illum, w)
	if err != nil { t.Fatal(err) }
	for c, exp := range []float64{2.0/800, 4.0/800, 8.0/800} {
		if math.Abs(cie[c][0] - exp) > tolerance {
			t.Errorf("cie channel %d: got %g, expected %g", c, cie[c][0], exp)
		}
	}

	// SRF: each channel integrates to one
	srf, err := normalizeResponses(spectra.KindSRF, ch, illum, w)
	if err != nil { t.Fatal(err) }
	for c := range srf {
		if got := emath.Simpson(w, srf[c]); math.Abs(got - 1.0) > tolerance {
			t.Errorf("srf channel %d integrates to %g", c, got)
		}
	}

	// The input is untouched
	if ch[0][0] != 2 { t.Errorf("input was modified") }

	ch[1] = constant(5, 0)
	if _, err := normalizeResponses(spectra.KindCIE, ch, illum, w); !errors.Is(err, ErrDegenerateResponse) {
		t.Errorf("zero Y: expected ErrDegenerateResponse, got %v", err)
	}
}

func TestReferencer(t *testing.T) {
	r, err := NewReferencer([]float64{4, 4, 1, 2}, []float64{1, 1, 1, 3})
	if err != nil { t.Fatal(err) }

	s := []float64{2.5, 0.5, 5, 1}
	r.Apply(s)
	// (2.5-1)/3, clipped 0, saturated (divisor 0, signal left), clipped 0 then divisor<0
	for i, exp := range []float64{0.5, 0, 1, 0} {
		if math.Abs(s[i] - exp) > tolerance {
			t.Errorf("[%d] got %f, expected %f", i, s[i], exp)
		}
	}

	whiteOnly, _ := NewReferencer([]float64{2, 2}, nil)
	s = []float64{1, 3}
	whiteOnly.Apply(s)
	if s[0] != 0.5 || s[1] != 1 {
		t.Errorf("white only: %v", s)
	}

	if !(Referencer{}).IsNoop() {
		t.Errorf("zero value is not a no-op")
	}
	if _, err := NewReferencer([]float64{1, 2}, []float64{1}); !errors.Is(err, ErrReferenceMismatch) {
		t.Errorf("expected ErrReferenceMismatch, got %v", err)
	}
}

// A 3x3x5 cube of flat spectra, integrated against three flat curves,
// gives 1.0 everywhere; the image is constant, so contrast
// normalization leaves it alone.
func TestEndToEndFlat(t *testing.T) {
	cube := hsi.NewMemCube(3, 3, 0, []float64{450, 500, 550, 600, 650})
	cube.Fill(constant(5, 1.0))

	in := mustPrepare(t, cube, Parameters{Responses: flatSRF(400, 700), PerChannelContrast: true}, nil)
	if len(in.Mask) != 5 {
		t.Errorf("mask: %v", in.Mask)
	}

	res := mustRun(t, in)
	for y:=0; y<3; y++ {
		for x:=0; x<3; x++ {
			for ch, v := range res.Raw.Pixel(x, y) {
				if math.Abs(v - 1.0) > tolerance {
					t.Errorf("raw (%d,%d)[%d] = %f", x, y, ch, v)
				}
			}
			for ch, v := range res.Image.Pixel(x, y) {
				if math.Abs(v - 1.0) > tolerance {
					t.Errorf("image (%d,%d)[%d] = %f", x, y, ch, v)
				}
			}
		}
	}
	if in.State() != StateCompleted {
		t.Errorf("state %s", in.State())
	}
	if _, err := in.Run(nil); err == nil {
		t.Errorf("second Run was allowed")
	}
}

func TestSRFNormalizationInvariant(t *testing.T) {
	w := grid(420, 10, 29)
	cube := hsi.NewMemCube(2, 2, 0, w)
	cube.Fill(constant(len(w), 1.0))

	res := mustRun(t, mustPrepare(t, cube, Parameters{Responses: humpSRF()}, nil))
	for ch, v := range res.Raw.Pixel(1, 1) {
		if !(v > 0) || !emath.IsFinite(v) {
			t.Errorf("channel %d: %f", ch, v)
		}
		if math.Abs(v - 1.0) > 1e-6 {
			t.Errorf("channel %d: flat spectrum gave %f, expected 1", ch, v)
		}
	}
}

func TestDeterminism(t *testing.T) {
	w := grid(400, 5, 61)
	cube := varyingCube(7, 5, w)
	il := spectra.IlluminantA()

	p := Parameters{
		Responses:           spectra.CIE1931(),
		Illuminant:          il,
		ApplyColorTransform: true,
		ApplyGammaEncoding:  true,
	}

	r1 := mustRun(t, mustPrepare(t, cube, p, nil))
	r2 := mustRun(t, mustPrepare(t, cube, p, nil))
	p.Workers = 4
	r3 := mustRun(t, mustPrepare(t, cube, p, nil))

	for i, r := range []*Result{r2, r3} {
		mean, max, err := ImgDiff(r1.Image, r.Image)
		if err != nil || mean != 0 || max != 0 {
			t.Errorf("run %d differs: mean %g, max %g, %v", i+2, mean, max, err)
		}
	}
	if mean, _, _ := ImgDiff(r1.Raw, r1.Image); mean == 0 {
		t.Errorf("raw and post-processed images are identical")
	}
	if _, _, err := ImgDiff(r1.Image, NewImage(1, 1)); err == nil {
		t.Errorf("ImgDiff accepted mismatched images")
	}
}

func TestRadiometricReferencing(t *testing.T) {
	w := grid(450, 10, 21)
	cube := varyingCube(4, 4, w)

	white := image.Point{X: 3, Y: 2}
	black := image.Point{X: 0, Y: 1}
	wSpec := make([]float64, len(w))
	for i := range wSpec { wSpec[i] = 5.0 + math.Cos(float64(i)) }
	cube.Set(white.Y, white.X, wSpec)
	cube.Set(black.Y, black.X, constant(len(w), 0.05))

	whiteRef, err := ReferenceFromPixel(cube, white)
	if err != nil { t.Fatal(err) }
	blackRef, err := ReferenceFromPixel(cube, black)
	if err != nil { t.Fatal(err) }

	p := Parameters{Responses: humpSRF(), WhiteRef: whiteRef, BlackRef: blackRef}
	res := mustRun(t, mustPrepare(t, cube, p, nil))

	for ch, v := range res.Raw.Pixel(white.X, white.Y) {
		if math.Abs(v - 1.0) > 1e-6 {
			t.Errorf("white pixel channel %d = %f", ch, v)
		}
	}
	for ch, v := range res.Raw.Pixel(black.X, black.Y) {
		if math.Abs(v) > 1e-9 {
			t.Errorf("black pixel channel %d = %f", ch, v)
		}
	}
	// Everything else got clipped into [0,1] before integration
	for ch:=0; ch<3; ch++ {
		if min, max := res.Raw.Planes[ch].MinMax(); min < -1e-9 || max > 1+1e-6 {
			t.Errorf("channel %d range %f-%f", ch, min, max)
		}
	}

	p.WhiteRef = whiteRef[:3]
	if _, err := Prepare(cube, p, nil); !errors.Is(err, ErrReferenceMismatch) {
		t.Errorf("short reference: expected ErrReferenceMismatch, got %v", err)
	}
	if _, err := ReferenceFromPixel(cube, image.Point{X: 9, Y: 0}); !errors.Is(err, ErrReferenceMismatch) {
		t.Errorf("off-cube reference: expected ErrReferenceMismatch, got %v", err)
	}
}

func TestCancelBeforeRun(t *testing.T) {
	cube := varyingCube(5, 3, grid(400, 10, 31))
	token := NewCancelToken()
	in := mustPrepare(t, cube, Parameters{Responses: spectra.CIE1931()}, token)

	token.Cancel()
	token.Cancel()

	called := false
	res, err := in.Run(func(int) { called = true })
	if res != nil || err != nil {
		t.Errorf("cancelled run gave %v, %v", res, err)
	}
	if called || cube.RowsRead() != 0 {
		t.Errorf("cancelled run did work: progress=%v, rows=%d", called, cube.RowsRead())
	}
	if in.State() != StateCancelled {
		t.Errorf("state %s", in.State())
	}
}

func TestCancelMidRun(t *testing.T) {
	for _, workers := range []int{1, 3} {
		cube := varyingCube(40, 3, grid(400, 10, 31))
		token := NewCancelToken()
		in := mustPrepare(t, cube, Parameters{Responses: spectra.CIE1931(), Workers: workers}, token)

		res, err := in.Run(func(pct int) {
			if pct >= 25 { token.Cancel() }
		})
		if res != nil || err != nil {
			t.Errorf("workers=%d: cancelled run gave %v, %v", workers, res, err)
		}
		if n := cube.RowsRead(); n >= 40 {
			t.Errorf("workers=%d: read all %d rows despite cancel", workers, n)
		}
		if in.State() != StateCancelled {
			t.Errorf("workers=%d: state %s", workers, in.State())
		}
	}
}

func TestProgress(t *testing.T) {
	tests := []struct{
		rows, workers int
	}{
		{1, 1}, {2, 1}, {7, 1}, {250, 1}, {250, 8},
	}

	for _, test := range tests {
		cube := varyingCube(test.rows, 2, grid(400, 20, 16))
		in := mustPrepare(t, cube, Parameters{Responses: spectra.CIE1931(), Workers: test.workers}, nil)

		seen := []int{}
		if _, err := in.Run(func(pct int) { seen = append(seen, pct) }); err != nil {
			t.Fatal(err)
		}

		if len(seen) == 0 || seen[len(seen)-1] != 100 {
			t.Errorf("rows=%d: progress %v does not end at 100", test.rows, seen)
		}
		if len(seen) > 101 {
			t.Errorf("rows=%d: %d progress events", test.rows, len(seen))
		}
		for i:=1; i<len(seen); i++ {
			if seen[i] <= seen[i-1] {
				t.Errorf("rows=%d: progress not increasing: %v", test.rows, seen)
				break
			}
		}
	}

	if progressPercent(1, 3) != 50 || progressPercent(1, 4) != 33 || progressPercent(2, 4) != 67 {
		t.Errorf("progressPercent rounding")
	}
}

func TestPerChannelContrast(t *testing.T) {
	cube := varyingCube(6, 6, grid(400, 10, 31))
	for _, kind := range []string{"cie", "srf"} {
		p := Parameters{Responses: spectra.CIE1931(), ApplyColorTransform: true, PerChannelContrast: true}
		if kind == "srf" {
			p.Responses = humpSRF()
		}
		res := mustRun(t, mustPrepare(t, cube, p, nil))
		for ch:=0; ch<3; ch++ {
			min, max := res.Image.Planes[ch].MinMax()
			if min != 0 || math.Abs(max - 1.0) > 1e-12 {
				t.Errorf("%s channel %d: range %g-%g", kind, ch, min, max)
			}
		}
	}
}

func TestGlobalContrast(t *testing.T) {
	res := mustRun(t, mustPrepare(t, varyingCube(6, 6, grid(400, 10, 31)), Parameters{Responses: humpSRF()}, nil))

	min, max := math.Inf(1), math.Inf(-1)
	for ch:=0; ch<3; ch++ {
		cMin, cMax := res.Image.Planes[ch].MinMax()
		min, max = math.Min(min, cMin), math.Max(max, cMax)
	}
	if min != 0 || math.Abs(max - 1.0) > 1e-12 {
		t.Errorf("global range %g-%g", min, max)
	}
}

func TestDomainMismatchFailsFast(t *testing.T) {
	cube := varyingCube(3, 3, grid(900, 10, 20)) // 900-1090nm, no overlap with the CMFs
	_, err := Prepare(cube, Parameters{Responses: spectra.CIE1931()}, nil)
	if !errors.Is(err, ErrEmptySpectralOverlap) {
		t.Errorf("expected ErrEmptySpectralOverlap, got %v", err)
	}
	if cube.RowsRead() != 0 {
		t.Errorf("%d rows were read", cube.RowsRead())
	}

	// The illuminant's domain counts too
	il, _ := spectra.NewIlluminant("ir", []float64{800, 850, 900}, []float64{1, 1, 1})
	_, err = Prepare(varyingCube(2, 2, grid(400, 10, 31)), Parameters{Responses: spectra.CIE1931(), Illuminant: il}, nil)
	if !errors.Is(err, ErrEmptySpectralOverlap) {
		t.Errorf("illuminant mismatch: expected ErrEmptySpectralOverlap, got %v", err)
	}
}

func TestPreconditions(t *testing.T) {
	_, err := Prepare(hsi.NewMemCube(2, 2, 5, nil), Parameters{Responses: spectra.CIE1931()}, nil)
	if !errors.Is(err, ErrMissingWavelengths) {
		t.Errorf("expected ErrMissingWavelengths, got %v", err)
	}

	_, err = Prepare(varyingCube(2, 2, []float64{380, 600, 780}), Parameters{Responses: flatSRF(500, 700)}, nil)
	if !errors.Is(err, ErrInsufficientSpectralSamples) {
		t.Errorf("expected ErrInsufficientSpectralSamples, got %v", err)
	}

	p := Parameters{Responses: spectra.CIE1931(), ApplyGammaEncoding: true, Gamma: "wobbly"}
	if _, err := Prepare(varyingCube(2, 2, grid(400, 10, 31)), p, nil); err == nil {
		t.Errorf("unknown gamma accepted")
	}
}

type failingCube struct {
	*hsi.MemCube
	failAt int
}

func (fc failingCube)ReadRow(row int) ([]float64, error) {
	if row == fc.failAt {
		return nil, errors.New("disk on fire")
	}
	return fc.MemCube.ReadRow(row)
}

func TestReadFailure(t *testing.T) {
	for _, workers := range []int{1, 4} {
		cube := failingCube{varyingCube(10, 2, grid(400, 10, 31)), 6}
		in := mustPrepare(t, cube, Parameters{Responses: spectra.CIE1931(), Workers: workers}, nil)

		res, err := in.Run(nil)
		if !errors.Is(err, ErrReadFailure) {
			t.Errorf("workers=%d: expected ErrReadFailure, got %v", workers, err)
		}
		if res != nil {
			t.Errorf("workers=%d: failed run produced an image", workers)
		}
		if in.State() != StateFailed {
			t.Errorf("workers=%d: state %s", workers, in.State())
		}
	}
}

// The gamma curve uses an exponent of 0.416, not the 1/2.4 the sRGB
// standard gives; output must match images made by earlier versions.
func TestGammaReferenceExponent(t *testing.T) {
	img := NewImage(3, 1)
	for ch:=0; ch<3; ch++ {
		img.Planes[ch].Set(0, 0, 0)
		img.Planes[ch].Set(1, 0, 0.5)
		img.Planes[ch].Set(2, 0, 1)
	}

	gamma, _ := ecolor.GetGammaFunc("")
	PostProcess(img, PostOptions{Gamma: gamma})

	exp := 1.055 * math.Pow(0.5, 0.416) - 0.055
	if got := img.Planes[1].Get(1, 0); got != exp {
		t.Errorf("gamma(0.5) = %.12f, expected %.12f", got, exp)
	}
	if std := ecolor.GammaEncodeStandard(0.5); math.Abs(std - exp) < 1e-4 {
		t.Errorf("reference and standard curves agree (%f), exponent not in effect", std)
	}
	if got := img.Planes[0].Get(0, 0); got != 0 {
		t.Errorf("gamma(0) = %f", got)
	}
}

func TestColorTransform(t *testing.T) {
	// D65 white in XYZ is sRGB white
	img := NewImage(2, 1)
	img.SetPixel(0, 0, [3]float64{0.95047, 1.0, 1.08883})
	img.SetPixel(1, 0, [3]float64{0, 0, 0})

	m, _ := ecolor.GetColorTransform("srgb")
	applyColorTransform(img, m)
	for ch, v := range img.Pixel(0, 0) {
		if math.Abs(v - 1.0) > 1e-3 {
			t.Errorf("channel %d: %f", ch, v)
		}
	}
}

func TestCIEWhiteBalance(t *testing.T) {
	// A perfect reflector under E, through the CMFs and into sRGB, comes
	// out (nearly) neutral; under A it goes orange.
	w := grid(380, 10, 41)
	cube := hsi.NewMemCube(1, 1, 0, w)
	cube.Fill(constant(len(w), 1.0))

	rgb := func(il *spectra.Illuminant) [3]float64 {
		in := mustPrepare(t, cube, Parameters{Responses: spectra.CIE1931(), Illuminant: il}, nil)
		res := mustRun(t, in)
		xyz := res.Raw.Pixel(0, 0)
		out := ecolor.XYZToSRGB(hdrXYZ(xyz), ecolor.XYZ_to_linear_sRGBD65)
		return [3]float64{out.R, out.G, out.B}
	}

	e := rgb(nil)
	if math.Abs(e[1] - 1.0) > 0.1 {
		t.Errorf("flat spectrum under E: Y-derived green %f", e[1])
	}

	a := rgb(spectra.IlluminantA())
	if !(a[0] > a[2]) {
		t.Errorf("illuminant A not warmer than blue: %v", a)
	}
}

func TestConfig(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "cam.csv")
	os.WriteFile(csv, []byte("Wavelength,R,G,B\n400,0,0,1\n550,0,1,0\n700,1,0,0\n"), 0644)

	yml := []byte("mode: srf\nresponse: " + csv + "\nwhiteref: {x: 1, y: 0}\nperchannelcontrast: true\nworkers: 2\n")
	c, err := newConfigFromYaml(yml)
	if err != nil { t.Fatal(err) }
	if c.OutputPNG != "synth.png" || !c.ApplyGammaEncoding {
		t.Errorf("defaults lost: %+v", c)
	}

	cube := varyingCube(2, 2, grid(400, 10, 31))
	p, err := c.Parameters(cube)
	if err != nil { t.Fatal(err) }
	if p.Responses.Kind != spectra.KindSRF || !p.PerChannelContrast || p.Workers != 2 {
		t.Errorf("params: %s", p)
	}
	exp, _ := cube.ReadPixel(0, 1)
	if p.WhiteRef == nil || p.WhiteRef[4] != exp[4] || p.BlackRef != nil {
		t.Errorf("references: %v %v", p.WhiteRef, p.BlackRef)
	}

	c2, err := newConfigFromYaml([]byte(c.AsYaml()))
	if err != nil { t.Fatal(err) }
	if c2.Response != c.Response || c2.WhiteRef == nil || *c2.WhiteRef != *c.WhiteRef {
		t.Errorf("yaml round trip: %+v", c2)
	}

	c.Illuminant = "nowhere.csv"
	if _, err := c.Parameters(cube); err == nil {
		t.Errorf("missing illuminant accepted")
	}

	d := NewConfig()
	d.DebugPixels = []image.Point{{X: 1, Y: 1}}
	if p, err := d.Parameters(cube); err != nil || len(p.DebugPixels) != 1 {
		t.Errorf("debug pixels: %v %v", p.DebugPixels, err)
	}
}

func TestConfigSRFIgnoresDefaultResponse(t *testing.T) {
	cube := varyingCube(2, 2, grid(400, 10, 31))

	// Switching the mode alone keeps the CIE default response name; that
	// must turn into a request for a CSV, not a kind mismatch.
	c := NewConfig()
	c.Mode = "srf"
	_, err := c.Parameters(cube)
	if err == nil {
		t.Fatalf("SRF with no response file accepted")
	} else if strings.Contains(err.Error(), "holds") || !strings.Contains(err.Error(), "needs a response CSV") {
		t.Errorf("wrong complaint: %v", err)
	}

	csv := filepath.Join(t.TempDir(), "cam.csv")
	os.WriteFile(csv, []byte("Wavelength,R,G,B\n400,0,0,1\n550,0,1,0\n700,1,0,0\n"), 0644)
	c.Response = csv
	if p, err := c.Parameters(cube); err != nil || p.Responses.Kind != spectra.KindSRF {
		t.Errorf("SRF with a file: %v", err)
	}
}

func TestImageOutputs(t *testing.T) {
	res := mustRun(t, mustPrepare(t, varyingCube(4, 5, grid(400, 10, 31)),
		Parameters{Responses: spectra.CIE1931(), ApplyColorTransform: true, ApplyGammaEncoding: true}, nil))

	if b := res.Image.Bounds(); b.Dx() != 5 || b.Dy() != 4 {
		t.Fatalf("bounds %v", b)
	}

	dir := t.TempDir()
	for name, write := range map[string]func(string) error{
		"out.png":  res.Image.WritePNG,
		"out.tif":  res.Image.WriteTIFF,
		"out.hdr":  res.Linear.WriteToHDR,
	} {
		f := filepath.Join(dir, name)
		if err := write(f); err != nil {
			t.Errorf("%s: %v", name, err)
		} else if st, err := os.Stat(f); err != nil || st.Size() == 0 {
			t.Errorf("%s: nothing written", name)
		}
	}

	if err := Tonemap(res.Linear, "linear", filepath.Join(dir, "tmo")); err != nil {
		t.Errorf("tonemap: %v", err)
	}
	if _, err := SetupTonemapper(res.Linear, "fattal99"); err == nil {
		t.Errorf("unknown tonemapper accepted")
	}
}

func TestDiagnostics(t *testing.T) {
	rt := NewRowTimings()
	for _, d := range []time.Duration{0, 10*time.Microsecond, 20*time.Microsecond, time.Hour} {
		rt.Record(d)
	}
	if rt.Count() != 4 {
		t.Errorf("count %d, want 4", rt.Count())
	}
	if p := rt.Percentile(50); p < time.Microsecond || p > 25*time.Microsecond {
		t.Errorf("p50 %s out of range", p)
	}

	dir := t.TempDir()
	w := []float64{400, 500, 600}
	if err := PlotCurves("weights", filepath.Join(dir, "w.png"), w, []float64{0, 1, 0}, []float64{1, 0.5, 0}); err != nil {
		t.Errorf("PlotCurves: %v", err)
	}
	if err := PlotCurves("short", filepath.Join(dir, "x.png"), w[:1], []float64{1}); err == nil {
		t.Errorf("single wavelength accepted")
	}
}

func TestWriteToHDRRoundTrip(t *testing.T) {
	img := NewImage(3, 2)
	for y:=0; y<2; y++ {
		for x:=0; x<3; x++ {
			v := 0.5 + float64(x + 3*y) * 1.5 // goes well past 1.0
			img.SetPixel(x, y, [3]float64{v, v/2, v/4})
		}
	}
	if img.ColorModel() != hdrcolor.RGBModel {
		t.Fatalf("color model is not hdrcolor.RGBModel")
	}

	f := filepath.Join(t.TempDir(), "round.hdr")
	if err := img.WriteToHDR(f); err != nil {
		t.Fatalf("WriteToHDR: %v", err)
	}
	fh, err := os.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	decoded, err := rgbe.Decode(fh)
	if err != nil {
		t.Fatalf("rgbe.Decode: %v", err)
	}
	back, ok := decoded.(hdr.Image)
	if !ok {
		t.Fatalf("decoded %T is not an hdr.Image", decoded)
	} else if back.Bounds() != img.Bounds() {
		t.Fatalf("bounds %v, want %v", back.Bounds(), img.Bounds())
	}

	for y:=0; y<2; y++ {
		for x:=0; x<3; x++ {
			want := img.Pixel(x, y)
			r, g, b, _ := back.HDRAt(x, y).HDRRGBA()
			for ch, got := range []float64{r, g, b} {
				// RGBE keeps 8 bits of mantissa, shared across the pixel
				if math.Abs(got - want[ch]) > 0.01 * want[0] {
					t.Errorf("[%d,%d] ch%d: got %f, want %f", x, y, ch, got, want[ch])
				}
			}
		}
	}
}

func TestBandPreview(t *testing.T) {
	rows, cols := 2, 3
	cube := hsi.NewMemCube(rows, cols, 0, []float64{450, 550, 650, 750})
	for r:=0; r<rows; r++ {
		for c:=0; c<cols; c++ {
			s := make([]float64, 4)
			for b := range s { s[b] = float64(b*10 + r*3 + c) }
			cube.Set(r, c, s)
		}
	}

	img, err := BandPreview(cube, []int{3, 0, 1})
	if err != nil {
		t.Fatalf("BandPreview: %v", err)
	} else if cube.RowsRead() != int64(rows) {
		t.Errorf("read %d rows, want %d", cube.RowsRead(), rows)
	}
	// Every band ramps over r*3+c, so each stretched channel is (3r+c)/5
	for r:=0; r<rows; r++ {
		for c:=0; c<cols; c++ {
			want := ecolor.GammaEncodeReference(float64(3*r + c) / 5.0)
			for ch, got := range img.Pixel(c, r) {
				if math.Abs(got - want) > tolerance {
					t.Errorf("[%d,%d] ch%d = %f, want %f", c, r, ch, got, want)
				}
			}
		}
	}

	if _, err := BandPreview(cube, []int{2}); err != nil {
		t.Errorf("grayscale preview: %v", err)
	}
	if _, err := BandPreview(cube, []int{0, 1}); err == nil {
		t.Errorf("two bands accepted")
	}
	if _, err := BandPreview(cube, []int{0, 1, 4}); !errors.Is(err, hsi.ErrOutOfBounds) {
		t.Errorf("band 4 of 4: %v", err)
	}

	if got := NearestBands(cube.Wavelengths(), 640, 550, 460); len(got) != 3 || got[0] != 2 || got[1] != 1 || got[2] != 0 {
		t.Errorf("NearestBands %v", got)
	}
	if NearestBands(nil, 550) != nil {
		t.Errorf("NearestBands with no wavelengths")
	}
}

func TestDescribePixel(t *testing.T) {
	pt := image.Point{X: 2, Y: 1}
	in := mustPrepare(t, varyingCube(3, 4, grid(400, 10, 31)),
		Parameters{Responses: spectra.CIE1931(), ApplyColorTransform: true, DebugPixels: []image.Point{pt}}, nil)
	res := mustRun(t, in)

	// The single-pixel path must agree with the whole-image transform
	rgb := ecolor.XYZToSRGB(hdrXYZ(res.Raw.Pixel(pt.X, pt.Y)), ecolor.XYZ_to_linear_sRGBD65)
	lin := res.Linear.Pixel(pt.X, pt.Y)
	for ch, got := range []float64{rgb.R, rgb.G, rgb.B} {
		if math.Abs(got - lin[ch]) > 1e-12 {
			t.Errorf("ch%d: per-pixel %f, whole image %f", ch, got, lin[ch])
		}
	}

	desc := in.DescribePixel(res, pt)
	raw := res.Raw.Pixel(pt.X, pt.Y)
	for _, want := range []string{"(2,1)", fmt.Sprintf("X=%.6f", raw[0]), "linear sRGB", "final"} {
		if !strings.Contains(desc, want) {
			t.Errorf("%q does not mention %q", desc, want)
		}
	}
	if desc := in.DescribePixel(res, image.Point{X: 4, Y: 0}); !strings.Contains(desc, "not in the image") {
		t.Errorf("out of bounds: %q", desc)
	}

	srf := mustPrepare(t, varyingCube(2, 2, grid(400, 10, 31)), Parameters{Responses: humpSRF()}, nil)
	if desc := srf.DescribePixel(mustRun(t, srf), image.Point{}); strings.Contains(desc, "sRGB") {
		t.Errorf("SRF pixel described as sRGB: %q", desc)
	}
}
