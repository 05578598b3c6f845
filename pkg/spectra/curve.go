package spectra

import(
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/abworrall/hsi-synth/pkg/emath"
)

// A Curve is a function of wavelength, sampled on its own grid of
// wavelengths (nm). Response curves, illuminants and reference spectra
// are all Curves. Treat it as immutable once loaded.
type Curve struct {
	Name         string
	Wavelengths  []float64  // strictly increasing
	Values       []float64
}

func NewCurve(name string, wavelengths, values []float64) (Curve, error) {
	c := Curve{Name: name, Wavelengths: wavelengths, Values: values}
	return c, c.Validate()
}

func (c Curve)String() string {
	if len(c.Wavelengths) == 0 {
		return fmt.Sprintf("%s[empty]", c.Name)
	}
	return fmt.Sprintf("%s[%d samples, %.1f-%.1fnm]", c.Name, c.Len(), c.Min(), c.Max())
}

func (c Curve)Len() int      { return len(c.Wavelengths) }
func (c Curve)Min() float64  { return c.Wavelengths[0] }
func (c Curve)Max() float64  { return c.Wavelengths[len(c.Wavelengths)-1] }

func (c Curve)Validate() error {
	if len(c.Wavelengths) != len(c.Values) {
		return fmt.Errorf("curve %s: %d wavelengths but %d values", c.Name, len(c.Wavelengths), len(c.Values))
	} else if len(c.Wavelengths) < 2 {
		return fmt.Errorf("curve %s: need at least two samples, have %d", c.Name, len(c.Wavelengths))
	} else if !emath.StrictlyIncreasing(c.Wavelengths) {
		return fmt.Errorf("curve %s: wavelengths not strictly increasing", c.Name)
	}
	for i, v := range c.Values {
		if !emath.IsFinite(v) {
			return fmt.Errorf("curve %s: value at %.1fnm is not finite", c.Name, c.Wavelengths[i])
		}
	}
	return nil
}

// Covers reports whether [lo,hi] lies inside the curve's domain.
func (c Curve)Covers(lo, hi float64) bool {
	return lo >= c.Min() && hi <= c.Max()
}

// Resample evaluates a natural cubic spline through the curve at each
// of the target wavelengths. There is no extrapolation; targets
// outside the curve's domain are an error.
func (c Curve)Resample(target []float64) ([]float64, error) {
	if len(target) == 0 {
		return []float64{}, nil
	}
	if !c.Covers(target[0], target[len(target)-1]) {
		return nil, fmt.Errorf("resample %s: target %.1f-%.1fnm outside domain %.1f-%.1fnm",
			c.Name, target[0], target[len(target)-1], c.Min(), c.Max())
	}

	var spline interp.NaturalCubic
	if err := spline.Fit(c.Wavelengths, c.Values); err != nil {
		return nil, fmt.Errorf("resample %s: %v", c.Name, err)
	}

	out := make([]float64, len(target))
	for i, w := range target {
		out[i] = spline.Predict(w)
	}
	return out, nil
}

// PeakNormalized returns a copy whose largest value is 1.0.
func (c Curve)PeakNormalized() (Curve, error) {
	peak := floats.Max(c.Values)
	if peak <= 0 {
		return c, fmt.Errorf("curve %s: peak value %f, can't normalize", c.Name, peak)
	}
	vals := make([]float64, len(c.Values))
	floats.ScaleTo(vals, 1.0 / peak, c.Values)
	return Curve{Name: c.Name, Wavelengths: c.Wavelengths, Values: vals}, nil
}
