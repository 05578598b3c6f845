package spectra

import(
	"fmt"
	"math"
)

// An Illuminant is the spectral power distribution of the light
// source lighting the scene. A nil *Illuminant means a flat,
// equal-energy light (CIE illuminant E).
type Illuminant struct {
	Curve
}

func NewIlluminant(name string, wavelengths, intensities []float64) (*Illuminant, error) {
	c, err := NewCurve(name, wavelengths, intensities)
	if err != nil {
		return nil, err
	}
	return &Illuminant{Curve: c}, nil
}

// Weights resamples the illuminant onto the target wavelengths, after
// normalizing it so that its peak intensity is 1.0. A nil illuminant
// gives weights of 1.0 everywhere.
func (il *Illuminant)Weights(target []float64) ([]float64, error) {
	if il == nil {
		w := make([]float64, len(target))
		for i := range w { w[i] = 1.0 }
		return w, nil
	}

	norm, err := il.Curve.PeakNormalized()
	if err != nil {
		return nil, fmt.Errorf("illuminant: %v", err)
	}
	return norm.Resample(target)
}

// IlluminantA is the CIE standard illuminant A (a 2856K tungsten
// filament), computed from the Planckian formula in CIE 15:2004,
// normalized to 100 at 560nm. Sampled every 5nm from 300nm to 830nm.
func IlluminantA() *Illuminant {
	const c2 = 1.435e7 // nm.K, second radiation constant as used by the CIE for illuminant A
	const T  = 2848.0

	wls, vals := []float64{}, []float64{}
	for wl := 300.0; wl <= 830.0; wl += 5.0 {
		v := 100.0 * math.Pow(560.0/wl, 5) * (math.Exp(c2/(T*560.0)) - 1.0) / (math.Exp(c2/(T*wl)) - 1.0)
		wls  = append(wls, wl)
		vals = append(vals, v)
	}

	return &Illuminant{Curve: Curve{Name: "A", Wavelengths: wls, Values: vals}}
}
