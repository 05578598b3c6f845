package synth

import(
	"fmt"
	"math"

	"github.com/abworrall/hsi-synth/pkg/emath"
	"github.com/abworrall/hsi-synth/pkg/spectra"
)

// EffectiveDomain returns the indices of the bands in `w` that lie
// inside [lo,hi]. Everything downstream (curves, illuminant, reference
// spectra, the integration variable) is restricted to these bands.
func EffectiveDomain(w []float64, lo, hi float64) ([]int, error) {
	if len(w) == 0 {
		return nil, ErrMissingWavelengths
	}

	from := math.Max(w[0], lo)
	to   := math.Min(w[len(w)-1], hi)

	mask := []int{}
	for i, wl := range w {
		if wl >= from && wl <= to {
			mask = append(mask, i)
		}
	}

	switch len(mask) {
	case 0:
		return nil, fmt.Errorf("%w: cube %.1f-%.1fnm, curves %.1f-%.1fnm", ErrEmptySpectralOverlap,
			w[0], w[len(w)-1], lo, hi)
	case 1:
		return nil, fmt.Errorf("%w: only %.1fnm", ErrInsufficientSpectralSamples, w[mask[0]])
	}
	return mask, nil
}

func pick(vals []float64, mask []int) []float64 {
	out := make([]float64, len(mask))
	for i, idx := range mask {
		out[i] = vals[idx]
	}
	return out
}

// normalizeResponses divides the resampled channels so that they
// integrate (against the illuminant) to 1. CIE sets share one divisor,
// the integral of Y; SRF channels each get their own.
func normalizeResponses(kind spectra.Kind, channels [3][]float64, illum, w []float64) ([3][]float64, error) {
	integral := func(ch int) (float64, error) {
		f := make([]float64, len(w))
		for i := range w {
			f[i] = channels[ch][i] * illum[i]
		}
		k := emath.Simpson(w, f)
		if k == 0 || !emath.IsFinite(k) {
			return 0, fmt.Errorf("%w: channel %s, integral %f", ErrDegenerateResponse, kind.ChannelNames()[ch], k)
		}
		return k, nil
	}

	var k [3]float64
	if kind.SharedNormalization() {
		ky, err := integral(1)
		if err != nil { return channels, err }
		k = [3]float64{ky, ky, ky}
	} else {
		for ch:=0; ch<3; ch++ {
			var err error
			if k[ch], err = integral(ch); err != nil {
				return channels, err
			}
		}
	}

	var out [3][]float64
	for ch:=0; ch<3; ch++ {
		out[ch] = make([]float64, len(w))
		for i := range w {
			out[ch][i] = channels[ch][i] / k[ch]
		}
	}
	return out, nil
}
