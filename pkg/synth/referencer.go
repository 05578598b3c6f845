package synth

import(
	"fmt"
)

// A Referencer does two-point radiometric calibration of a spectrum,
// so that the black reference maps to 0 and the white one to 1. Both
// references are optional; the zero value does nothing.
type Referencer struct {
	Black   []float64 // subtracted, then clipped at 0
	Divisor []float64 // white-black (or just white); divided, then clipped at 1
}

// NewReferencer takes references already trimmed to the effective
// domain; either may be nil.
func NewReferencer(white, black []float64) (Referencer, error) {
	r := Referencer{}
	if black != nil {
		r.Black = append([]float64{}, black...)
	}
	if white != nil {
		r.Divisor = append([]float64{}, white...)
		if black != nil {
			if len(black) != len(white) {
				return r, fmt.Errorf("%w: white has %d samples, black %d", ErrReferenceMismatch, len(white), len(black))
			}
			for i := range r.Divisor {
				r.Divisor[i] -= black[i]
			}
		}
	}
	return r, nil
}

func (r Referencer)IsNoop() bool { return r.Black == nil && r.Divisor == nil }

func (r Referencer)String() string {
	return fmt.Sprintf("Referencer{black:%v, white:%v}", r.Black != nil, r.Divisor != nil)
}

// Apply calibrates the spectrum in place. A divisor sample that is zero
// or negative (white no brighter than black) saturates: the result is
// 1 if there is any signal left, else 0.
func (r Referencer)Apply(spectrum []float64) {
	if r.Black != nil {
		for i := range spectrum {
			spectrum[i] -= r.Black[i]
			if spectrum[i] < 0 { spectrum[i] = 0 }
		}
	}

	if r.Divisor != nil {
		for i := range spectrum {
			d := r.Divisor[i]
			switch {
			case d > 0:
				spectrum[i] /= d
			case spectrum[i] > 0:
				spectrum[i] = 1
			default:
				spectrum[i] = 0
			}
			if spectrum[i] > 1 { spectrum[i] = 1 }
		}
	}
}
