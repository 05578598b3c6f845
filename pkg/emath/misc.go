package emath

import(
	"math"

	"gonum.org/v1/gonum/integrate"
)

// Some functions that only operate on basic types, that are useful

// Simpson integrates the samples `f`, taken at the (strictly
// increasing) locations `x`, using Simpson's rule. gonum needs at
// least three samples for that; with exactly two we fall back to the
// trapezoid rule, which is what Simpson degrades to anyway.
func Simpson(x, f []float64) float64 {
	switch len(x) {
	case 0, 1: return 0.0
	case 2:    return integrate.Trapezoidal(x, f)
	default:   return integrate.Simpsons(x, f)
	}
}

// StrictlyIncreasing reports whether every value is larger than the one before it.
func StrictlyIncreasing(x []float64) bool {
	for i:=1; i<len(x); i++ {
		if !(x[i] > x[i-1]) {
			return false
		}
	}
	return true
}

func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
// `f` is assumed to be in the range [0,1]. The sRGB standard uses an
// exponent of 1/2.4.
func GammaEncode_F64(f, exponent float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055 * math.Pow(f, exponent) - 0.055
}
