package ecolor

import(
	"fmt"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/hsi-synth/pkg/emath"
)

// All the matrices here map a tristimulus XYZ value into linear sRGB
// (i.e. before any gamma encoding).
var(
	// Translates XYZ(D65) to sRGB(D65). This is the matrix everyone
	// quotes, and the default.
	// http://www.brucelindbloom.com/index.html?Eqn_RGB_XYZ_Matrix.html, first table
	XYZ_to_linear_sRGBD65 = emath.Mat3{
		 3.2404542, -1.5371385, -0.4985314,
		-0.9692660,  1.8760108,  0.0415560,
		 0.0556434, -0.2040259,  1.0572252,
	}

	// Translates XYZ(D50) to sRGB(D65). Bruce Lindbloom's second table;
	// it bundles in the Bradford chromatic adaptation from D50 to D65,
	// which is what you want if the illuminant was D50.
	XYZD50_to_linear_sRGBD65 = emath.Mat3{
		 3.1338561, -1.6168667, -0.4906146,
		-0.9787684,  1.9161415,  0.0334540,
		 0.0719453, -0.2289914,  1.4052427,
	}

	ColorTransforms = map[string]emath.Mat3{
		"srgb":     XYZ_to_linear_sRGBD65,
		"srgb-d50": XYZD50_to_linear_sRGBD65,
	}
)

const(
	// The synthesizer has always used 0.416, not quite the 1/2.4 from
	// the sRGB standard; images are expected to match older output.
	ReferenceGammaExponent = 0.416
	StandardGammaExponent  = 1.0 / 2.4
)

func ListColorTransforms() string {
	names := []string{}
	for name := range ColorTransforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%v", names)
}

func GetColorTransform(name string) (emath.Mat3, error) {
	if name == "" {
		name = "srgb"
	}
	if m, exists := ColorTransforms[name]; exists {
		return m, nil
	}
	return emath.Mat3{}, fmt.Errorf("no color transform named '%s', wanted %s", name, ListColorTransforms())
}

// A GammaFunc encodes a linear channel value in [0,1].
type GammaFunc func(float64) float64

// GammaEncodeReference is the piecewise sRGB encoding, using the
// exponent the synthesizer has always used.
func GammaEncodeReference(f float64) float64 {
	return emath.GammaEncode_F64(f, ReferenceGammaExponent)
}

// GammaEncodeStandard is the exact sRGB companding curve.
func GammaEncodeStandard(f float64) float64 {
	return colorful.LinearRgb(f, f, f).R
}

func GetGammaFunc(name string) (GammaFunc, error) {
	switch name {
	case "", "reference": return GammaEncodeReference, nil
	case "standard":      return GammaEncodeStandard, nil
	default:
		return nil, fmt.Errorf("no gamma curve named '%s', wanted [reference standard]", name)
	}
}

// XYZToSRGB applies one of the matrices above to a single color.
func XYZToSRGB(xyz hdrcolor.XYZ, m emath.Mat3) hdrcolor.RGB {
	rgb := m.Apply(emath.Vec3{xyz.X, xyz.Y, xyz.Z})
	return hdrcolor.RGB{R:rgb[0], G:rgb[1], B:rgb[2]}
}

// ToLDR turns an unbounded RGB into something that can go in a PNG.
// This is one of the few places where clipping happens.
func ToLDR(rgb hdrcolor.RGB) colorful.Color {
	return colorful.Color{R:rgb.R, G:rgb.G, B:rgb.B}.Clamped()
}
