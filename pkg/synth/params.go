package synth

import(
	"fmt"
	"image"

	"github.com/abworrall/hsi-synth/pkg/hsi"
	"github.com/abworrall/hsi-synth/pkg/spectra"
)

// Parameters is everything one synthesis request needs. Build a fresh
// one per request; Prepare copies what it uses, so it is safe to reuse
// afterwards.
type Parameters struct {
	Responses           spectra.ResponseSet
	Illuminant          *spectra.Illuminant // nil: flat, equal-energy

	WhiteRef            []float64 // one sample per cube band, or nil
	BlackRef            []float64 // one sample per cube band, or nil

	ApplyColorTransform bool      // only meaningful for CIE responses
	ColorTransform      string    // see ecolor.ListColorTransforms(); "" means srgb
	ApplyGammaEncoding  bool
	Gamma               string    // "" or "reference" (0.416), or "standard"
	PerChannelContrast  bool

	Workers             int       // rows integrated concurrently; <=1 means sequential
	Verbosity           int
	DebugPixels         []image.Point // logged in detail once the run completes
}

func (p Parameters)String() string {
	return fmt.Sprintf("Parameters{%s, illum=%s, white=%v, black=%v, xform=%v, gamma=%v, perchan=%v, workers=%d}",
		p.Responses, illuminantName(p.Illuminant), p.WhiteRef != nil, p.BlackRef != nil,
		p.ApplyColorTransform, p.ApplyGammaEncoding, p.PerChannelContrast, p.Workers)
}

func illuminantName(il *spectra.Illuminant) string {
	if il == nil { return "E" }
	return il.Name
}

// ReferenceFromPixel reads the spectrum of the pixel at pt (x=col,
// y=row) for use as a white or black reference.
func ReferenceFromPixel(cube hsi.Hypercube, pt image.Point) ([]float64, error) {
	spectrum, err := cube.ReadPixel(pt.Y, pt.X)
	if err != nil {
		return nil, fmt.Errorf("%w: reference pixel %v: %v", ErrReferenceMismatch, pt, err)
	}
	return spectrum, nil
}
