package synth

import(
	"fmt"
	"math"

	"github.com/abworrall/hsi-synth/pkg/ecolor"
	"github.com/abworrall/hsi-synth/pkg/hsi"
)

// BandPreview builds a false-color image straight from cube bands, with
// no spectral integration; handy for seeing what is in a cube before
// deciding how to synthesize it. `bands` holds three band indices (for
// R, G and B) or a single one for grayscale. Each channel is stretched
// to its own range, then gamma encoded.
func BandPreview(cube hsi.Hypercube, bands []int) (*Image, error) {
	var rgb [3]int
	switch len(bands) {
	case 1: rgb = [3]int{bands[0], bands[0], bands[0]}
	case 3: copy(rgb[:], bands)
	default:
		return nil, fmt.Errorf("BandPreview: wanted 1 or 3 bands, got %d", len(bands))
	}
	nb := cube.NumBands()
	for _, b := range rgb {
		if b < 0 || b >= nb {
			return nil, fmt.Errorf("%w: preview band %d, cube has %d", hsi.ErrOutOfBounds, b, nb)
		}
	}

	img := NewImage(cube.NumCols(), cube.NumRows())
	for row:=0; row<cube.NumRows(); row++ {
		data, err := cube.ReadRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: preview row %d: %v", ErrReadFailure, row, err)
		}
		for ch:=0; ch<3; ch++ {
			out := img.Planes[ch].Row(row)
			for col := range out {
				out[col] = data[col*nb + rgb[ch]]
			}
		}
	}

	PostProcess(img, PostOptions{PerChannelContrast: true, Gamma: ecolor.GammaEncodeReference})
	return img, nil
}

// NearestBands returns, for each target wavelength, the index of the
// band closest to it. Cubes with no default bands in their header get
// previewed at roughly red, green and blue this way.
func NearestBands(w []float64, targets ...float64) []int {
	if len(w) == 0 { return nil }
	out := make([]int, len(targets))
	for i, t := range targets {
		best := 0
		for b := range w {
			if math.Abs(w[b] - t) < math.Abs(w[best] - t) {
				best = b
			}
		}
		out[i] = best
	}
	return out
}
