package synth

import(
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/abworrall/hsi-synth/pkg/ecolor"
	"github.com/abworrall/hsi-synth/pkg/emath"
)

// PostOptions says which post-processing steps run. Contrast
// normalization always runs; the only choice is its scope.
type PostOptions struct {
	ColorTransform     *emath.Mat3      // nil to skip
	PerChannelContrast bool
	Gamma              ecolor.GammaFunc // nil to skip
}

// PostProcess turns a raw image into a displayable one, in place, in
// this order: color transform, contrast normalization, gamma encoding.
//
// If the contrast range is empty (every value identical, in the
// channel or the whole image, depending on mode) that data is left as
// it is.
func PostProcess(img *Image, opts PostOptions) {
	if opts.ColorTransform != nil {
		applyColorTransform(img, *opts.ColorTransform)
	}

	if opts.PerChannelContrast {
		for ch:=0; ch<3; ch++ {
			min, max := img.Planes[ch].MinMax()
			if !img.Planes[ch].Rescale(min, max) {
				log.Printf("PostProcess: channel %d is constant (%f), contrast left unchanged", ch, min)
			}
		}
	} else {
		min, max := math.Inf(1), math.Inf(-1)
		for ch:=0; ch<3; ch++ {
			cMin, cMax := img.Planes[ch].MinMax()
			min, max = math.Min(min, cMin), math.Max(max, cMax)
		}
		for ch:=0; ch<3; ch++ {
			if !img.Planes[ch].Rescale(min, max) {
				log.Printf("PostProcess: image is constant (%f), contrast left unchanged", min)
				break
			}
		}
	}

	if opts.Gamma != nil {
		for ch:=0; ch<3; ch++ {
			img.Planes[ch].Apply(opts.Gamma)
		}
	}
}

// applyColorTransform multiplies the 3xN image by the matrix.
func applyColorTransform(img *Image, m emath.Mat3) {
	n := img.Size()
	if n == 0 { return }

	data := mat.NewDense(3, n, nil)
	for ch:=0; ch<3; ch++ {
		data.SetRow(ch, img.Planes[ch].Values())
	}

	var out mat.Dense
	out.Mul(m.Dense(), data)

	for ch:=0; ch<3; ch++ {
		mat.Row(img.Planes[ch].Values(), ch, &out)
	}
}
