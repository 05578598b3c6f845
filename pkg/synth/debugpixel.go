package synth

import(
	"fmt"
	"image"

	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/hsi-synth/pkg/ecolor"
	"github.com/abworrall/hsi-synth/pkg/spectra"
)

// DescribePixel follows one pixel through a completed run: the raw
// integrals, the linear sRGB they amount to (CIE responses only), and
// the final display value.
func (in *Integrator)DescribePixel(res *Result, pt image.Point) string {
	if res == nil || !pt.In(res.Raw.Bounds()) {
		return fmt.Sprintf("pixel %v: not in the image", pt)
	}

	names := in.Kind.ChannelNames()
	raw := res.Raw.Pixel(pt.X, pt.Y)
	str := fmt.Sprintf("pixel %v: raw %s=%.6f %s=%.6f %s=%.6f", pt, names[0], raw[0], names[1], raw[1],
		names[2], raw[2])

	if in.Kind == spectra.KindCIE {
		m := ecolor.XYZ_to_linear_sRGBD65
		if in.Post.ColorTransform != nil {
			m = *in.Post.ColorTransform
		}
		rgb := ecolor.XYZToSRGB(hdrcolor.XYZ{X: raw[0], Y: raw[1], Z: raw[2]}, m)
		str += fmt.Sprintf(", linear sRGB %.6f,%.6f,%.6f", rgb.R, rgb.G, rgb.B)
	}

	out := res.Image.Pixel(pt.X, pt.Y)
	return str + fmt.Sprintf(", final %.6f,%.6f,%.6f", out[0], out[1], out[2])
}
