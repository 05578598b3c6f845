package spectra

import(
	"fmt"
	"math"
)

// Kind tags a ResponseSet. The two kinds get integrated the same way,
// but differ in how the curves are normalized, and in whether a color
// space transform makes sense on the output.
type Kind int

const(
	KindCIE Kind = iota // CIE 1931 color matching functions; output is XYZ
	KindSRF             // A sensor's spectral response functions; output is RGB
)

var(
	cieChannels = [3]string{"X", "Y", "Z"}
	srfChannels = [3]string{"R", "G", "B"}
)

func (k Kind)String() string {
	switch k {
	case KindCIE: return "cie"
	case KindSRF: return "srf"
	default:      return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "cie", "CIE": return KindCIE, nil
	case "srf", "SRF": return KindSRF, nil
	default:
		return KindCIE, fmt.Errorf("no response kind named '%s', wanted [cie srf]", s)
	}
}

// ChannelNames returns the CSV column names for the three channels.
func (k Kind)ChannelNames() [3]string {
	if k == KindSRF {
		return srfChannels
	}
	return cieChannels
}

// SharedNormalization is true when all three channels get divided by
// the same scalar (the integral of Y), which preserves the relative
// weighting the CIE standard observer defines. SRF channels are each
// normalized independently.
func (k Kind)SharedNormalization() bool  { return k == KindCIE }

// ColorTransformApplicable is true when the output is XYZ, so it makes
// sense to transform it into sRGB.
func (k Kind)ColorTransformApplicable() bool { return k == KindCIE }

// A ResponseSet holds the three response curves that turn a spectrum into
// an output pixel.
type ResponseSet struct {
	Kind
	Name      string
	Channels  [3]Curve
}

func NewResponseSet(kind Kind, name string, channels [3]Curve) (ResponseSet, error) {
	rs := ResponseSet{Kind: kind, Name: name, Channels: channels}
	return rs, rs.Validate()
}

func (rs ResponseSet)String() string {
	lo, hi := rs.Domain()
	return fmt.Sprintf("%s(%s) %.1f-%.1fnm", rs.Name, rs.Kind, lo, hi)
}

func (rs ResponseSet)Validate() error {
	for i, c := range rs.Channels {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("response set %s, channel %s: %v", rs.Name, rs.Kind.ChannelNames()[i], err)
		}
	}
	return nil
}

// Domain is the wavelength range over which all three channels are defined.
func (rs ResponseSet)Domain() (float64, float64) {
	lo, hi := math.Inf(-1), math.Inf(1)
	for _, c := range rs.Channels {
		if len(c.Wavelengths) == 0 { continue }
		lo = math.Max(lo, c.Min())
		hi = math.Min(hi, c.Max())
	}
	return lo, hi
}
