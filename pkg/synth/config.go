package synth

import(
	"fmt"
	"image"
	"log"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/hsi-synth/pkg/hsi"
	"github.com/abworrall/hsi-synth/pkg/spectra"
)

// Config is the user-facing description of a synthesis run; it gets
// loaded from YAML, overridden by flags, and turned into Parameters
// once the cube is open.
type Config struct {
	Verbosity           int

	Mode                string        // cie | srf
	Response            string        // a preset name, or a CSV file
	Illuminant          string        // a preset name, a CSV file, or "" for flat

	WhiteRef            *image.Point  `yaml:",omitempty"` // pixel (x=col, y=row) to sample white from
	BlackRef            *image.Point  `yaml:",omitempty"`

	ApplyColorTransform bool
	ColorTransform      string
	ApplyGammaEncoding  bool
	Gamma               string
	PerChannelContrast  bool

	Workers             int
	DebugPixels         []image.Point `yaml:",omitempty"` // pixels to log in detail

	OutputPNG           string
	OutputHDR           string
	OutputTIFF          string
	Tonemapper          string        // "" for none, a name, or "all"
	OutputPreview       string        `yaml:",omitempty"` // false-color PNG straight from cube bands
}

func NewConfig() Config {
	return Config{
		Mode:                "cie",
		Response:            "cie1931",
		ApplyColorTransform: true,
		ApplyGammaEncoding:  true,
		Workers:             1,
		OutputPNG:           "synth.png",
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

func LoadConfig(filename string) (Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config read %s: %v", filename, err)
	}
	c, err := newConfigFromYaml(contents)
	if err != nil {
		return c, fmt.Errorf("config parse %s: %v", filename, err)
	}
	return c, nil
}

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Printf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

// Parameters resolves the names in the config (presets, files, pixel
// locations) against the cube.
func (c Config)Parameters(cube hsi.Hypercube) (Parameters, error) {
	kind, err := spectra.ParseKind(c.Mode)
	if err != nil {
		return Parameters{}, err
	}
	// SRF curves have to come from the user; the default CIE preset would be wrong for them.
	response := c.Response
	if kind == spectra.KindSRF && response == "cie1931" {
		response = ""
	}
	responses, err := spectra.GetResponseSet(response, kind)
	if err != nil {
		return Parameters{}, err
	}
	illum, err := spectra.GetIlluminant(c.Illuminant)
	if err != nil {
		return Parameters{}, err
	}

	p := Parameters{
		Responses:           responses,
		Illuminant:          illum,
		ApplyColorTransform: c.ApplyColorTransform,
		ColorTransform:      c.ColorTransform,
		ApplyGammaEncoding:  c.ApplyGammaEncoding,
		Gamma:               c.Gamma,
		PerChannelContrast:  c.PerChannelContrast,
		Workers:             c.Workers,
		Verbosity:           c.Verbosity,
		DebugPixels:         c.DebugPixels,
	}

	if c.WhiteRef != nil {
		if p.WhiteRef, err = ReferenceFromPixel(cube, *c.WhiteRef); err != nil {
			return p, err
		}
	}
	if c.BlackRef != nil {
		if p.BlackRef, err = ReferenceFromPixel(cube, *c.BlackRef); err != nil {
			return p, err
		}
	}

	return p, nil
}
