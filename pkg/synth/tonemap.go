package synth

import(
	"fmt"
	"log"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/tmo"
)

var(
	Tonemappers = []string{"drago03", "durand", "icam06", "linear", "reinhard05"}
)

func ListTonemappers() string {
	return fmt.Sprintf("%v", Tonemappers)
}

// Tonemap renders the HDR image through one tone mapping operator (or
// all of them, if name is "all"), writing each to `<prefix>-<name>.png`.
// These are previews to compare against the contrast-stretched output.
func Tonemap(img hdr.Image, name, prefix string) error {
	names := []string{name}
	if name == "all" {
		log.Printf("Tonemapping (using all operators)")
		names = Tonemappers
	}

	for _, n := range names {
		op, err := SetupTonemapper(img, n)
		if err != nil {
			return err
		}
		log.Printf("Tonemapping: %s", n)
		if err := WritePNG(op.Perform(), fmt.Sprintf("%s-%s.png", prefix, n)); err != nil {
			return fmt.Errorf("tonemap %s: %v", n, err)
		}
	}
	return nil
}

// Spectral renders are mostly reflectance, with a few specular
// highlights; the defaults let those blow out the rest of the scene.
func SetupTonemapper(img hdr.Image, name string) (tmo.ToneMappingOperator, error) {
	switch name {
	case "drago03":
		op := tmo.NewDefaultDrago03(img)
		op.Bias = 0.9
		return op, nil

	case "durand":
		return tmo.NewDefaultDurand(img), nil

	case "icam06":
		op := tmo.NewDefaultICam06(img)
		op.MaxClipping = 0.999
		return op, nil

	case "linear":
		return tmo.NewLinear(img), nil

	case "reinhard05":
		op := tmo.NewDefaultReinhard05(img)
		op.Light = 0.1
		return op, nil
	}

	return nil, fmt.Errorf("tonemapper %q not recognized, wanted %s", name, ListTonemappers())
}
