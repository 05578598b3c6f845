package spectra

import(
	"bytes"
	"embed"
	"fmt"
	"os"
)

//go:embed data/*.csv
var presetData embed.FS

var(
	ResponsePresets   = []string{"cie1931"}
	IlluminantPresets = []string{"A", "D50", "D65", "E"}
)

func ListResponsePresets() string   { return fmt.Sprintf("%v", ResponsePresets) }
func ListIlluminantPresets() string { return fmt.Sprintf("%v", IlluminantPresets) }

// CIE1931 returns the CIE 1931 2-degree standard observer color
// matching functions.
func CIE1931() ResponseSet {
	rs, err := loadEmbeddedResponseSet("data/cie1931_2deg.csv", KindCIE, "cie1931")
	if err != nil {
		panic(err) // the file is compiled in, so this is a bug
	}
	return rs
}

// IlluminantD50 is CIE D50 (horizon daylight, 5003K), 300-780nm. It is
// the white point that the srgb-d50 color transform expects.
func IlluminantD50() *Illuminant { return mustLoadEmbeddedIlluminant("data/d50.csv", "D50") }

// IlluminantD65 is CIE D65 (noon daylight, 6504K), 300-830nm.
func IlluminantD65() *Illuminant { return mustLoadEmbeddedIlluminant("data/d65.csv", "D65") }

func mustLoadEmbeddedIlluminant(path, name string) *Illuminant {
	b, err := presetData.ReadFile(path)
	if err != nil {
		panic(err)
	}
	il, err := LoadIlluminant(bytes.NewReader(b), name)
	if err != nil {
		panic(err)
	}
	return il
}

func loadEmbeddedResponseSet(path string, kind Kind, name string) (ResponseSet, error) {
	b, err := presetData.ReadFile(path)
	if err != nil {
		return ResponseSet{}, err
	}
	return LoadResponseSet(bytes.NewReader(b), kind, name)
}

// GetResponseSet looks up a preset by name; if there is no such preset,
// the name is treated as the path to a CSV file.
func GetResponseSet(name string, kind Kind) (ResponseSet, error) {
	switch name {
	case "cie1931":
		if kind != KindCIE {
			return ResponseSet{}, fmt.Errorf("preset '%s' holds %s curves, wanted %s", name, KindCIE, kind)
		}
		return CIE1931(), nil
	case "":
		if kind == KindCIE {
			return CIE1931(), nil
		}
		return ResponseSet{}, fmt.Errorf("%s synthesis needs a response CSV file", kind)
	}

	if _, err := os.Stat(name); err != nil {
		return ResponseSet{}, fmt.Errorf("response '%s' is neither a preset %s nor a readable file: %v",
			name, ListResponsePresets(), err)
	}
	return LoadResponseSetFile(name, kind)
}

// GetIlluminant looks up a preset by name, or loads a CSV file. The
// flat illuminant (E, or no name at all) is returned as nil.
func GetIlluminant(name string) (*Illuminant, error) {
	switch name {
	case "", "E": return nil, nil
	case "A":     return IlluminantA(), nil
	case "D50":   return IlluminantD50(), nil
	case "D65":   return IlluminantD65(), nil
	}

	if _, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("illuminant '%s' is neither a preset %s nor a readable file: %v",
			name, ListIlluminantPresets(), err)
	}
	return LoadIlluminantFile(name)
}
