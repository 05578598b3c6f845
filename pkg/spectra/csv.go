package spectra

import(
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/abworrall/hsi-synth/pkg/emath"
)

// ErrInvalidSpectralImport is wrapped by every error about a malformed
// CSV file; the rest of the message says what to fix.
var ErrInvalidSpectralImport = errors.New("invalid spectral import")

const(
	ColWavelength = "Wavelength"
	ColIntensity  = "Intensity"
)

// A Table is a set of named numeric columns, all the same length, sorted
// by ascending wavelength.
type Table map[string][]float64

// ReadTable reads a CSV file with a header row. Every column must be one
// of the `expect` names; every `required` name must be present. All
// values must be numeric, and none may be missing.
func ReadTable(r io.Reader, expect, required []string) (Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v; please ensure that it contains only numeric data, has a header "+
			"with column names, and that there are no missing values", ErrInvalidSpectralImport, err)
	} else if len(records) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidSpectralImport)
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if err := checkColumns(header, expect, required); err != nil {
		return nil, err
	}

	rows := records[1:]
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: need at least two rows of data, found %d", ErrInvalidSpectralImport, len(rows))
	}

	t := Table{}
	for _, name := range header {
		t[name] = make([]float64, len(rows))
	}
	for i, row := range rows {
		for j, name := range header {
			str := strings.TrimSpace(row[j])
			if str == "" {
				return nil, fmt.Errorf("%w: column '%s' has a missing value on line %d", ErrInvalidSpectralImport, name, i+2)
			}
			v, err := strconv.ParseFloat(str, 64)
			if err != nil || !emath.IsFinite(v) {
				return nil, fmt.Errorf("%w: column '%s' contains non-numeric value %q on line %d", ErrInvalidSpectralImport, name, str, i+2)
			}
			t[name][i] = v
		}
	}

	return t, t.sortByWavelength()
}

func checkColumns(header, expect, required []string) error {
	wanted := fmt.Sprintf("please ensure that it contains columns with the following names: %s", strings.Join(expect, ", "))

	seen := map[string]bool{}
	for _, name := range header {
		if seen[name] {
			return fmt.Errorf("%w: duplicate column '%s'; %s", ErrInvalidSpectralImport, name, wanted)
		}
		seen[name] = true

		known := false
		for _, e := range expect {
			if name == e { known = true }
		}
		if !known {
			return fmt.Errorf("%w: unrecognized column '%s'; %s", ErrInvalidSpectralImport, name, wanted)
		}
	}

	for _, name := range required {
		if !seen[name] {
			return fmt.Errorf("%w: missing column '%s'; %s", ErrInvalidSpectralImport, name, wanted)
		}
	}
	return nil
}

func (t Table)sortByWavelength() error {
	wl := t[ColWavelength]
	idx := make([]int, len(wl))
	for i := range idx { idx[i] = i }
	sort.SliceStable(idx, func(i, j int) bool { return wl[idx[i]] < wl[idx[j]] })

	for name, col := range t {
		sorted := make([]float64, len(col))
		for i, from := range idx {
			sorted[i] = col[from]
		}
		t[name] = sorted
	}

	if !emath.StrictlyIncreasing(t[ColWavelength]) {
		return fmt.Errorf("%w: column '%s' has repeated values", ErrInvalidSpectralImport, ColWavelength)
	}
	return nil
}

func LoadResponseSet(r io.Reader, kind Kind, name string) (ResponseSet, error) {
	names := kind.ChannelNames()
	cols := []string{ColWavelength, names[0], names[1], names[2]}

	t, err := ReadTable(r, cols, cols)
	if err != nil {
		return ResponseSet{}, err
	}

	channels := [3]Curve{}
	for i, ch := range names {
		channels[i] = Curve{Name: ch, Wavelengths: t[ColWavelength], Values: t[ch]}
	}
	return NewResponseSet(kind, name, channels)
}

func LoadIlluminant(r io.Reader, name string) (*Illuminant, error) {
	cols := []string{ColWavelength, ColIntensity}

	t, err := ReadTable(r, cols, cols)
	if err != nil {
		return nil, err
	}
	return NewIlluminant(name, t[ColWavelength], t[ColIntensity])
}

func LoadResponseSetFile(filename string, kind Kind) (ResponseSet, error) {
	f, err := os.Open(filename)
	if err != nil {
		return ResponseSet{}, fmt.Errorf("open+r '%s': %v", filename, err)
	}
	defer f.Close()

	rs, err := LoadResponseSet(f, kind, baseName(filename))
	if err != nil {
		return rs, fmt.Errorf("response set '%s': %w", filename, err)
	}
	return rs, nil
}

func LoadIlluminantFile(filename string) (*Illuminant, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r '%s': %v", filename, err)
	}
	defer f.Close()

	il, err := LoadIlluminant(f, baseName(filename))
	if err != nil {
		return nil, fmt.Errorf("illuminant '%s': %w", filename, err)
	}
	return il, nil
}

func baseName(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}
