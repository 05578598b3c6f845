package hsi

import(
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ENVICube reads a cube stored in the ENVI format: a plain text .hdr
// file describing a flat binary data file. Rows are fetched on demand
// with ReadAt, so the cube is never loaded in full and concurrent
// reads are safe.
//
// Bands are presented sorted by wavelength, whatever order the file
// stores them in.
type ENVICube struct {
	HeaderFile    string
	DataFile      string
	Metadata      map[string]string

	samples       int // cols
	lines         int // rows
	bands         int
	headerOffset  int64
	dataType      int
	sampleSize    int
	interleave    string
	byteOrder     binary.ByteOrder

	wavelengths   []float64 // sorted
	rank          []int     // rank[fileBand] == position in the sorted band list
	defaultBands  []int

	f             *os.File
}

var enviSampleSizes = map[int]int{
	1:  1, // uint8
	2:  2, // int16
	3:  4, // int32
	4:  4, // float32
	5:  8, // float64
	12: 2, // uint16
	13: 4, // uint32
	14: 8, // int64
	15: 8, // uint64
}

var enviDataSuffixes = []string{"", ".img", ".dat", ".raw", ".bsq", ".bil", ".bip", ".IMG", ".DAT", ".RAW"}

// OpenENVI parses the header file and opens the data file that goes
// with it. The caller must Close the cube.
func OpenENVI(headerFile string) (*ENVICube, error) {
	f, err := os.Open(headerFile)
	if err != nil {
		return nil, fmt.Errorf("OpenENVI '%s': %w", headerFile, err)
	}
	defer f.Close()

	md, err := ParseENVIHeader(f)
	if err != nil {
		return nil, fmt.Errorf("OpenENVI '%s': %w", headerFile, err)
	}

	e := ENVICube{HeaderFile:headerFile, Metadata:md}
	if err := e.configure(); err != nil {
		return nil, fmt.Errorf("OpenENVI '%s': %w", headerFile, err)
	}

	e.DataFile, err = findENVIData(headerFile)
	if err != nil {
		return nil, fmt.Errorf("OpenENVI '%s': %w", headerFile, err)
	}
	if e.f, err = os.Open(e.DataFile); err != nil {
		return nil, fmt.Errorf("OpenENVI '%s': %w: %v", headerFile, ErrDataMissing, err)
	}

	want := e.headerOffset + int64(e.samples*e.lines*e.bands*e.sampleSize)
	if st, err := e.f.Stat(); err == nil && st.Size() < want {
		e.f.Close()
		return nil, fmt.Errorf("OpenENVI '%s': %w: '%s' has %d bytes, need %d", headerFile,
			ErrDataMissing, e.DataFile, st.Size(), want)
	}

	return &e, nil
}

func (e *ENVICube)Close() error {
	if e.f == nil { return nil }
	err := e.f.Close()
	e.f = nil
	return err
}

func (e *ENVICube)String() string {
	return fmt.Sprintf("ENVI[%s, %dx%dx%d, type=%d, %s]", filepath.Base(e.DataFile), e.lines, e.samples,
		e.bands, e.dataType, e.interleave)
}

func (e *ENVICube)NumRows() int  { return e.lines }
func (e *ENVICube)NumCols() int  { return e.samples }
func (e *ENVICube)NumBands() int { return e.bands }

func (e *ENVICube)Wavelengths() []float64 {
	if e.wavelengths == nil { return nil }
	w := make([]float64, len(e.wavelengths))
	copy(w, e.wavelengths)
	return w
}

// DefaultBands are the (sorted) band indices the header suggests for
// an RGB preview, or nil.
func (e *ENVICube)DefaultBands() []int { return e.defaultBands }

// ParseENVIHeader reads the `key = value` pairs out of an ENVI header.
// Keys are lowercased; brace-delimited values may span lines, and are
// returned without their braces.
func ParseENVIHeader(r io.Reader) (map[string]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "ENVI" {
		return nil, fmt.Errorf("%w: first line must be 'ENVI'", ErrHeaderInvalid)
	}

	md := map[string]string{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		k, v, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: no '=' in line '%s'", ErrHeaderInvalid, line)
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)

		if strings.HasPrefix(v, "{") {
			for !strings.Contains(v, "}") {
				if !scanner.Scan() {
					return nil, fmt.Errorf("%w: unterminated '{' for key '%s'", ErrHeaderInvalid, k)
				}
				v += " " + strings.TrimSpace(scanner.Text())
			}
			v = strings.TrimSpace(v[1:strings.LastIndex(v, "}")])
		}
		md[k] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeaderInvalid, err)
	}

	return md, nil
}

func (e *ENVICube)headerInt(key string, required bool, dflt int) (int, error) {
	s, exists := e.Metadata[key]
	if !exists {
		if required {
			return 0, fmt.Errorf("%w: missing '%s'", ErrHeaderInvalid, key)
		}
		return dflt, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: '%s' = '%s': %v", ErrHeaderInvalid, key, s, err)
	}
	return i, nil
}

func (e *ENVICube)configure() error {
	var err error
	if e.samples, err = e.headerInt("samples", true, 0); err != nil { return err }
	if e.lines, err = e.headerInt("lines", true, 0); err != nil { return err }
	if e.bands, err = e.headerInt("bands", true, 0); err != nil { return err }
	if e.samples <= 0 || e.lines <= 0 || e.bands <= 0 {
		return fmt.Errorf("%w: dimensions %dx%dx%d", ErrHeaderInvalid, e.lines, e.samples, e.bands)
	}

	offset, err := e.headerInt("header offset", false, 0)
	if err != nil { return err }
	e.headerOffset = int64(offset)

	if e.dataType, err = e.headerInt("data type", true, 0); err != nil { return err }
	size, exists := enviSampleSizes[e.dataType]
	if !exists {
		return fmt.Errorf("%w: unsupported data type %d", ErrHeaderInvalid, e.dataType)
	}
	e.sampleSize = size

	order, err := e.headerInt("byte order", false, 0)
	if err != nil { return err }
	switch order {
	case 0: e.byteOrder = binary.LittleEndian
	case 1: e.byteOrder = binary.BigEndian
	default:
		return fmt.Errorf("%w: byte order %d", ErrHeaderInvalid, order)
	}

	e.interleave = strings.ToLower(e.Metadata["interleave"])
	if e.interleave == "" { e.interleave = "bsq" }
	switch e.interleave {
	case "bsq", "bil", "bip":
	default:
		return fmt.Errorf("%w: interleave '%s'", ErrHeaderInvalid, e.interleave)
	}

	return e.configureWavelengths()
}

func parseFloatList(s string) ([]float64, error) {
	ret := []float64{}
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" { continue }
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		ret = append(ret, f)
	}
	return ret, nil
}

// configureWavelengths sets up the band permutation. Without a
// `wavelength` key the bands stay in file order and the cube is
// uncalibrated.
func (e *ENVICube)configureWavelengths() error {
	e.rank = make([]int, e.bands)
	for i := range e.rank { e.rank[i] = i }

	s, exists := e.Metadata["wavelength"]
	if !exists {
		return e.configureDefaultBands()
	}

	w, err := parseFloatList(s)
	if err != nil {
		return fmt.Errorf("%w: wavelength: %v", ErrHeaderInvalid, err)
	}
	if len(w) != e.bands {
		return fmt.Errorf("%w: %d wavelengths for %d bands", ErrHeaderInvalid, len(w), e.bands)
	}

	switch strings.ToLower(e.Metadata["wavelength units"]) {
	case "micrometers", "um", "microns":
		for i := range w { w[i] *= 1000.0 }
	case "millimeters", "mm":
		for i := range w { w[i] *= 1e6 }
	}

	byWavelength := make([]int, e.bands) // byWavelength[sortedPos] == fileBand
	for i := range byWavelength { byWavelength[i] = i }
	sort.SliceStable(byWavelength, func(i, j int) bool { return w[byWavelength[i]] < w[byWavelength[j]] })

	e.wavelengths = make([]float64, e.bands)
	for pos, band := range byWavelength {
		e.rank[band] = pos
		e.wavelengths[pos] = w[band]
		if pos > 0 && e.wavelengths[pos] == e.wavelengths[pos-1] {
			return fmt.Errorf("%w: repeated wavelength %f", ErrHeaderInvalid, e.wavelengths[pos])
		}
	}

	return e.configureDefaultBands()
}

func (e *ENVICube)configureDefaultBands() error {
	s, exists := e.Metadata["default bands"]
	if !exists { return nil }

	f, err := parseFloatList(s)
	if err != nil {
		return fmt.Errorf("%w: default bands: %v", ErrHeaderInvalid, err)
	}
	for _, v := range f {
		b := int(v) - 1 // 1-based in the header
		if b < 0 || b >= e.bands {
			return fmt.Errorf("%w: default band %d out of range", ErrHeaderInvalid, int(v))
		}
		e.defaultBands = append(e.defaultBands, e.rank[b])
	}
	return nil
}

func findENVIData(headerFile string) (string, error) {
	stem := headerFile
	if ext := filepath.Ext(headerFile); strings.EqualFold(ext, ".hdr") {
		stem = strings.TrimSuffix(headerFile, ext)
	}
	for _, suffix := range enviDataSuffixes {
		candidate := stem + suffix
		if candidate == headerFile { continue }
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: nothing found next to '%s'", ErrDataMissing, headerFile)
}

// readAt fills buf from the data file, starting at the `sample`-th
// sample (not byte).
func (e *ENVICube)readAt(buf []byte, sample int64) error {
	if e.f == nil {
		return fmt.Errorf("read '%s': cube is closed", e.DataFile)
	}
	if _, err := e.f.ReadAt(buf, e.headerOffset + sample*int64(e.sampleSize)); err != nil {
		return fmt.Errorf("read '%s' at sample %d: %w", e.DataFile, sample, err)
	}
	return nil
}

// decode returns the i-th sample in buf.
func (e *ENVICube)decode(buf []byte, i int) float64 {
	b := buf[i*e.sampleSize:]
	switch e.dataType {
	case 1:  return float64(b[0])
	case 2:  return float64(int16(e.byteOrder.Uint16(b)))
	case 3:  return float64(int32(e.byteOrder.Uint32(b)))
	case 4:  return float64(math.Float32frombits(e.byteOrder.Uint32(b)))
	case 5:  return math.Float64frombits(e.byteOrder.Uint64(b))
	case 12: return float64(e.byteOrder.Uint16(b))
	case 13: return float64(e.byteOrder.Uint32(b))
	case 14: return float64(int64(e.byteOrder.Uint64(b)))
	case 15: return float64(e.byteOrder.Uint64(b))
	}
	return math.NaN()
}

func (e *ENVICube)ReadRow(row int) ([]float64, error) {
	if row < 0 || row >= e.lines {
		return nil, fmt.Errorf("%w: row %d of %d", ErrOutOfBounds, row, e.lines)
	}

	out := make([]float64, e.samples*e.bands)
	r, nc, nb := int64(row), int64(e.samples), int64(e.bands)

	switch e.interleave {
	case "bsq":
		buf := make([]byte, e.samples*e.sampleSize)
		for b:=0; b<e.bands; b++ {
			if err := e.readAt(buf, (int64(b)*int64(e.lines) + r) * nc); err != nil {
				return nil, err
			}
			for c:=0; c<e.samples; c++ {
				out[c*e.bands + e.rank[b]] = e.decode(buf, c)
			}
		}

	case "bil":
		buf := make([]byte, e.samples*e.bands*e.sampleSize)
		if err := e.readAt(buf, r*nb*nc); err != nil {
			return nil, err
		}
		for b:=0; b<e.bands; b++ {
			for c:=0; c<e.samples; c++ {
				out[c*e.bands + e.rank[b]] = e.decode(buf, b*e.samples + c)
			}
		}

	case "bip":
		buf := make([]byte, e.samples*e.bands*e.sampleSize)
		if err := e.readAt(buf, r*nc*nb); err != nil {
			return nil, err
		}
		for c:=0; c<e.samples; c++ {
			for b:=0; b<e.bands; b++ {
				out[c*e.bands + e.rank[b]] = e.decode(buf, c*e.bands + b)
			}
		}
	}

	return out, nil
}

func (e *ENVICube)ReadPixel(row, col int) ([]float64, error) {
	if row < 0 || row >= e.lines || col < 0 || col >= e.samples {
		return nil, fmt.Errorf("%w: pixel (%d,%d) of %dx%d", ErrOutOfBounds, row, col, e.lines, e.samples)
	}

	out := make([]float64, e.bands)
	r, c, nc, nb := int64(row), int64(col), int64(e.samples), int64(e.bands)

	if e.interleave == "bip" {
		buf := make([]byte, e.bands*e.sampleSize)
		if err := e.readAt(buf, (r*nc + c) * nb); err != nil {
			return nil, err
		}
		for b:=0; b<e.bands; b++ {
			out[e.rank[b]] = e.decode(buf, b)
		}
		return out, nil
	}

	buf := make([]byte, e.sampleSize)
	for b:=0; b<e.bands; b++ {
		var sample int64
		if e.interleave == "bsq" {
			sample = (int64(b)*int64(e.lines) + r) * nc + c
		} else {
			sample = (r*nb + int64(b)) * nc + c
		}
		if err := e.readAt(buf, sample); err != nil {
			return nil, err
		}
		out[e.rank[b]] = e.decode(buf, 0)
	}
	return out, nil
}
