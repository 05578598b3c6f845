package hsi

import(
	"errors"
)

// A Hypercube is a read-only stack of spectral images: NumRows x NumCols
// pixels, each holding a spectrum of NumBands samples. Implementations
// must be safe for concurrent reads.
type Hypercube interface {
	// Wavelengths are the band centers, in nm, strictly increasing. nil
	// if the cube has no spectral calibration.
	Wavelengths() []float64

	NumRows() int
	NumCols() int
	NumBands() int

	// ReadRow returns NumCols*NumBands values; the spectrum of pixel
	// `col` lives at [col*NumBands : (col+1)*NumBands].
	ReadRow(row int) ([]float64, error)

	ReadPixel(row, col int) ([]float64, error)
}

var(
	ErrOutOfBounds   = errors.New("hypercube: out of bounds")
	ErrHeaderInvalid = errors.New("hypercube: header invalid")
	ErrDataMissing   = errors.New("hypercube: data file missing")
)
