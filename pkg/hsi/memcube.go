package hsi

import(
	"fmt"
	"sync/atomic"
)

// MemCube is a Hypercube held entirely in memory.
type MemCube struct {
	rows, cols, bands int
	wavelengths       []float64
	data              []float64  // [row][col][band]

	rowsRead          atomic.Int64
}

// NewMemCube makes a zero-filled cube. If wavelengths is nil, the cube
// has no spectral calibration and `bands` sets the band count;
// otherwise it is ignored.
func NewMemCube(rows, cols, bands int, wavelengths []float64) *MemCube {
	if wavelengths != nil {
		bands = len(wavelengths)
	}
	return &MemCube{
		rows:        rows,
		cols:        cols,
		bands:       bands,
		wavelengths: wavelengths,
		data:        make([]float64, rows*cols*bands),
	}
}

func (mc *MemCube)String() string {
	return fmt.Sprintf("MemCube[%dx%dx%d]", mc.rows, mc.cols, mc.bands)
}

func (mc *MemCube)NumRows() int    { return mc.rows }
func (mc *MemCube)NumCols() int    { return mc.cols }
func (mc *MemCube)NumBands() int   { return mc.bands }

// RowsRead counts calls to ReadRow.
func (mc *MemCube)RowsRead() int64 { return mc.rowsRead.Load() }

func (mc *MemCube)Wavelengths() []float64 {
	if mc.wavelengths == nil {
		return nil
	}
	w := make([]float64, len(mc.wavelengths))
	copy(w, mc.wavelengths)
	return w
}

func (mc *MemCube)offset(row, col int) int { return (row*mc.cols + col) * mc.bands }

func (mc *MemCube)inBounds(row, col int) bool {
	return row >= 0 && row < mc.rows && col >= 0 && col < mc.cols
}

// Set writes the spectrum for one pixel.
func (mc *MemCube)Set(row, col int, spectrum []float64) {
	copy(mc.data[mc.offset(row, col):mc.offset(row, col)+mc.bands], spectrum)
}

// Fill sets every pixel to the same spectrum.
func (mc *MemCube)Fill(spectrum []float64) {
	for r:=0; r<mc.rows; r++ {
		for c:=0; c<mc.cols; c++ {
			mc.Set(r, c, spectrum)
		}
	}
}

func (mc *MemCube)ReadRow(row int) ([]float64, error) {
	if !mc.inBounds(row, 0) {
		return nil, fmt.Errorf("%w: row %d of %d", ErrOutOfBounds, row, mc.rows)
	}
	mc.rowsRead.Add(1)

	out := make([]float64, mc.cols*mc.bands)
	copy(out, mc.data[mc.offset(row, 0):mc.offset(row+1, 0)])
	return out, nil
}

func (mc *MemCube)ReadPixel(row, col int) ([]float64, error) {
	if !mc.inBounds(row, col) {
		return nil, fmt.Errorf("%w: pixel (%d,%d) of %dx%d", ErrOutOfBounds, row, col, mc.rows, mc.cols)
	}
	out := make([]float64, mc.bands)
	copy(out, mc.data[mc.offset(row, col):mc.offset(row, col)+mc.bands])
	return out, nil
}
