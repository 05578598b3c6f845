package emath

import(
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// A FloatGrid is a grid of floats, with some operations. A synthesized
// image keeps one of these per output channel.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

func (fg *FloatGrid)Set(x, y int, v float64) { fg.values[fg.stride*y + x] = v }
func (fg *FloatGrid)Get(x, y int) float64    { return fg.values[fg.stride*y + x] }
func (fg *FloatGrid)Dx() int                 { return fg.stride }
func (fg *FloatGrid)Values() []float64       { return fg.values }

func (fg *FloatGrid)Dy() int {
	if fg.stride == 0 { return 0 }
	return len(fg.values) / fg.stride
}

// Row returns the slice backing row `y`; writes go straight into the grid.
func (fg *FloatGrid)Row(y int) []float64 {
	return fg.values[fg.stride*y : fg.stride*(y+1)]
}

func (g1 *FloatGrid)Copy() *FloatGrid {
	g2 := FloatGrid{stride: g1.stride, values:make([]float64, len(g1.values))}
	copy(g2.values, g1.values)
	return &g2
}

func (fg *FloatGrid)MinMax() (float64, float64) {
	if len(fg.values) == 0 { return 0, 0 }
	return floats.Min(fg.values), floats.Max(fg.values)
}

// Rescale maps [min,max] onto [0,1]. If the range is empty (every
// value in the grid is identical, or min==max was passed in) the
// values are left as they are.
func (fg *FloatGrid)Rescale(min, max float64) bool {
	if max == min {
		return false
	}
	floats.AddConst(-1.0 * min, fg.values)
	floats.Scale(1.0 / (max - min), fg.values)
	return true
}

func (fg *FloatGrid)Apply(f func(float64) float64) {
	for i:=0; i<len(fg.values); i++ {
		fg.values[i] = f(fg.values[i])
	}
}

func (fg *FloatGrid)Stats() string {
	min, max := fg.MinMax()
	mean, stddev := stat.MeanStdDev(fg.values, nil)
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}, mean %f, stddev %f]", fg.Dx(), fg.Dy(), min, max, mean, stddev)
}

// ToImg saves a simple grayscale, based on the range of values in the grid, and gamma scaling the
// gray to look normal for human vision
func (fg *FloatGrid)ToImg(title, filename string) error {
	min, max := fg.MinMax()
	if max == min { max = min + 1.0 }

	img := image.NewRGBA64(image.Rectangle{Max:image.Point{fg.Dx(), fg.Dy()}})
	for x:=0; x<fg.Dx(); x++ {
		for y:=0; y<fg.Dy(); y++ {
			lum := fg.Get(x,y)
			gray := GammaEncode_F64((lum - min) / (max - min), 1.0/2.4)
			col := color.RGBA64{uint16(gray * 65535.0), uint16(gray * 65535.0), uint16(gray * 65535.0), 0xFFFF}
			img.Set(x, y, col)
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1,1,1)
	dc.DrawString(title, 10, 20)
	return dc.SavePNG(filename)
}
