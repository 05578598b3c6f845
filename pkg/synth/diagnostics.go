package synth

import(
	"fmt"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/floats"
)

// RowTimings keeps a histogram of how long each row read took; the
// reads are nearly always what bounds a run. Safe for concurrent use.
type RowTimings struct {
	mu   sync.Mutex
	h    *hdrhistogram.Histogram
}

func NewRowTimings() *RowTimings {
	// 1us to 1min, in microseconds
	return &RowTimings{h: hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3)}
}

func (rt *RowTimings)Record(d time.Duration) {
	us := d.Microseconds()
	if us < 1 { us = 1 }
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if err := rt.h.RecordValue(us); err != nil {
		rt.h.RecordValue(rt.h.HighestTrackableValue())
	}
}

func (rt *RowTimings)Count() int64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.h.TotalCount()
}

// Percentile returns the q'th percentile (0-100) of the row read time.
func (rt *RowTimings)Percentile(q float64) time.Duration {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return time.Duration(rt.h.ValueAtQuantile(q)) * time.Microsecond
}

func (rt *RowTimings)String() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return fmt.Sprintf("row reads: n=%d, mean=%s, p50=%s, p99=%s, max=%s", rt.h.TotalCount(),
		time.Duration(rt.h.Mean()) * time.Microsecond, us(rt.h.ValueAtQuantile(50)),
		us(rt.h.ValueAtQuantile(99)), us(rt.h.Max()))
}

var plotColors = []color.Color{
	color.RGBA{0xd0, 0x20, 0x20, 0xff},
	color.RGBA{0x20, 0xa0, 0x20, 0xff},
	color.RGBA{0x20, 0x40, 0xd0, 0xff},
	color.RGBA{0x80, 0x80, 0x80, 0xff},
}

// PlotCurves draws each curve (sampled on the shared wavelengths `w`)
// as a line graph, so you can eyeball what the integrator is about to
// weight the spectra with.
func PlotCurves(title, filename string, w []float64, curves ...[]float64) error {
	const width, height, margin = 640, 400, 40.0

	if len(w) < 2 {
		return fmt.Errorf("PlotCurves '%s': need at least two wavelengths", filename)
	}
	yMin, yMax := 0.0, math.Inf(-1)
	for _, c := range curves {
		yMin = math.Min(yMin, floats.Min(c))
		yMax = math.Max(yMax, floats.Max(c))
	}
	if yMax <= yMin { yMax = yMin + 1.0 }

	px := func(i int, v float64) (float64, float64) {
		x := margin + (w[i] - w[0]) / (w[len(w)-1] - w[0]) * (width - 2*margin)
		y := height - margin - (v - yMin) / (yMax - yMin) * (height - 2*margin)
		return x, y
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawRectangle(margin, margin, width - 2*margin, height - 2*margin)
	dc.Stroke()
	dc.DrawString(title, margin, margin - 10)
	dc.DrawString(fmt.Sprintf("%.0fnm", w[0]), margin, height - margin + 15)
	dc.DrawStringAnchored(fmt.Sprintf("%.0fnm", w[len(w)-1]), width - margin, height - margin + 15, 1, 0)
	dc.DrawStringAnchored(fmt.Sprintf("%.3g", yMax), margin - 4, margin, 1, 0.5)

	for n, c := range curves {
		dc.SetColor(plotColors[n % len(plotColors)])
		dc.SetLineWidth(2)
		for i := range c {
			x, y := px(i, c[i])
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
	}

	return dc.SavePNG(filename)
}
