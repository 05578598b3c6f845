package synth

import(
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/floats"

	"github.com/abworrall/hsi-synth/pkg/ecolor"
	"github.com/abworrall/hsi-synth/pkg/emath"
)

// Image is the synthesized H x W x 3 result, stored as three float
// planes. Values are unbounded until post-processing squeezes them
// into [0,1]. Implements image.Image, and hdr.Image so it can be
// written as Radiance HDR or fed to a tone mapper.
type Image struct {
	Planes [3]emath.FloatGrid
}

func NewImage(w, h int) *Image {
	img := Image{}
	for ch:=0; ch<3; ch++ {
		img.Planes[ch] = emath.NewFloatGrid(w, h)
	}
	return &img
}

// Implement image.Image
func (img *Image)ColorModel() color.Model       { return hdrcolor.RGBModel }
func (img *Image)Bounds() image.Rectangle       { return image.Rect(0, 0, img.Planes[0].Dx(), img.Planes[0].Dy()) }
func (img *Image)At(x, y int) color.Color       { return img.HDRAt(x,y) }

// Implement hdr.Image
func (img *Image)HDRAt(x, y int) hdrcolor.Color {
	return hdrcolor.RGB{R:img.Planes[0].Get(x,y), G:img.Planes[1].Get(x,y), B:img.Planes[2].Get(x,y)}
}
func (img *Image)Size() int                     { return img.Bounds().Dx() * img.Bounds().Dy() }

func (img *Image)Pixel(x, y int) [3]float64 {
	return [3]float64{img.Planes[0].Get(x,y), img.Planes[1].Get(x,y), img.Planes[2].Get(x,y)}
}

func (img *Image)SetPixel(x, y int, v [3]float64) {
	for ch:=0; ch<3; ch++ {
		img.Planes[ch].Set(x, y, v[ch])
	}
}

func (img *Image)Copy() *Image {
	c := Image{}
	for ch:=0; ch<3; ch++ {
		c.Planes[ch] = *img.Planes[ch].Copy()
	}
	return &c
}

func (img *Image)String() string {
	return fmt.Sprintf("Image[%dx%d]", img.Bounds().Dx(), img.Bounds().Dy())
}

func (img *Image)Stats() string {
	str := img.String() + " {\n"
	for ch:=0; ch<3; ch++ {
		str += fmt.Sprintf("  %d: %s\n", ch, img.Planes[ch].Stats())
	}
	return str + "}"
}

// ToRGBA64 clips to [0,1] and quantizes to 16 bits per channel.
func (img *Image)ToRGBA64() *image.RGBA64 {
	out := image.NewRGBA64(img.Bounds())
	for y:=0; y<img.Bounds().Dy(); y++ {
		for x:=0; x<img.Bounds().Dx(); x++ {
			out.Set(x, y, ecolor.ToLDR(img.HDRAt(x, y).(hdrcolor.RGB)))
		}
	}
	return out
}

func WritePNG(img image.Image, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		return png.Encode(writer, img)
	}
}

// WritePNG writes a 16-bit PNG.
func (img *Image)WritePNG(filename string) error {
	return WritePNG(img.ToRGBA64(), filename)
}

func (img *Image)WriteTIFF(filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("Image.WriteTIFF, open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		return tiff.Encode(writer, img.ToRGBA64(), &tiff.Options{Compression: tiff.Deflate})
	}
}

// WriteToHDR outputs a Radiance HDR image, with no clipping. You can
// load this into photoshop or other HDR tools.
func (img *Image)WriteToHDR(filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("Image.WriteToHDR, open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		err := rgbe.Encode(writer, img)
		if err != nil {
			log.Printf("Image.WriteToHDR, encoding RGBE file: %v\n", err)
		}
		return err
	}
}

// DumpChannels writes each plane as its own grayscale PNG, stretched
// to its own range.
func (img *Image)DumpChannels(prefix string, names [3]string) error {
	for ch:=0; ch<3; ch++ {
		filename := fmt.Sprintf("%s-%s.png", prefix, names[ch])
		if err := img.Planes[ch].ToImg(names[ch], filename); err != nil {
			return err
		}
	}
	return nil
}

// ImgDiff compares two images sample by sample, and returns the mean
// and the largest absolute difference. Identical images give 0,0.
func ImgDiff(a, b *Image) (float64, float64, error) {
	if a.Bounds() != b.Bounds() {
		return 0, 0, fmt.Errorf("ImgDiff: bounds %v != %v", a.Bounds(), b.Bounds())
	} else if a.Size() == 0 {
		return 0, 0, nil
	}

	// Per-pixel error, averaged over the channels
	diff := emath.NewFloatGrid(a.Bounds().Dx(), a.Bounds().Dy())
	maxErr := 0.0
	for ch:=0; ch<3; ch++ {
		va, vb, vd := a.Planes[ch].Values(), b.Planes[ch].Values(), diff.Values()
		for i := range va {
			d := math.Abs(va[i] - vb[i])
			vd[i] += d / 3.0
			maxErr = math.Max(maxErr, d)
		}
	}

	return floats.Sum(diff.Values()) / float64(a.Size()), maxErr, nil
}
