package main

import(
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/abworrall/hsi-synth/pkg/ecolor"
	"github.com/abworrall/hsi-synth/pkg/hsi"
	"github.com/abworrall/hsi-synth/pkg/job"
	"github.com/abworrall/hsi-synth/pkg/spectra"
	"github.com/abworrall/hsi-synth/pkg/synth"
)

var(
	fVerbosity int
	fConfig string
	fMode string
	fResponse string
	fIlluminant string
	fWhiteRef string
	fBlackRef string
	fColorTransform string
	fGamma string
	fNoColorTransform bool
	fNoGamma bool
	fPerChannel bool
	fWorkers int
	fOutPNG string
	fOutHDR string
	fOutTIFF string
	fTonemapper string
	fPreview string
	fDebugPixels string
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fConfig, "config", "", "YAML file with a base configuration; flags override it")

	flag.StringVar(&fMode, "mode", "", "response kind: cie or srf")
	flag.StringVar(&fResponse, "response", "", "response curves: a preset "+spectra.ListResponsePresets()+", or a CSV file")
	flag.StringVar(&fIlluminant, "illuminant", "", "illuminant: a preset "+spectra.ListIlluminantPresets()+", or a CSV file")
	flag.StringVar(&fWhiteRef, "white", "", "pixel to use as the white reference, as x,y")
	flag.StringVar(&fBlackRef, "black", "", "pixel to use as the black reference, as x,y")

	flag.StringVar(&fColorTransform, "xform", "", "XYZ to RGB matrix (cie only): "+ecolor.ListColorTransforms())
	flag.StringVar(&fGamma, "gamma", "", "gamma curve: reference or standard")
	flag.BoolVar(&fNoColorTransform, "noxform", false, "leave the output in XYZ")
	flag.BoolVar(&fNoGamma, "nogamma", false, "don't gamma encode the output")
	flag.BoolVar(&fPerChannel, "perchannel", false, "stretch the contrast of each channel separately")
	flag.IntVar(&fWorkers, "workers", 0, "rows to integrate concurrently")

	flag.StringVar(&fOutPNG, "png", "", "output 16-bit PNG")
	flag.StringVar(&fOutHDR, "hdr", "", "output Radiance HDR of the linear image")
	flag.StringVar(&fOutTIFF, "tiff", "", "output 16-bit TIFF")
	flag.StringVar(&fTonemapper, "tonemapper", "", "also write tone-mapped previews: all, or one of "+synth.ListTonemappers())
	flag.StringVar(&fPreview, "preview", "", "output a false-color PNG of the header's default bands (or ~R,G,B)")
	flag.StringVar(&fDebugPixels, "debug", "", "pixels to log in detail, as x,y[;x,y...]")
	flag.Parse()

	log.Printf("hsi-synth starting\n")
}

func parsePoint(s string) (*image.Point, error) {
	var pt image.Point
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d,%d", &pt.X, &pt.Y); err != nil {
		return nil, fmt.Errorf("pixel '%s': wanted x,y: %v", s, err)
	}
	return &pt, nil
}

// loadConfig starts from defaults (or the config file), then applies
// any flags that were set.
func loadConfig() (synth.Config, error) {
	cfg := synth.NewConfig()
	if fConfig != "" {
		var err error
		if cfg, err = synth.LoadConfig(fConfig); err != nil {
			return cfg, err
		}
		log.Printf("Loaded base configuration from %s\n", fConfig)
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":          cfg.Verbosity = fVerbosity
		case "mode":       cfg.Mode = fMode
		case "response":   cfg.Response = fResponse
		case "illuminant": cfg.Illuminant = fIlluminant
		case "xform":      cfg.ColorTransform = fColorTransform
		case "gamma":      cfg.Gamma = fGamma
		case "noxform":    cfg.ApplyColorTransform = !fNoColorTransform
		case "nogamma":    cfg.ApplyGammaEncoding = !fNoGamma
		case "perchannel": cfg.PerChannelContrast = fPerChannel
		case "workers":    cfg.Workers = fWorkers
		case "png":        cfg.OutputPNG = fOutPNG
		case "hdr":        cfg.OutputHDR = fOutHDR
		case "tiff":       cfg.OutputTIFF = fOutTIFF
		case "tonemapper": cfg.Tonemapper = fTonemapper
		case "preview":    cfg.OutputPreview = fPreview
		case "debug":
			cfg.DebugPixels = nil
			for _, s := range strings.Split(fDebugPixels, ";") {
				var pt *image.Point
				if pt, err = parsePoint(s); err != nil { return }
				cfg.DebugPixels = append(cfg.DebugPixels, *pt)
			}
		case "white":
			if cfg.WhiteRef, err = parsePoint(fWhiteRef); err != nil { return }
		case "black":
			if cfg.BlackRef, err = parsePoint(fBlackRef); err != nil { return }
		}
	})
	return cfg, err
}

func writeOutputs(cfg synth.Config, res *synth.Result, names [3]string) {
	if cfg.OutputPNG != "" {
		if err := res.Image.WritePNG(cfg.OutputPNG); err != nil {
			log.Fatal(err)
		}
		log.Printf("Wrote %s", cfg.OutputPNG)
	}
	if cfg.OutputTIFF != "" {
		if err := res.Image.WriteTIFF(cfg.OutputTIFF); err != nil {
			log.Fatal(err)
		}
		log.Printf("Wrote %s", cfg.OutputTIFF)
	}
	if cfg.OutputHDR != "" {
		if err := res.Linear.WriteToHDR(cfg.OutputHDR); err != nil {
			log.Fatal(err)
		}
		log.Printf("Wrote %s", cfg.OutputHDR)
	}
	if cfg.Tonemapper != "" {
		if err := synth.Tonemap(res.Linear, cfg.Tonemapper, "tmo"); err != nil {
			log.Fatal(err)
		}
	}
	if cfg.Verbosity > 0 {
		if err := res.Raw.DumpChannels("raw", names); err != nil {
			log.Printf("dumping channels: %v", err)
		}
	}
}

// writePreview shows the bands the header asks for, or failing that,
// whichever bands sit nearest red, green and blue.
func writePreview(cube *hsi.ENVICube, filename string) {
	bands := cube.DefaultBands()
	if len(bands) != 1 && len(bands) != 3 {
		bands = synth.NearestBands(cube.Wavelengths(), 640, 550, 460)
	}
	if bands == nil {
		log.Printf("No default bands or wavelengths in the header, so no preview")
		return
	}
	log.Printf("Previewing bands %v", bands)

	img, err := synth.BandPreview(cube, bands)
	if err != nil {
		log.Fatal(err)
	}
	if err := img.WritePNG(filename); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s", filename)
}

func main() {
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] cube.hdr\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	cube, err := hsi.OpenENVI(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	defer cube.Close()
	log.Printf("Opened %s", cube)

	if cfg.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", cfg.AsYaml())
	}

	if cfg.OutputPreview != "" {
		writePreview(cube, cfg.OutputPreview)
	}

	params, err := cfg.Parameters(cube)
	if err != nil {
		log.Fatal(err)
	}

	j, err := job.New(cube, params)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Verbosity > 0 {
		in := j.Integrator()
		names := params.Responses.ChannelNames()
		title := fmt.Sprintf("%s weights (%s, %s)", params.Responses.Name, names, cfg.Illuminant)
		if err := synth.PlotCurves(title, "weights.png", in.Wavelengths, in.Weights[:]...); err != nil {
			log.Printf("plotting weights: %v", err)
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		log.Printf("Interrupted, cancelling")
		j.Cancel()
	}()

	j.Start()
	for ev := range j.Events() {
		switch ev.Kind {
		case job.EventProgress:
			if ev.Progress % 10 == 0 || cfg.Verbosity > 0 {
				log.Printf("%3d%%", ev.Progress)
			}
		case job.EventProduced:
			writeOutputs(cfg, ev.Result, params.Responses.ChannelNames())
		case job.EventFinished:
			if ev.Err != nil {
				log.Fatal(ev.Err)
			} else if ev.State == synth.StateCancelled {
				log.Printf("Cancelled; nothing written")
				os.Exit(1)
			}
		}
	}
}
