// Command rtdemo ray traces a scene file and writes the result as PNG.
package main

import (
	"flag"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/raytrace"
	"github.com/gogpu/raytrace/backend"
	_ "github.com/gogpu/raytrace/backend/software"
	_ "github.com/gogpu/raytrace/backend/wgpu"
	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/render"
)

func main() {
	var (
		scenePath  = flag.String("scene", "", "TOML scene file (built-in scene if empty)")
		backendArg = flag.String("backend", "", "device backend: software, wgpu (best available if empty)")
		output     = flag.String("output", "raytrace.png", "output file for the traced image")
		surface    = flag.String("surface", "", "output file for the presented surface (skipped if empty)")
		width      = flag.Int("width", render.DefaultWidth, "surface width")
		height     = flag.Int("height", render.DefaultHeight, "surface height")
		frames     = flag.Int("frames", 1, "number of frames to trace")
		verbose    = flag.Bool("v", false, "log debug output")
	)
	flag.Parse()

	logger := slog.New(slog.DiscardHandler)
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	raytrace.SetLogger(logger)

	sf, err := loadScene(*scenePath)
	if err != nil {
		log.Fatalf("Failed to load scene: %v", err)
	}

	dev, err := openDevice(*backendArg, logger)
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer dev.Close()

	r, err := render.NewOffscreen(dev, render.WithSize(*width, *height))
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer r.Close()

	rt := raytrace.New(r)
	if err := rt.Init(); err != nil {
		log.Fatalf("Failed to init: %v", err)
	}
	defer rt.Close()

	if err := sf.apply(rt); err != nil {
		log.Fatalf("Failed to build scene: %v", err)
	}

	for range max(*frames, 1) {
		if err := rt.Run(); err != nil {
			log.Fatalf("Failed to trace: %v", err)
		}
		if err := rt.Render(); err != nil {
			log.Fatalf("Failed to present: %v", err)
		}
	}

	img, err := rt.ReadOutput()
	if err != nil {
		log.Fatalf("Failed to read output: %v", err)
	}
	if err := savePNG(*output, img); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	if *surface != "" {
		snap, err := r.Snapshot()
		if err != nil {
			log.Fatalf("Failed to read surface: %v", err)
		}
		if err := savePNG(*surface, snap); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
	}

	st := rt.Stats()
	log.Printf("Traced %d frame(s) on %s, saved to %s (rebuilds=%d, skipped=%d)\n",
		st.Dispatches, dev.Name(), *output, st.Rebuilds, st.SkippedFrames)
}

func openDevice(name string, logger *slog.Logger) (gpucore.Device, error) {
	if name == "" {
		return backend.Default(logger)
	}
	return backend.Get(name)
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
