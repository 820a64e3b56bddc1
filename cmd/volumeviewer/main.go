package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/spatial/r3"

	"volumeviewer/pkg/config"
	"volumeviewer/pkg/logging"
	"volumeviewer/pkg/measurement"
	"volumeviewer/pkg/reconstruction"
	"volumeviewer/pkg/render"
	"volumeviewer/pkg/visualization"
	"volumeviewer/pkg/volume"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing 2D image slices")
	configPath := flag.String("config", "volumeviewer.yaml", "Configuration file (.yaml or .toml)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: from config)")
	sliceGap := flag.Float64("gap", 0, "Inter-slice gap in mm (default: from config)")
	pixelSpacing := flag.Float64("spacing", 0, "In-plane pixel spacing in mm (default: from config)")
	preset := flag.String("preset", "", "Transfer function to render with")
	mode := flag.String("mode", "", "Render mode: mip, dvr or isosurface")
	quality := flag.String("quality", "", "Render quality: low, medium or high")
	extractSlices := flag.Bool("extract-slices", false, "Extract and save MPR slices along all orientations")
	slicesDir := flag.String("slices-dir", "mpr_slices", "Directory to save extracted slices")
	project := flag.String("project", "", "Save a ray cast projection along each orientation with this file prefix")
	measure := flag.String("measure", "", "Measure between voxel points \"x,y,z;x,y,z\" (length) or three points (angle)")
	logFile := flag.String("log", "", "Write logs to this file with rotation")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *sliceGap > 0 {
		cfg.Processing.SliceGap = *sliceGap
	}
	if *pixelSpacing > 0 {
		cfg.Processing.PixelSpacing = *pixelSpacing
	}
	if *preset != "" {
		cfg.Rendering.Preset = *preset
	}
	if *mode != "" {
		cfg.Rendering.Mode = *mode
	}
	if *quality != "" {
		cfg.Rendering.Quality = *quality
	}
	if *logFile != "" {
		cfg.Output.LogFile = *logFile
	}
	if *verbose {
		cfg.Output.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	cfg.LogConfig().SetLogger()
	defer logging.Shutdown()
	logging.SetLogMode(cfg.LogMode())

	opts, err := cfg.RenderOptions()
	if err != nil {
		log.Fatalf("Invalid rendering configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("VOLUME VIEWER")
	fmt.Println("================================")

	series, err := reconstruction.LoadImageDir(*inputDir, cfg.Processing.PixelSpacing, cfg.Processing.SliceGap)
	if err != nil {
		log.Fatalf("Failed to read slices: %v", err)
	}

	builder := reconstruction.NewBuilder(cfg.Processing.NumCores)
	builder.FallbackSliceGap = cfg.Processing.SliceGap
	builder.FallbackPixelSpacing = cfg.Processing.PixelSpacing
	orchestrator := render.NewOrchestrator(builder, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	updates, unsubscribe := orchestrator.Subscribe()
	go func() {
		for s := range updates {
			if s.IsLoading {
				fmt.Printf("\rBuilding volume... %3.0f%%", s.LoadProgress*100)
			}
		}
	}()

	fmt.Printf("Building volume from %d slices using %d cores...\n", series.Len(), builder.NumCores)
	startTime := time.Now()
	done, err := orchestrator.Load(ctx, series)
	if err != nil {
		log.Fatalf("Failed to start loading: %v", err)
	}
	if err := <-done; err != nil {
		log.Fatalf("\nVolume construction failed: %v", err)
	}
	unsubscribe()
	processingTime := time.Since(startTime)

	state := orchestrator.Snapshot()
	vol := state.Volume
	stats := vol.Statistics()
	sp := vol.Spacing()

	fmt.Printf("\n\nVolume built successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Dimensions:      %d x %d x %d voxels\n", vol.Width(), vol.Height(), vol.Depth())
	fmt.Printf("Spacing:         %.3f x %.3f x %.3f mm\n", sp.X, sp.Y, sp.Z)
	fmt.Printf("Physical size:   %.1f x %.1f x %.1f mm\n", vol.PhysicalWidth(), vol.PhysicalHeight(), vol.PhysicalDepth())
	fmt.Printf("Memory:          %s\n", humanize.Bytes(vol.SizeInBytes()))
	fmt.Printf("Intensity range: %d - %d (mean %.1f, sd %.1f)\n", vol.MinValue(), vol.MaxValue(), stats.Mean, stats.StdDev)
	fmt.Printf("Checksum:        %016x\n", vol.Checksum())
	fmt.Printf("Rendering:       %s at %s quality (%d samples), %s\n",
		state.Mode, state.Quality, state.SamplingRate(), state.TransferFunction.Name())
	fmt.Printf("Window/level:    center %.3f, width %.3f\n", state.WindowLevel.Center, state.WindowLevel.Width)

	viewer, err := visualization.NewViewer(state)
	if err != nil {
		log.Fatalf("Failed to create viewer: %v", err)
	}
	viewer.NumCores = builder.NumCores

	orientations := []volume.Orientation{volume.Axial, volume.Sagittal, volume.Coronal}

	// Extract and save MPR slices if requested
	if *extractSlices {
		fmt.Println("\nExtracting slices along all orientations...")
		for _, o := range orientations {
			dir := filepath.Join(*slicesDir, o.String())
			n, err := viewer.SaveSliceSequence(o, dir)
			if err != nil {
				log.Printf("Warning: Failed to save %s slices: %v", o, err)
				continue
			}
			fmt.Printf("Saved %d %s slices to: %s\n", n, o, dir)
		}
	}

	if *project != "" {
		fmt.Println("\nRendering projections...")
		for _, o := range orientations {
			img, err := viewer.Project(o)
			if err != nil {
				log.Printf("Warning: Failed to project %s view: %v", o, err)
				continue
			}
			filename := fmt.Sprintf("%s_%s.png", *project, o)
			if err := visualization.SaveImage(img, filename); err != nil {
				log.Printf("Warning: Failed to save %s: %v", filename, err)
				continue
			}
			fmt.Printf("Saved %s projection to: %s\n", o, filename)
		}
	}

	if *measure != "" {
		points, err := parsePoints(*measure)
		if err != nil {
			log.Fatalf("Invalid -measure: %v", err)
		}
		list := measurement.NewList()
		if len(points) == 3 {
			list.SetTool(measurement.Angle)
		}
		for _, p := range points {
			m, complete, err := list.AddPoint(vol.PhysicalPoint(p.X, p.Y, p.Z))
			if err != nil {
				log.Fatalf("Measurement failed: %v", err)
			}
			if complete {
				fmt.Printf("\n%s measurement: %s\n", m.Type, m.FormattedValue())
			}
		}
	}
}

// parsePoints reads two or three voxel coordinates separated by semicolons.
func parsePoints(s string) ([]r3.Vec, error) {
	parts := strings.Split(s, ";")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, fmt.Errorf("need 2 or 3 points, got %d", len(parts))
	}
	points := make([]r3.Vec, 0, len(parts))
	for _, part := range parts {
		fields := strings.Split(part, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("point %q must have 3 coordinates", part)
		}
		var c [3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("point %q: %w", part, err)
			}
			c[i] = v
		}
		points = append(points, r3.Vec{X: c[0], Y: c[1], Z: c[2]})
	}
	return points, nil
}
