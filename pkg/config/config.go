// Package config provides configuration loading and management for volumeviewer.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"volumeviewer/pkg/gesture"
	"volumeviewer/pkg/logging"
	"volumeviewer/pkg/render"
	"volumeviewer/pkg/transfer"
)

// Config represents the application configuration
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use when stacking slices
		NumCores int `yaml:"numCores" toml:"numCores"`

		// SliceGap is the fallback distance between consecutive slices in mm,
		// used when the series carries no slice locations or thickness
		SliceGap float64 `yaml:"sliceGap" toml:"sliceGap"`

		// PixelSpacing is the fallback in-plane pixel size in mm
		PixelSpacing float64 `yaml:"pixelSpacing" toml:"pixelSpacing"`
	} `yaml:"processing" toml:"processing"`

	// Rendering parameters
	Rendering struct {
		// Quality is one of low, medium or high
		Quality string `yaml:"quality" toml:"quality"`

		// Mode is one of mip, dvr or isosurface
		Mode string `yaml:"mode" toml:"mode"`

		// Preset names the transfer function selected at startup. It may
		// name a preset or one of TransferFunctions.
		Preset string `yaml:"preset" toml:"preset"`

		// IsoThreshold and IsoTolerance configure the isosurface mode
		IsoThreshold float64 `yaml:"isoThreshold" toml:"isoThreshold"`
		IsoTolerance float64 `yaml:"isoTolerance" toml:"isoTolerance"`

		// SliceCacheMB sizes the MPR slice cache
		SliceCacheMB int `yaml:"sliceCacheMB" toml:"sliceCacheMB"`
	} `yaml:"rendering" toml:"rendering"`

	// Gesture thresholds, distances in mm
	Gesture struct {
		DragDeadZone       float64 `yaml:"dragDeadZone" toml:"dragDeadZone"`
		PinchStartDistance float64 `yaml:"pinchStartDistance" toml:"pinchStartDistance"`
		ScaleThreshold     float64 `yaml:"scaleThreshold" toml:"scaleThreshold"`

		// RotateThreshold is in degrees
		RotateThreshold float64 `yaml:"rotateThreshold" toml:"rotateThreshold"`
		SwipeDistance   float64 `yaml:"swipeDistance" toml:"swipeDistance"`
		SwipeWindowMs   int     `yaml:"swipeWindowMs" toml:"swipeWindowMs"`
		HistorySize     int     `yaml:"historySize" toml:"historySize"`
		WindowLevelGain float64 `yaml:"windowLevelGain" toml:"windowLevelGain"`
	} `yaml:"gesture" toml:"gesture"`

	// TransferFunctions are user-defined opacity curves
	TransferFunctions []transfer.Definition `yaml:"transferFunctions" toml:"transferFunctions"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose" toml:"verbose"`

		// LogFile, when set, receives log output with rotation
		LogFile    string `yaml:"logFile" toml:"logFile"`
		MaxLogSize int    `yaml:"maxLogSize" toml:"maxLogSize"`
		MaxLogAge  int    `yaml:"maxLogAge" toml:"maxLogAge"`
	} `yaml:"output" toml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.SliceGap = 1.0
	cfg.Processing.PixelSpacing = 1.0

	cfg.Rendering.Quality = render.Medium.String()
	cfg.Rendering.Mode = render.DirectVolume{}.String()
	cfg.Rendering.Preset = transfer.SoftTissue
	cfg.Rendering.IsoThreshold = render.DefaultIsosurface.Threshold
	cfg.Rendering.IsoTolerance = render.DefaultIsosurface.Tolerance
	cfg.Rendering.SliceCacheMB = 64

	g := gesture.DefaultConfig()
	cfg.Gesture.DragDeadZone = g.DragDeadZone
	cfg.Gesture.PinchStartDistance = g.PinchStartDistance
	cfg.Gesture.ScaleThreshold = g.ScaleThreshold
	cfg.Gesture.RotateThreshold = g.RotateThreshold * 180 / math.Pi
	cfg.Gesture.SwipeDistance = g.SwipeDistance
	cfg.Gesture.SwipeWindowMs = int(g.SwipeWindow / time.Millisecond)
	cfg.Gesture.HistorySize = g.HistorySize
	cfg.Gesture.WindowLevelGain = g.WindowLevelGain

	cfg.Output.Verbose = false
	cfg.Output.MaxLogSize = 100
	cfg.Output.MaxLogAge = 30

	return cfg
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML file, or a TOML file when the
// path ends in .toml. If the file doesn't exist, it returns the default
// configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration in the format given by the file extension
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = []byte(sb.String())
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks that every named setting resolves.
func (c *Config) Validate() error {
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("numCores must not be negative, got %d", c.Processing.NumCores)
	}
	if !(c.Processing.SliceGap > 0) || !(c.Processing.PixelSpacing > 0) {
		return fmt.Errorf("sliceGap and pixelSpacing must be positive")
	}
	if _, err := c.CustomTransferFunctions(); err != nil {
		return err
	}
	if _, err := c.RenderOptions(); err != nil {
		return err
	}
	if c.Gesture.HistorySize < 0 || c.Gesture.SwipeWindowMs < 0 {
		return fmt.Errorf("historySize and swipeWindowMs must not be negative")
	}
	return nil
}

// CustomTransferFunctions builds the user-defined transfer functions.
func (c *Config) CustomTransferFunctions() ([]*transfer.Function, error) {
	fns := make([]*transfer.Function, 0, len(c.TransferFunctions))
	seen := make(map[string]bool)
	for _, d := range c.TransferFunctions {
		key := strings.ToLower(d.Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate transfer function %q", d.Name)
		}
		seen[key] = true

		f, err := transfer.FromDefinition(d)
		if err != nil {
			return nil, err
		}
		fns = append(fns, f)
	}
	return fns, nil
}

// TransferFunction resolves a name against the presets first, then the
// user-defined functions.
func (c *Config) TransferFunction(name string) (*transfer.Function, error) {
	if f, ok := transfer.Preset(name); ok {
		return f, nil
	}
	custom, err := c.CustomTransferFunctions()
	if err != nil {
		return nil, err
	}
	for _, f := range custom {
		if strings.EqualFold(f.Name(), name) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("unknown transfer function %q", name)
}

// RenderOptions converts the rendering section into orchestrator options.
func (c *Config) RenderOptions() (render.Options, error) {
	var opts render.Options

	q, err := render.ParseQuality(c.Rendering.Quality)
	if err != nil {
		return opts, err
	}
	m, err := render.ParseMode(c.Rendering.Mode)
	if err != nil {
		return opts, err
	}
	if iso, ok := m.(render.Isosurface); ok {
		iso.Threshold = c.Rendering.IsoThreshold
		iso.Tolerance = c.Rendering.IsoTolerance
		if iso.Threshold < 0 || iso.Threshold > 1 || iso.Tolerance < 0 {
			return opts, fmt.Errorf("isosurface threshold must be in [0,1] and tolerance non-negative")
		}
		m = iso
	}
	tf := transfer.Default()
	if c.Rendering.Preset != "" {
		if tf, err = c.TransferFunction(c.Rendering.Preset); err != nil {
			return opts, err
		}
	}

	opts.Quality = q
	opts.Mode = m
	opts.TransferFunction = tf
	opts.SliceCacheMB = c.Rendering.SliceCacheMB
	return opts, nil
}

// GestureConfig converts the gesture section into interpreter thresholds.
func (c *Config) GestureConfig() gesture.Config {
	return gesture.Config{
		DragDeadZone:       c.Gesture.DragDeadZone,
		PinchStartDistance: c.Gesture.PinchStartDistance,
		ScaleThreshold:     c.Gesture.ScaleThreshold,
		RotateThreshold:    c.Gesture.RotateThreshold * math.Pi / 180,
		SwipeDistance:      c.Gesture.SwipeDistance,
		SwipeWindow:        time.Duration(c.Gesture.SwipeWindowMs) * time.Millisecond,
		HistorySize:        c.Gesture.HistorySize,
		WindowLevelGain:    c.Gesture.WindowLevelGain,
	}
}

// LogConfig returns the logging settings of the output section.
func (c *Config) LogConfig() *logging.LogConfig {
	return &logging.LogConfig{
		Logfile: c.Output.LogFile,
		MaxSize: c.Output.MaxLogSize,
		MaxAge:  c.Output.MaxLogAge,
	}
}

// LogMode returns the log level implied by the output section.
func (c *Config) LogMode() logging.ModeFlag {
	if c.Output.Verbose {
		return logging.DebugMode
	}
	return logging.InfoMode
}
