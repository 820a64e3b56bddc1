package render

import (
	"fmt"
	"strings"
)

// Mode selects how the front end accumulates samples along a ray. The set of
// modes is closed: MIP, DirectVolume and Isosurface are the only
// implementations, and consumers switch over them exhaustively.
type Mode interface {
	isMode()
	String() string
}

// MIP keeps the maximum scalar value along each ray. The transfer function
// only maps that single maximum for display.
type MIP struct{}

// DirectVolume composites samples front to back weighted by the transfer
// function opacity.
type DirectVolume struct{}

// Isosurface shows only samples within Tolerance of Threshold, both in
// normalized intensity. Nothing is accumulated.
type Isosurface struct {
	Threshold float64
	Tolerance float64
}

func (MIP) isMode()          {}
func (DirectVolume) isMode() {}
func (Isosurface) isMode()   {}

func (MIP) String() string          { return "mip" }
func (DirectVolume) String() string { return "dvr" }
func (m Isosurface) String() string {
	return fmt.Sprintf("isosurface(%.3f±%.3f)", m.Threshold, m.Tolerance)
}

// DefaultIsosurface is used when isosurface mode is selected by name alone.
var DefaultIsosurface = Isosurface{Threshold: 0.5, Tolerance: 0.02}

// ParseMode accepts "mip", "dvr" (or "direct") and "isosurface" (or "iso").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mip":
		return MIP{}, nil
	case "dvr", "direct":
		return DirectVolume{}, nil
	case "isosurface", "iso":
		return DefaultIsosurface, nil
	}
	return nil, fmt.Errorf("invalid render mode: %s (must be mip, dvr or isosurface)", s)
}

// Quality trades rendering speed for sampling density
type Quality int

const (
	Low Quality = iota
	Medium
	High
)

// SamplingRate is the number of samples taken along the longest ray through
// the volume. Front ends must use exactly this rate.
func (q Quality) SamplingRate() int {
	switch q {
	case Low:
		return 128
	case Medium:
		return 256
	case High:
		return 512
	}
	return 0
}

func (q Quality) Valid() bool {
	return q >= Low && q <= High
}

// Step returns the quality steps levels away, saturating at Low and High.
func (q Quality) Step(steps int) Quality {
	n := int(q) + steps
	if n < int(Low) {
		return Low
	}
	if n > int(High) {
		return High
	}
	return Quality(n)
}

func (q Quality) String() string {
	switch q {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Quality(%d)", int(q))
	}
}

// ParseQuality accepts "low", "medium" and "high".
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return Low, nil
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	}
	return 0, fmt.Errorf("invalid render quality: %s (must be low, medium or high)", s)
}
