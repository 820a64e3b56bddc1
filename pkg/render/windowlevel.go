package render

import (
	"math"

	"volumeviewer/pkg/volume"
)

// Window bounds in normalized intensity.
const (
	MinWindowWidth = 1.0 / 4096
	MaxWindowWidth = 1.0
)

// WindowLevel selects the band of normalized intensities mapped to the full
// display range.
type WindowLevel struct {
	Center float64
	Width  float64
}

// DefaultWindowLevel covers the whole intensity range.
func DefaultWindowLevel() WindowLevel {
	return WindowLevel{Center: 0.5, Width: 1}
}

func (w WindowLevel) clamped() WindowLevel {
	if math.IsNaN(w.Center) {
		w.Center = 0.5
	}
	if math.IsNaN(w.Width) {
		w.Width = MaxWindowWidth
	}
	w.Center = math.Max(0, math.Min(1, w.Center))
	w.Width = math.Max(MinWindowWidth, math.Min(MaxWindowWidth, w.Width))
	return w
}

// Adjust shifts the center and width, keeping both in range.
func (w WindowLevel) Adjust(dCenter, dWidth float64) WindowLevel {
	return WindowLevel{Center: w.Center + dCenter, Width: w.Width + dWidth}.clamped()
}

// Apply maps a normalized intensity through the window to [0,1].
func (w WindowLevel) Apply(n float64) float64 {
	lo := w.Center - w.Width/2
	return math.Max(0, math.Min(1, (n-lo)/w.Width))
}

// AutoWindowLevel centers the window on the mean intensity and spans four
// standard deviations.
func AutoWindowLevel(v *volume.Volume) WindowLevel {
	stats := v.Statistics()
	span := float64(v.MaxValue()) - float64(v.MinValue())
	if span <= 0 {
		return DefaultWindowLevel()
	}
	return WindowLevel{
		Center: v.Normalized(stats.Mean),
		Width:  4 * stats.StdDev / span,
	}.clamped()
}
