package transfer

import (
	"fmt"
	"strings"
)

// Preset names
const (
	Bone       = "Bone"
	SoftTissue = "Soft Tissue"
	Vascular   = "Vascular"
	Lung       = "Lung"
)

// presets are built once at startup and never modified.
var presets = []*Function{
	{
		name:     Bone,
		isPreset: true,
		points: []ControlPoint{
			{0.0, 0.0},
			{0.35, 0.0},
			{0.5, 0.15},
			{0.7, 0.7},
			{1.0, 0.95},
		},
	},
	{
		name:     SoftTissue,
		isPreset: true,
		points: []ControlPoint{
			{0.0, 0.0},
			{0.15, 0.0},
			{0.3, 0.25},
			{0.45, 0.45},
			{0.6, 0.2},
			{1.0, 0.05},
		},
	},
	{
		name:     Vascular,
		isPreset: true,
		points: []ControlPoint{
			{0.0, 0.0},
			{0.45, 0.0},
			{0.55, 0.6},
			{0.7, 0.85},
			{1.0, 0.3},
		},
	},
	{
		name:     Lung,
		isPreset: true,
		points: []ControlPoint{
			{0.0, 0.0},
			{0.05, 0.35},
			{0.2, 0.15},
			{0.3, 0.0},
			{1.0, 0.0},
		},
	},
}

// Presets returns the built-in functions in display order.
func Presets() []*Function {
	return append([]*Function(nil), presets...)
}

// Default is the function selected before the user picks one.
func Default() *Function {
	return presets[1]
}

// Preset looks up a built-in function by name, ignoring case.
func Preset(name string) (*Function, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.name, name) {
			return p, true
		}
	}
	return nil, false
}

// Cycle returns the preset offset steps away from current, wrapping around.
// A current function that is not a preset starts from the first preset.
func Cycle(current *Function, steps int) *Function {
	idx := 0
	for i, p := range presets {
		if p.Equal(current) {
			idx = i
			break
		}
	}
	n := len(presets)
	return presets[((idx+steps)%n+n)%n]
}

// Definition is the serializable form of a user-defined function
type Definition struct {
	Name   string       `yaml:"name" toml:"name"`
	Points [][2]float64 `yaml:"points" toml:"points"`
}

// FromDefinition builds a user-defined function from its serialized form.
// Names may not shadow a preset.
func FromDefinition(d Definition) (*Function, error) {
	if _, ok := Preset(d.Name); ok {
		return nil, fmt.Errorf("transfer function %q conflicts with a preset", d.Name)
	}
	points := make([]ControlPoint, len(d.Points))
	for i, p := range d.Points {
		points[i] = ControlPoint{Position: p[0], Opacity: p[1]}
	}
	return New(d.Name, points)
}
