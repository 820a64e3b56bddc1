// Package gesture turns raw hand or pointer samples into discrete
// manipulation commands for the view state.
package gesture

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Source identifies one of the two tracked inputs
type Source int

const (
	Primary Source = iota
	Secondary
)

func (s Source) String() string {
	switch s {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Joint indices into HandSample.Joints
const (
	ThumbTip = iota
	IndexTip
)

// HandSample is one tracked hand or pointer in one evaluation cycle.
// Positions are in scene units (mm).
type HandSample struct {
	Source      Source
	Position    r3.Vec
	Orientation quat.Number
	Pinching    bool

	// Joints holds tracked joint positions, indexed by ThumbTip, IndexTip, ...
	Joints []r3.Vec
}

// Frame is the input delivered once per evaluation cycle.
type Frame struct {
	Time  time.Time
	Hands []HandSample
}

// hand returns the sample for a source in the frame.
func (f Frame) hand(src Source) (HandSample, bool) {
	for _, h := range f.Hands {
		if h.Source == src {
			return h, true
		}
	}
	return HandSample{}, false
}

// Direction of a swipe
type Direction int

const (
	Left Direction = iota
	Right
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Gesture is a recognized command. The set is closed: Pinch, Drag, Rotate,
// Scale, Swipe and WindowLevelDelta are the only implementations.
type Gesture interface {
	isGesture()
	String() string
}

// Pinch is emitted when a single source starts pinching.
type Pinch struct {
	Source   Source
	Position r3.Vec
}

// Drag is the movement of a single pinching source since the last command.
type Drag struct {
	Source Source
	Delta  r3.Vec
}

// Rotate is the rotation of the axis between two pinching sources.
type Rotate struct {
	Delta quat.Number
}

// Scale is the relative change in distance between two pinching sources.
type Scale struct {
	Factor float64
}

// Swipe is a fast open-hand movement along one screen axis.
type Swipe struct {
	Direction Direction
}

// WindowLevelDelta replaces Drag while window/level mode is on: horizontal
// movement changes the width and vertical movement the center, both in
// normalized intensity.
type WindowLevelDelta struct {
	Center float64
	Width  float64
}

func (Pinch) isGesture()            {}
func (Drag) isGesture()             {}
func (Rotate) isGesture()           {}
func (Scale) isGesture()            {}
func (Swipe) isGesture()            {}
func (WindowLevelDelta) isGesture() {}

func (g Pinch) String() string  { return fmt.Sprintf("pinch(%s)", g.Source) }
func (g Drag) String() string   { return fmt.Sprintf("drag(%.1f, %.1f, %.1f)", g.Delta.X, g.Delta.Y, g.Delta.Z) }
func (g Rotate) String() string { return fmt.Sprintf("rotate(%v)", g.Delta) }
func (g Scale) String() string  { return fmt.Sprintf("scale(%.3f)", g.Factor) }
func (g Swipe) String() string  { return fmt.Sprintf("swipe(%s)", g.Direction) }
func (g WindowLevelDelta) String() string {
	return fmt.Sprintf("window/level(%+.3f, %+.3f)", g.Center, g.Width)
}
