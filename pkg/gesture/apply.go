package gesture

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Target receives the commands gestures map to. render.Orchestrator
// implements it.
type Target interface {
	Translate(delta r3.Vec)
	Rotate(delta quat.Number)
	ScaleBy(factor float64)
	CyclePreset(steps int)
	StepQuality(steps int)
	AdjustWindowLevel(dCenter, dWidth float64)
}

// Apply performs the command for g on t and reports whether any state was
// changed. A Pinch only marks the start of an interaction and changes nothing.
func Apply(g Gesture, t Target) bool {
	switch g := g.(type) {
	case Pinch:
		return false
	case Drag:
		t.Translate(g.Delta)
	case Rotate:
		t.Rotate(g.Delta)
	case Scale:
		t.ScaleBy(g.Factor)
	case Swipe:
		switch g.Direction {
		case Left:
			t.CyclePreset(-1)
		case Right:
			t.CyclePreset(1)
		case Up:
			t.StepQuality(1)
		case Down:
			t.StepQuality(-1)
		default:
			panic(fmt.Sprintf("gesture: unhandled swipe direction %s", g.Direction))
		}
	case WindowLevelDelta:
		t.AdjustWindowLevel(g.Center, g.Width)
	case nil:
		return false
	default:
		panic(fmt.Sprintf("gesture: unhandled gesture %T", g))
	}
	return true
}
