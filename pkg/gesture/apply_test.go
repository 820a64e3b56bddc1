package gesture

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"volumeviewer/pkg/render"
	"volumeviewer/pkg/transfer"
)

func TestApplyToOrchestrator(t *testing.T) {
	o := render.NewOrchestrator(nil, render.DefaultOptions())
	start := o.Snapshot().Version

	if Apply(Pinch{Source: Primary}, o) {
		t.Error("Expected pinch to change nothing")
	}
	if o.Snapshot().Version != start {
		t.Error("Expected no new version after pinch")
	}

	Apply(Drag{Delta: r3.Vec{X: 5, Y: -2}}, o)
	if got := o.Snapshot().Transform.Position; got != (r3.Vec{X: 5, Y: -2}) {
		t.Errorf("Expected position (5,-2,0), got %v", got)
	}

	Apply(Scale{Factor: 2}, o)
	if got := o.Snapshot().Transform.Scale; got != 2 {
		t.Errorf("Expected scale 2, got %f", got)
	}

	Apply(Rotate{Delta: render.AxisAngle(r3.Vec{Z: 1}, math.Pi/2)}, o)
	got := r3.Rotation(o.Snapshot().Transform.Rotation).Rotate(r3.Vec{X: 1})
	if r3.Norm(r3.Sub(got, r3.Vec{Y: 1})) > 1e-9 {
		t.Errorf("Expected x axis rotated onto y, got %v", got)
	}

	Apply(WindowLevelDelta{Center: -0.1, Width: -0.5}, o)
	wl := o.Snapshot().WindowLevel
	if math.Abs(wl.Center-0.4) > 1e-9 || math.Abs(wl.Width-0.5) > 1e-9 {
		t.Errorf("Expected window (0.4, 0.5), got (%f, %f)", wl.Center, wl.Width)
	}
}

func TestApplySwipe(t *testing.T) {
	o := render.NewOrchestrator(nil, render.DefaultOptions())

	Apply(Swipe{Direction: Right}, o)
	if name := o.Snapshot().TransferFunction.Name(); name != transfer.Vascular {
		t.Errorf("Expected %s after swipe right, got %s", transfer.Vascular, name)
	}
	Apply(Swipe{Direction: Left}, o)
	Apply(Swipe{Direction: Left}, o)
	if name := o.Snapshot().TransferFunction.Name(); name != transfer.Bone {
		t.Errorf("Expected %s after two swipes left, got %s", transfer.Bone, name)
	}

	Apply(Swipe{Direction: Up}, o)
	if q := o.Snapshot().Quality; q != render.High {
		t.Errorf("Expected high quality, got %s", q)
	}
	Apply(Swipe{Direction: Up}, o)
	if q := o.Snapshot().Quality; q != render.High {
		t.Errorf("Expected quality to saturate at high, got %s", q)
	}
	Apply(Swipe{Direction: Down}, o)
	Apply(Swipe{Direction: Down}, o)
	if q := o.Snapshot().Quality; q != render.Low {
		t.Errorf("Expected low quality, got %s", q)
	}
}

func TestEvaluateAndApply(t *testing.T) {
	o := render.NewOrchestrator(nil, render.DefaultOptions())
	in := NewInterpreter(DefaultConfig())

	frames := []Frame{
		at(0, pinch(Primary, 0, 0, 0), pinch(Secondary, 100, 0, 0)),
		at(16, pinch(Primary, 0, 0, 0), pinch(Secondary, 300, 0, 0)),
	}
	for _, f := range frames {
		if g, ok := in.Evaluate(f); ok {
			Apply(g, o)
		}
	}
	if s := o.Snapshot().Transform.Scale; s != 3 {
		t.Errorf("Expected scale 3, got %f", s)
	}
}
