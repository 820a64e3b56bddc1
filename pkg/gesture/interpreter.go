package gesture

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"volumeviewer/pkg/logging"
)

// Config holds the classification thresholds.
type Config struct {
	// DragDeadZone is the movement in mm a pinching source must exceed
	// before a Drag is emitted
	DragDeadZone float64

	// PinchStartDistance is the thumb-to-index distance in mm below which a
	// source with tracked joints counts as pinching
	PinchStartDistance float64

	// ScaleThreshold is the minimum relative change in two-source distance
	// for a Scale
	ScaleThreshold float64

	// RotateThreshold is the minimum rotation in radians of the two-source
	// axis for a Rotate
	RotateThreshold float64

	// SwipeDistance is the open-hand travel in mm within SwipeWindow that
	// makes a Swipe
	SwipeDistance float64
	SwipeWindow   time.Duration

	// HistorySize bounds the number of frames kept
	HistorySize int

	// WindowLevelGain converts mm of travel into normalized window units
	WindowLevelGain float64
}

// DefaultConfig returns thresholds tuned for hand tracking in mm.
func DefaultConfig() Config {
	return Config{
		DragDeadZone:       4,
		PinchStartDistance: 15,
		ScaleThreshold:     0.02,
		RotateThreshold:    2 * math.Pi / 180,
		SwipeDistance:      120,
		SwipeWindow:        300 * time.Millisecond,
		HistorySize:        32,
		WindowLevelGain:    0.002,
	}
}

type twoHandState struct {
	active bool
	dist   float64
	axis   r3.Vec
}

// Interpreter classifies frames into at most one gesture per evaluation.
// Classification depends only on the current frame and the recent history.
type Interpreter struct {
	cfg        Config
	processing atomic.Bool

	mu          sync.Mutex
	history     []Frame
	anchors     map[Source]r3.Vec
	twoHand     twoHandState
	windowLevel bool
}

// NewInterpreter creates an interpreter with the given thresholds.
func NewInterpreter(cfg Config) *Interpreter {
	if cfg.HistorySize < 2 {
		cfg.HistorySize = 2
	}
	return &Interpreter{
		cfg:     cfg,
		anchors: make(map[Source]r3.Vec),
	}
}

// IsProcessing is true only while a classification pass is running.
func (in *Interpreter) IsProcessing() bool {
	return in.processing.Load()
}

// SetWindowLevelMode switches single-source drags to window/level deltas.
func (in *Interpreter) SetWindowLevelMode(on bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.windowLevel = on
}

func (in *Interpreter) WindowLevelMode() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.windowLevel
}

// Reset forgets all history and in-progress gestures.
func (in *Interpreter) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.history = nil
	in.anchors = make(map[Source]r3.Vec)
	in.twoHand = twoHandState{}
}

// Evaluate classifies frame. It returns false when no gesture is recognized
// or when called while another evaluation is running.
func (in *Interpreter) Evaluate(frame Frame) (Gesture, bool) {
	if !in.processing.CompareAndSwap(false, true) {
		return nil, false
	}
	defer in.processing.Store(false)

	in.mu.Lock()
	defer in.mu.Unlock()

	frame = in.sanitize(frame)
	g := in.classify(frame)
	in.history = append(in.history, frame)
	if n := len(in.history) - in.cfg.HistorySize; n > 0 {
		in.history = append(in.history[:0], in.history[n:]...)
	}
	if g != nil {
		logging.Debugf("Recognized gesture %s", g)
		return g, true
	}
	return nil, false
}

// sanitize keeps at most one sample per source and resolves pinch state
// from joints when the device reports them.
func (in *Interpreter) sanitize(frame Frame) Frame {
	out := Frame{Time: frame.Time}
	seen := make(map[Source]bool)
	for _, h := range frame.Hands {
		if seen[h.Source] || (h.Source != Primary && h.Source != Secondary) {
			continue
		}
		seen[h.Source] = true
		if !h.Pinching && len(h.Joints) > IndexTip && in.cfg.PinchStartDistance > 0 {
			h.Pinching = r3.Norm(r3.Sub(h.Joints[ThumbTip], h.Joints[IndexTip])) < in.cfg.PinchStartDistance
		}
		out.Hands = append(out.Hands, h)
	}
	return out
}

func (in *Interpreter) classify(frame Frame) Gesture {
	var pinching []HandSample
	for _, h := range frame.Hands {
		if h.Pinching {
			pinching = append(pinching, h)
		}
	}

	switch len(pinching) {
	case 2:
		in.anchors = make(map[Source]r3.Vec)
		return in.classifyTwoHand(pinching[0], pinching[1])
	case 1:
		in.twoHand = twoHandState{}
		return in.classifySingle(pinching[0])
	default:
		in.twoHand = twoHandState{}
		in.anchors = make(map[Source]r3.Vec)
		return in.classifySwipe(frame)
	}
}

func (in *Interpreter) classifyTwoHand(a, b HandSample) Gesture {
	if a.Source > b.Source {
		a, b = b, a
	}
	axis := r3.Sub(b.Position, a.Position)
	dist := r3.Norm(axis)
	if dist == 0 {
		return nil
	}
	if !in.twoHand.active {
		in.twoHand = twoHandState{active: true, dist: dist, axis: axis}
		return nil
	}

	factor := dist / in.twoHand.dist
	if math.Abs(factor-1) >= in.cfg.ScaleThreshold {
		in.twoHand.dist = dist
		in.twoHand.axis = axis
		return Scale{Factor: factor}
	}

	cos := r3.Dot(axis, in.twoHand.axis) / (dist * r3.Norm(in.twoHand.axis))
	angle := math.Acos(math.Max(-1, math.Min(1, cos)))
	cross := r3.Cross(in.twoHand.axis, axis)
	if angle >= in.cfg.RotateThreshold && r3.Norm(cross) > 0 {
		in.twoHand.axis = axis
		return Rotate{Delta: quat.Number(r3.NewRotation(angle, cross))}
	}
	return nil
}

func (in *Interpreter) classifySingle(h HandSample) Gesture {
	for src := range in.anchors {
		if src != h.Source {
			delete(in.anchors, src)
		}
	}
	anchor, held := in.anchors[h.Source]
	if !held {
		in.anchors[h.Source] = h.Position
		return Pinch{Source: h.Source, Position: h.Position}
	}

	delta := r3.Sub(h.Position, anchor)
	if r3.Norm(delta) < in.cfg.DragDeadZone {
		return nil
	}
	in.anchors[h.Source] = h.Position
	if in.windowLevel {
		return WindowLevelDelta{
			Center: delta.Y * in.cfg.WindowLevelGain,
			Width:  delta.X * in.cfg.WindowLevelGain,
		}
	}
	return Drag{Source: h.Source, Delta: delta}
}

// classifySwipe looks back through the history for the oldest open-hand
// sample of each source inside the swipe window and checks its travel.
func (in *Interpreter) classifySwipe(frame Frame) Gesture {
	for _, h := range frame.Hands {
		var start *HandSample
		for i := len(in.history) - 1; i >= 0; i-- {
			past := in.history[i]
			if frame.Time.Sub(past.Time) > in.cfg.SwipeWindow {
				break
			}
			prev, ok := past.hand(h.Source)
			if !ok || prev.Pinching {
				break
			}
			start = &prev
		}
		if start == nil {
			continue
		}

		d := r3.Sub(h.Position, start.Position)
		ax, ay := math.Abs(d.X), math.Abs(d.Y)
		var dir Direction
		switch {
		case ax >= in.cfg.SwipeDistance && ax > 2*ay:
			dir = Right
			if d.X < 0 {
				dir = Left
			}
		case ay >= in.cfg.SwipeDistance && ay > 2*ax:
			dir = Up
			if d.Y < 0 {
				dir = Down
			}
		default:
			continue
		}
		// One swipe per movement.
		in.history = in.history[:0]
		return Swipe{Direction: dir}
	}
	return nil
}
