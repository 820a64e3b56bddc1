package measurement

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// List accumulates points placed by the interaction layer into measurements
// and owns the completed measurements until they are deleted or cleared.
type List struct {
	mu           sync.Mutex
	tool         Type
	pending      []r3.Vec
	measurements []Measurement
}

// NewList creates an empty list with the length tool selected.
func NewList() *List {
	return &List{tool: Length}
}

// SetTool selects the kind of the next measurement and drops pending points.
func (l *List) SetTool(t Type) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tool = t
	l.pending = nil
}

func (l *List) Tool() Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tool
}

// Pending returns a copy of the points placed toward the next measurement.
func (l *List) Pending() []r3.Vec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]r3.Vec(nil), l.pending...)
}

// AddPoint places a point. When enough points are placed for the current
// tool the measurement is completed, appended and returned with true. A
// degenerate angle discards the pending points and returns the error.
func (l *List) AddPoint(p r3.Vec) (Measurement, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, p)
	if len(l.pending) < l.tool.PointsRequired() {
		return Measurement{}, false, nil
	}
	pts := l.pending
	l.pending = nil

	var m Measurement
	switch l.tool {
	case Length:
		m = NewLength(pts[0], pts[1])
	case Angle:
		var err error
		if m, err = NewAngle(pts[0], pts[1], pts[2]); err != nil {
			return Measurement{}, false, fmt.Errorf("angle not recorded: %w", err)
		}
	default:
		return Measurement{}, false, fmt.Errorf("unknown measurement tool %s", l.tool)
	}
	l.measurements = append(l.measurements, m)
	return m, true, nil
}

// Measurements returns a copy of the completed measurements in creation order.
func (l *List) Measurements() []Measurement {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Measurement, len(l.measurements))
	copy(out, l.measurements)
	return out
}

// Delete removes the measurement with the given ID and reports whether it
// was present.
func (l *List) Delete(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, m := range l.measurements {
		if m.ID == id {
			l.measurements = append(l.measurements[:i], l.measurements[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every measurement and pending point.
func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.measurements = nil
	l.pending = nil
}
