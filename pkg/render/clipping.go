package render

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// ClippingPlane removes the volume content on the side its normal points to.
// The normal need not be unit length; it is normalized when used.
type ClippingPlane struct {
	Position r3.Vec
	Normal   r3.Vec
	Active   bool
}

// UnitNormal returns the normalized normal, or false for a zero normal.
func (p ClippingPlane) UnitNormal() (r3.Vec, bool) {
	n := r3.Norm(p.Normal)
	if n == 0 {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, p.Normal), true
}

// SignedDistance is the distance from the plane to pt along the unit normal.
func (p ClippingPlane) SignedDistance(pt r3.Vec) float64 {
	n, ok := p.UnitNormal()
	if !ok {
		return 0
	}
	return r3.Dot(r3.Sub(pt, p.Position), n)
}

// Clips reports whether pt is removed by this plane. Inactive planes and
// planes with a zero normal clip nothing.
func (p ClippingPlane) Clips(pt r3.Vec) bool {
	if !p.Active {
		return false
	}
	if _, ok := p.UnitNormal(); !ok {
		return false
	}
	return p.SignedDistance(pt) > 0
}

// Clipped reports whether any plane clips pt.
func Clipped(planes []ClippingPlane, pt r3.Vec) bool {
	for _, p := range planes {
		if p.Clips(pt) {
			return true
		}
	}
	return false
}
