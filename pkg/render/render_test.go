package render

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"volumeviewer/pkg/transfer"
	"volumeviewer/pkg/volume"
)

func TestSamplingRates(t *testing.T) {
	want := map[Quality]int{Low: 128, Medium: 256, High: 512}
	for q, rate := range want {
		if got := q.SamplingRate(); got != rate {
			t.Errorf("%s: expected sampling rate %d, got %d", q, rate, got)
		}
	}
	if Low.Step(-1) != Low || High.Step(1) != High || Low.Step(1) != Medium {
		t.Error("Expected quality steps to saturate at the ends")
	}
}

func TestParse(t *testing.T) {
	if q, err := ParseQuality("High"); err != nil || q != High {
		t.Errorf("Expected High, got %v (%v)", q, err)
	}
	if _, err := ParseQuality("ultra"); err == nil {
		t.Error("Expected error for unknown quality")
	}

	modes := map[string]Mode{"mip": MIP{}, "DVR": DirectVolume{}, "iso": DefaultIsosurface}
	for in, want := range modes {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; expected %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("xray"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestModelMatrix(t *testing.T) {
	tr := Transform{
		Position: r3.Vec{X: 1, Y: 2, Z: 3},
		Rotation: AxisAngle(r3.Vec{Z: 1}, math.Pi/2),
		Scale:    2,
	}
	m := tr.ModelMatrix()

	// (1,0,0) scales to (2,0,0), rotates to (0,2,0), translates to (1,4,3).
	p := [4]float64{1, 0, 0, 1}
	var got [4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			got[i] += m.At(i, j) * p[j]
		}
	}
	want := [4]float64{1, 4, 3, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Expected transformed point %v, got %v", want, got)
			break
		}
	}

	applied := tr.Apply(r3.Vec{X: 1})
	if r3.Norm(r3.Sub(applied, r3.Vec{X: 1, Y: 4, Z: 3})) > 1e-9 {
		t.Errorf("Expected Apply to agree with the matrix, got %v", applied)
	}

	id := Identity().ModelMatrix()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if id.At(i, j) != want {
				t.Fatalf("Expected identity matrix, got %v at (%d,%d)", id.At(i, j), i, j)
			}
		}
	}
}

func TestClippingPlane(t *testing.T) {
	p := ClippingPlane{Position: r3.Vec{X: 5}, Normal: r3.Vec{X: 3}, Active: true}
	if !p.Clips(r3.Vec{X: 6}) {
		t.Error("Expected point on the normal side to be clipped")
	}
	if p.Clips(r3.Vec{X: 4}) {
		t.Error("Expected point behind the plane to be kept")
	}
	if d := p.SignedDistance(r3.Vec{X: 7}); d != 2 {
		t.Errorf("Expected signed distance 2 with unnormalized normal, got %f", d)
	}

	p.Active = false
	if p.Clips(r3.Vec{X: 6}) {
		t.Error("Expected inactive plane to clip nothing")
	}
	zero := ClippingPlane{Active: true}
	if zero.Clips(r3.Vec{X: 1}) {
		t.Error("Expected zero normal to clip nothing")
	}
}

func TestWindowLevel(t *testing.T) {
	w := WindowLevel{Center: 0.5, Width: 0.5}
	cases := map[float64]float64{0: 0, 0.25: 0, 0.5: 0.5, 0.75: 1, 1: 1}
	for in, want := range cases {
		if got := w.Apply(in); got != want {
			t.Errorf("Apply(%g) = %g, expected %g", in, got, want)
		}
	}
	if adj := w.Adjust(1, 2); adj.Center != 1 || adj.Width != MaxWindowWidth {
		t.Errorf("Expected adjustment clamped to (1, 1), got %+v", adj)
	}
}

func TestAutoWindowLevel(t *testing.T) {
	v, _ := volume.New(volume.Params{
		Width: 2, Height: 1, Depth: 2,
		Voxels:   []uint16{0, 100, 100, 200},
		MinValue: 0, MaxValue: 200,
		Spacing: volume.Spacing{X: 1, Y: 1, Z: 1},
	})
	wl := AutoWindowLevel(v)
	if wl.Center != 0.5 {
		t.Errorf("Expected center 0.5, got %f", wl.Center)
	}
	if wl.Width != 1 {
		t.Errorf("Expected width clamped to 1, got %f", wl.Width)
	}
}

// rampVolume has intensity equal to 10*z so rays along z see a ramp.
func rampVolume(t *testing.T) *volume.Volume {
	t.Helper()
	w, h, d := 3, 3, 11
	voxels := make([]uint16, w*h*d)
	for z := 0; z < d; z++ {
		for i := 0; i < w*h; i++ {
			voxels[i+z*w*h] = uint16(10 * z)
		}
	}
	v, err := volume.New(volume.Params{
		Width: w, Height: h, Depth: d,
		Voxels:   voxels,
		MinValue: 0, MaxValue: 100,
		Spacing: volume.Spacing{X: 1, Y: 1, Z: 1},
	})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return v
}

func rayParams(v *volume.Volume, mode Mode) RayParams {
	linear, _ := transfer.New("linear", []transfer.ControlPoint{{Position: 0, Opacity: 0}, {Position: 1, Opacity: 1}})
	return RayParams{
		Volume:           v,
		TransferFunction: linear,
		Mode:             mode,
		WindowLevel:      DefaultWindowLevel(),
		SamplingRate:     Medium.SamplingRate(),
	}
}

func TestCastRayMIP(t *testing.T) {
	v := rampVolume(t)
	res := CastRay(rayParams(v, MIP{}), r3.Vec{X: 1, Y: 1, Z: -5}, r3.Vec{Z: 1})
	if res.Samples == 0 {
		t.Fatal("Expected the ray to hit the volume")
	}
	if math.Abs(res.Value-1) > 1e-9 {
		t.Errorf("Expected MIP maximum 1, got %f", res.Value)
	}
	if math.Abs(res.Opacity-1) > 1e-9 {
		t.Errorf("Expected display opacity of the maximum, got %f", res.Opacity)
	}

	miss := CastRay(rayParams(v, MIP{}), r3.Vec{X: 50, Y: 1, Z: -5}, r3.Vec{Z: 1})
	if miss.Samples != 0 || miss.Value != 0 {
		t.Errorf("Expected missed ray to be empty, got %+v", miss)
	}
}

func TestCastRayClipping(t *testing.T) {
	v := rampVolume(t)
	p := rayParams(v, MIP{})
	// Remove everything above z = 5.
	p.ClippingPlanes = []ClippingPlane{{Position: r3.Vec{Z: 5}, Normal: r3.Vec{Z: 1}, Active: true}}
	res := CastRay(p, r3.Vec{X: 1, Y: 1, Z: -5}, r3.Vec{Z: 1})
	if res.Value > 0.5+1e-9 {
		t.Errorf("Expected clipped maximum <= 0.5, got %f", res.Value)
	}
}

func TestCastRayDirectVolume(t *testing.T) {
	v := rampVolume(t)
	res := CastRay(rayParams(v, DirectVolume{}), r3.Vec{X: 1, Y: 1, Z: -5}, r3.Vec{Z: 1})
	if res.Opacity <= 0 || res.Opacity > 1 {
		t.Errorf("Expected accumulated opacity in (0,1], got %f", res.Opacity)
	}
	if res.Value <= 0 || res.Value > res.Opacity {
		t.Errorf("Expected premultiplied value in (0, opacity], got %f", res.Value)
	}

	// Marching from the bright end reaches opacity sooner.
	back := CastRay(rayParams(v, DirectVolume{}), r3.Vec{X: 1, Y: 1, Z: 20}, r3.Vec{Z: -1})
	if back.Samples >= res.Samples {
		t.Errorf("Expected early termination from the bright side, got %d vs %d samples", back.Samples, res.Samples)
	}
}

func TestCastRayIsosurface(t *testing.T) {
	v := rampVolume(t)
	res := CastRay(rayParams(v, Isosurface{Threshold: 0.6, Tolerance: 0.01}), r3.Vec{X: 1, Y: 1, Z: -5}, r3.Vec{Z: 1})
	if !res.Hit {
		t.Fatal("Expected the ray to hit the isosurface")
	}
	if math.Abs(res.Value-0.6) > 0.01 {
		t.Errorf("Expected hit value near 0.6, got %f", res.Value)
	}

	none := CastRay(rayParams(v, Isosurface{Threshold: 2, Tolerance: 0.01}), r3.Vec{X: 1, Y: 1, Z: -5}, r3.Vec{Z: 1})
	if none.Hit || none.Opacity != 0 {
		t.Errorf("Expected no hit for an unreachable threshold, got %+v", none)
	}
}

func TestRayParamsFromSnapshot(t *testing.T) {
	o := NewOrchestrator(nil, DefaultOptions())
	o.SetRenderQuality(High)
	o.AddClippingPlane(r3.Vec{}, r3.Vec{X: 1})
	p := o.Snapshot().RayParams()
	if p.SamplingRate != 512 || len(p.ClippingPlanes) != 1 || p.TransferFunction == nil {
		t.Errorf("Expected snapshot state in ray params, got %+v", p)
	}
	if res := CastRay(p, r3.Vec{}, r3.Vec{X: 1}); res.Samples != 0 {
		t.Error("Expected empty result without a volume")
	}
}

func TestCastRaySamplingRateAlongDiagonal(t *testing.T) {
	dims := [][3]int{{2, 2, 2}, {3, 5, 7}, {1, 1, 10}}
	for _, d := range dims {
		v, err := volume.New(volume.Params{
			Width: d[0], Height: d[1], Depth: d[2],
			Voxels:  make([]uint16, d[0]*d[1]*d[2]),
			Spacing: volume.Spacing{X: 1, Y: 1, Z: 1},
		})
		if err != nil {
			t.Fatalf("Failed to create volume: %v", err)
		}
		dir := r3.Vec{X: float64(d[0]), Y: float64(d[1]), Z: float64(d[2])}

		for _, q := range []Quality{Low, Medium, High} {
			p := rayParams(v, MIP{})
			p.SamplingRate = q.SamplingRate()
			res := CastRay(p, r3.Vec{}, dir)
			if res.Samples != q.SamplingRate() {
				t.Errorf("%v %s: expected %d samples, got %d", d, q, q.SamplingRate(), res.Samples)
			}
		}
	}
}

func TestCastRayIsosurfaceIgnoresWindow(t *testing.T) {
	v := rampVolume(t)
	origin, dir := r3.Vec{X: 1, Y: 1, Z: -5}, r3.Vec{Z: 1}

	p := rayParams(v, Isosurface{Threshold: 0.5, Tolerance: 0.01})
	base := CastRay(p, origin, dir)
	if !base.Hit {
		t.Fatal("Expected the ray to hit the isosurface")
	}

	p.WindowLevel = WindowLevel{Center: 0.3, Width: 0.2}
	windowed := CastRay(p, origin, dir)
	if !windowed.Hit {
		t.Fatal("Expected the ray to hit the isosurface with a narrow window")
	}
	if windowed.Samples != base.Samples {
		t.Errorf("Expected the surface to stay put, got hit after %d samples instead of %d", windowed.Samples, base.Samples)
	}
	// 0.5 lies above the window, so the displayed value saturates
	if windowed.Value != 1 {
		t.Errorf("Expected saturated display value, got %f", windowed.Value)
	}
}

func TestCastRayOpacityIgnoresWindow(t *testing.T) {
	v := rampVolume(t)
	origin, dir := r3.Vec{X: 1, Y: 1, Z: -5}, r3.Vec{Z: 1}

	for _, mode := range []Mode{MIP{}, DirectVolume{}} {
		p := rayParams(v, mode)
		base := CastRay(p, origin, dir)
		p.WindowLevel = WindowLevel{Center: 0.2, Width: 0.1}
		windowed := CastRay(p, origin, dir)
		if math.Abs(base.Opacity-windowed.Opacity) > 1e-12 {
			t.Errorf("%s: expected opacity %f regardless of window, got %f", mode, base.Opacity, windowed.Opacity)
		}
	}
}
