// Package visualization exports MPR slices and ray cast projections of a
// view state as image files.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"volumeviewer/pkg/logging"
	"volumeviewer/pkg/render"
	"volumeviewer/pkg/volume"
)

// Viewer renders images from one snapshot of the view state.
type Viewer struct {
	state render.ViewState

	// NumCores bounds the rows rendered in parallel by Project
	NumCores int
}

// NewViewer creates a viewer for a snapshot that holds a volume.
func NewViewer(state render.ViewState) (*Viewer, error) {
	if state.Volume == nil {
		return nil, fmt.Errorf("no volume loaded")
	}
	return &Viewer{state: state, NumCores: runtime.NumCPU()}, nil
}

// ExtractSlice extracts an MPR slice with the window/level applied.
func (v *Viewer) ExtractSlice(o volume.Orientation, index int) (image.Image, error) {
	s, ok := v.state.Volume.Slice(o, index)
	if !ok {
		return nil, fmt.Errorf("%s slice %d outside [0,%d)", o, index, v.state.Volume.Count(o))
	}
	return v.windowed(s), nil
}

func (v *Viewer) windowed(s *volume.Slice) *image.Gray16 {
	vol, wl := v.state.Volume, v.state.WindowLevel
	img := image.NewGray16(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			n := wl.Apply(vol.Normalized(float64(s.Pixels[x+y*s.Width])))
			img.SetGray16(x, y, color.Gray16{Y: uint16(n*65535 + 0.5)})
		}
	}
	return img
}

// Project casts one orthographic ray per pixel through the volume, looking
// along the axis normal to the orientation's slice plane. Rays pass through
// voxel centers so the image has the size of a slice of that orientation.
func (v *Viewer) Project(o volume.Orientation) (image.Image, error) {
	vol := v.state.Volume
	ref, ok := vol.Slice(o, 0)
	if !ok {
		return nil, fmt.Errorf("invalid orientation %s", o)
	}
	params := v.state.RayParams()
	sp := vol.Spacing()

	var dir r3.Vec
	var start func(u, w int) r3.Vec
	switch o {
	case volume.Axial:
		dir = r3.Vec{Z: 1}
		start = func(u, w int) r3.Vec {
			return r3.Vec{X: float64(u) * sp.X, Y: float64(w) * sp.Y, Z: -1}
		}
	case volume.Sagittal:
		dir = r3.Vec{X: 1}
		start = func(u, w int) r3.Vec {
			return r3.Vec{X: -1, Y: float64(u) * sp.Y, Z: float64(w) * sp.Z}
		}
	case volume.Coronal:
		dir = r3.Vec{Y: 1}
		start = func(u, w int) r3.Vec {
			return r3.Vec{X: float64(u) * sp.X, Y: -1, Z: float64(w) * sp.Z}
		}
	default:
		return nil, fmt.Errorf("invalid orientation %s", o)
	}

	timedLog := logging.NewTimeLog()
	img := image.NewGray16(image.Rect(0, 0, ref.Width, ref.Height))

	var g errgroup.Group
	g.SetLimit(max(1, v.NumCores))
	for w := 0; w < ref.Height; w++ {
		w := w
		g.Go(func() error {
			for u := 0; u < ref.Width; u++ {
				res := render.CastRay(params, start(u, w), dir)
				img.SetGray16(u, w, color.Gray16{Y: uint16(res.Value*65535 + 0.5)})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	timedLog.Debugf("Projected %s %s view %dx%d", v.state.Mode, o, ref.Width, ref.Height)
	return img, nil
}

// SaveImage writes img as PNG when filename ends in .png, JPEG otherwise.
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along an orientation and
// returns the number written.
func (v *Viewer) SaveSliceSequence(o volume.Orientation, outputDir string) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	n := v.state.Volume.Count(o)
	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(o, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", o, pos))
		if err := SaveImage(img, filename); err != nil {
			return pos, err
		}
	}

	return n, nil
}
