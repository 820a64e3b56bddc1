// Package reconstruction stacks a decoded series of 2D slices into a
// VoxelVolume. Construction is a pure function of the input series: the same
// slices always produce a byte-identical grid regardless of slice order or
// the number of cores used.
package reconstruction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"volumeviewer/internal/models"
	"volumeviewer/pkg/logging"
	"volumeviewer/pkg/volume"
)

var (
	// ErrEmptySeries is returned when a series has no slices.
	ErrEmptySeries = errors.New("series contains no slices")

	// ErrInconsistentSlices is returned when slices disagree on their
	// dimensions or carry the wrong number of pixels.
	ErrInconsistentSlices = errors.New("inconsistent slices in series")
)

// ProgressCallback receives progress updates during construction. It may
// be called from several goroutines, but never concurrently.
type ProgressCallback func(completed, total int, message string)

// Builder holds the construction parameters.
type Builder struct {
	// NumCores bounds how many slices are copied in parallel
	NumCores int

	// FallbackSliceGap is the z spacing in mm used when neither slice
	// locations nor slice thickness give a usable value
	FallbackSliceGap float64

	// FallbackPixelSpacing is the x/y spacing in mm used when a slice
	// reports a non-positive pixel spacing
	FallbackPixelSpacing float64
}

// NewBuilder creates a builder using numCores goroutines (all CPUs when
// numCores is not positive) and 1 mm fallback spacing.
func NewBuilder(numCores int) *Builder {
	if numCores <= 0 {
		numCores = runtime.NumCPU()
	}
	return &Builder{
		NumCores:             numCores,
		FallbackSliceGap:     1.0,
		FallbackPixelSpacing: 1.0,
	}
}

// Build constructs the volume. No partially built volume is ever returned:
// on any failure, including cancellation of ctx, the result is nil.
func (b *Builder) Build(ctx context.Context, series *models.Series, progress ProgressCallback) (*volume.Volume, error) {
	tlog := logging.NewTimeLog()

	width, height, err := validate(series)
	if err != nil {
		return nil, err
	}
	order := sliceOrder(series.Slices)
	depth := len(order)
	plane := width * height

	voxels := make([]uint16, plane*depth)
	mins := make([]uint16, depth)
	maxs := make([]uint16, depth)

	var mu sync.Mutex
	completed := 0
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if progress != nil {
			progress(completed, depth, fmt.Sprintf("stacked slice %d of %d", completed, depth))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.NumCores, 1))
	for z, src := range order {
		z, src := z, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pixels := series.Slices[src].Pixels
			copy(voxels[z*plane:(z+1)*plane], pixels)
			mins[z], maxs[z] = minMax(pixels)
			report()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// errgroup only reports errors from its goroutines; a cancel arriving
	// after the last slice was copied still aborts the build.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	minValue, maxValue := mins[0], maxs[0]
	for z := 1; z < depth; z++ {
		minValue = min(minValue, mins[z])
		maxValue = max(maxValue, maxs[z])
	}

	vol, err := volume.New(volume.Params{
		Width:       width,
		Height:      height,
		Depth:       depth,
		Voxels:      voxels,
		MinValue:    minValue,
		MaxValue:    maxValue,
		Spacing:     b.spacing(series.Slices, order),
		PatientName: series.PatientName,
		Modality:    series.Modality,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build volume: %w", err)
	}
	tlog.Infof("Built volume %s", vol)
	return vol, nil
}

func validate(series *models.Series) (width, height int, err error) {
	if series.Len() == 0 {
		return 0, 0, ErrEmptySeries
	}
	width, height = series.Slices[0].Width, series.Slices[0].Height
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: slice 0 has dimensions %dx%d", ErrInconsistentSlices, width, height)
	}
	for i, s := range series.Slices {
		if s.Width != width || s.Height != height {
			return 0, 0, fmt.Errorf("%w: slice %d is %dx%d, expected %dx%d",
				ErrInconsistentSlices, i, s.Width, s.Height, width, height)
		}
		if len(s.Pixels) != width*height {
			return 0, 0, fmt.Errorf("%w: slice %d has %d pixels, expected %d",
				ErrInconsistentSlices, i, len(s.Pixels), width*height)
		}
	}
	return width, height, nil
}

// sliceOrder returns slice indices sorted by location, then instance number.
// Ties keep their input order so the result is deterministic.
func sliceOrder(slices []models.DecodedSlice) []int {
	order := make([]int, len(slices))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := slices[order[i]], slices[order[j]]
		if a.SliceLocation != b.SliceLocation {
			return a.SliceLocation < b.SliceLocation
		}
		return a.InstanceNumber < b.InstanceNumber
	})
	return order
}

// spacing derives the voxel size. x/y come from the first slice in stacking
// order; z is the mean gap between consecutive slice locations, falling back
// to the slice thickness and then FallbackSliceGap.
func (b *Builder) spacing(slices []models.DecodedSlice, order []int) volume.Spacing {
	first := slices[order[0]]
	sp := volume.Spacing{
		X: positiveOr(first.PixelSpacing[0], b.FallbackPixelSpacing),
		Y: positiveOr(first.PixelSpacing[1], b.FallbackPixelSpacing),
	}

	if len(order) > 1 {
		gaps := make([]float64, len(order)-1)
		for i := 1; i < len(order); i++ {
			gaps[i-1] = math.Abs(slices[order[i]].SliceLocation - slices[order[i-1]].SliceLocation)
		}
		sp.Z = stat.Mean(gaps, nil)
	}
	if !(sp.Z > 0) {
		sp.Z = first.SliceThickness
	}
	sp.Z = positiveOr(sp.Z, b.FallbackSliceGap)
	return sp
}

func positiveOr(v, fallback float64) float64 {
	if v > 0 && !math.IsInf(v, 0) {
		return v
	}
	if fallback > 0 {
		return fallback
	}
	return 1
}

func minMax(pixels []uint16) (lo, hi uint16) {
	if len(pixels) == 0 {
		return 0, 0
	}
	lo, hi = pixels[0], pixels[0]
	for _, p := range pixels[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return lo, hi
}
