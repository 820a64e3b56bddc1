package reconstruction

import (
	"context"
	"errors"
	"sync"
	"testing"

	"volumeviewer/internal/models"
)

// createTestSeries creates a series whose pixel values encode their slice
// index, so stacking order can be checked voxel by voxel.
func createTestSeries(width, height, depth int) *models.Series {
	series := &models.Series{PatientName: "Phantom", Modality: "MR"}
	for z := 0; z < depth; z++ {
		pixels := make([]uint16, width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pixels[x+y*width] = uint16(z*1000 + y*width + x)
			}
		}
		series.Slices = append(series.Slices, models.DecodedSlice{
			Pixels:         pixels,
			Width:          width,
			Height:         height,
			PixelSpacing:   [2]float64{0.5, 0.5},
			SliceThickness: 3,
			SliceLocation:  float64(z) * 2.5,
			InstanceNumber: z + 1,
		})
	}
	return series
}

func TestBuildStacksSlices(t *testing.T) {
	width, height, depth := 6, 5, 4
	series := createTestSeries(width, height, depth)

	vol, err := NewBuilder(2).Build(context.Background(), series, nil)
	if err != nil {
		t.Fatalf("Failed to build volume: %v", err)
	}

	if vol.Width() != width || vol.Height() != height || vol.Depth() != depth {
		t.Fatalf("Expected %dx%dx%d volume, got %dx%dx%d",
			width, height, depth, vol.Width(), vol.Height(), vol.Depth())
	}
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				want := uint16(z*1000 + y*width + x)
				if got, _ := vol.Voxel(x, y, z); got != want {
					t.Errorf("Expected voxel (%d,%d,%d) = %d, got %d", x, y, z, want, got)
				}
			}
		}
	}

	if vol.MinValue() != 0 {
		t.Errorf("Expected min value 0, got %d", vol.MinValue())
	}
	if want := uint16(3000 + width*height - 1); vol.MaxValue() != want {
		t.Errorf("Expected max value %d, got %d", want, vol.MaxValue())
	}
	sp := vol.Spacing()
	if sp.X != 0.5 || sp.Y != 0.5 || sp.Z != 2.5 {
		t.Errorf("Expected spacing (0.5, 0.5, 2.5), got %+v", sp)
	}
	if vol.PatientName() != "Phantom" || vol.Modality() != "MR" {
		t.Errorf("Expected metadata to be carried over, got %q/%q", vol.PatientName(), vol.Modality())
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	series := createTestSeries(16, 16, 8)
	shuffled := createTestSeries(16, 16, 8)
	// Reverse the input order; stacking sorts by location.
	for i, j := 0, len(shuffled.Slices)-1; i < j; i, j = i+1, j-1 {
		shuffled.Slices[i], shuffled.Slices[j] = shuffled.Slices[j], shuffled.Slices[i]
	}

	a, err := NewBuilder(1).Build(context.Background(), series, nil)
	if err != nil {
		t.Fatalf("Failed to build volume: %v", err)
	}
	b, err := NewBuilder(8).Build(context.Background(), shuffled, nil)
	if err != nil {
		t.Fatalf("Failed to build volume: %v", err)
	}
	if a.Checksum() != b.Checksum() {
		t.Error("Expected identical grids for identical input")
	}
}

func TestBuildSpacingFallbacks(t *testing.T) {
	series := createTestSeries(2, 2, 3)
	for i := range series.Slices {
		series.Slices[i].SliceLocation = 0
		series.Slices[i].PixelSpacing = [2]float64{0, -1}
	}

	b := NewBuilder(1)
	b.FallbackPixelSpacing = 0.8
	vol, err := b.Build(context.Background(), series, nil)
	if err != nil {
		t.Fatalf("Failed to build volume: %v", err)
	}
	sp := vol.Spacing()
	if sp.X != 0.8 || sp.Y != 0.8 {
		t.Errorf("Expected fallback pixel spacing 0.8, got %+v", sp)
	}
	if sp.Z != 3 {
		t.Errorf("Expected slice thickness 3 as z spacing, got %f", sp.Z)
	}

	for i := range series.Slices {
		series.Slices[i].SliceThickness = 0
	}
	b.FallbackSliceGap = 1.5
	vol, err = b.Build(context.Background(), series, nil)
	if err != nil {
		t.Fatalf("Failed to build volume: %v", err)
	}
	if vol.Spacing().Z != 1.5 {
		t.Errorf("Expected fallback slice gap 1.5, got %f", vol.Spacing().Z)
	}
}

func TestBuildValidation(t *testing.T) {
	if _, err := NewBuilder(1).Build(context.Background(), &models.Series{}, nil); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("Expected ErrEmptySeries, got %v", err)
	}
	if _, err := NewBuilder(1).Build(context.Background(), nil, nil); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("Expected ErrEmptySeries for nil series, got %v", err)
	}

	mismatched := createTestSeries(4, 4, 3)
	mismatched.Slices[1].Width = 3
	if _, err := NewBuilder(1).Build(context.Background(), mismatched, nil); !errors.Is(err, ErrInconsistentSlices) {
		t.Errorf("Expected ErrInconsistentSlices, got %v", err)
	}

	short := createTestSeries(4, 4, 3)
	short.Slices[2].Pixels = short.Slices[2].Pixels[:10]
	if _, err := NewBuilder(1).Build(context.Background(), short, nil); !errors.Is(err, ErrInconsistentSlices) {
		t.Errorf("Expected ErrInconsistentSlices for short slice, got %v", err)
	}
}

func TestBuildProgressAndCancel(t *testing.T) {
	series := createTestSeries(8, 8, 10)

	var mu sync.Mutex
	var calls []int
	_, err := NewBuilder(4).Build(context.Background(), series, func(completed, total int, message string) {
		mu.Lock()
		defer mu.Unlock()
		if total != 10 {
			t.Errorf("Expected total 10, got %d", total)
		}
		calls = append(calls, completed)
	})
	if err != nil {
		t.Fatalf("Failed to build volume: %v", err)
	}
	if len(calls) != 10 || calls[len(calls)-1] != 10 {
		t.Errorf("Expected 10 progress calls ending at 10, got %v", calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vol, err := NewBuilder(4).Build(ctx, series, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if vol != nil {
		t.Error("Expected no volume from a canceled build")
	}
}
