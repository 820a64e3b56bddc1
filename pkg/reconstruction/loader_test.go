package reconstruction

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// createTestImage creates a grayscale test image with the specified dimensions and pattern
func createTestImage(width, height int, pattern func(x, y int) uint16) image.Image {
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.Gray16{Y: pattern(x, y)})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

func TestLoadImageDir(t *testing.T) {
	dir := t.TempDir()
	// Written out of order; numbering decides the stack order.
	for _, i := range []int{10, 2, 1} {
		img := createTestImage(4, 3, func(x, y int) uint16 { return uint16(i*100 + x + y*4) })
		writePNG(t, filepath.Join(dir, fmt.Sprintf("slice_%d.png", i)), img)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("Failed to write extra file: %v", err)
	}

	series, err := LoadImageDir(dir, 0.7, 2.0)
	if err != nil {
		t.Fatalf("Failed to load images: %v", err)
	}
	if series.Len() != 3 {
		t.Fatalf("Expected 3 slices, got %d", series.Len())
	}

	for i, want := range []int{1, 2, 10} {
		s := series.Slices[i]
		if s.InstanceNumber != want {
			t.Errorf("Expected slice %d to be file %d, got %d", i, want, s.InstanceNumber)
		}
		if s.Width != 4 || s.Height != 3 {
			t.Errorf("Expected 4x3 slice, got %dx%d", s.Width, s.Height)
		}
		if s.Pixels[5] != uint16(want*100+5) {
			t.Errorf("Expected pixel value %d, got %d", want*100+5, s.Pixels[5])
		}
		if s.SliceLocation != float64(i)*2.0 {
			t.Errorf("Expected slice location %f, got %f", float64(i)*2.0, s.SliceLocation)
		}
		if s.PixelSpacing != [2]float64{0.7, 0.7} {
			t.Errorf("Expected pixel spacing 0.7, got %v", s.PixelSpacing)
		}
	}
}

func TestLoadImageDirEmpty(t *testing.T) {
	if _, err := LoadImageDir(t.TempDir(), 1, 1); err == nil {
		t.Error("Expected error for directory without images")
	}
}

func TestExtractNumber(t *testing.T) {
	cases := map[string]int{"slice_001.png": 1, "img42.jpg": 42, "none.png": 0}
	for name, want := range cases {
		if got := extractNumber(name); got != want {
			t.Errorf("extractNumber(%q) = %d, expected %d", name, got, want)
		}
	}
}
