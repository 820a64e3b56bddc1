package reconstruction

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"volumeviewer/internal/models"
	"volumeviewer/pkg/logging"
)

// LoadImageDir reads every PNG or JPEG image in dir as one grayscale slice
// of a series. Files are ordered by the number embedded in their name and
// placed sliceGap mm apart. This is a convenience for the command line; real
// series arrive already decoded.
func LoadImageDir(dir string, pixelSpacing, sliceGap float64) (*models.Series, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg":
			imageFiles = append(imageFiles, entry.Name())
		}
	}
	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no PNG or JPEG images found in %s", dir)
	}

	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	series := &models.Series{
		PatientName: filepath.Base(dir),
		Modality:    "OT",
	}
	for i, name := range imageFiles {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		bounds := img.Bounds()
		series.Slices = append(series.Slices, models.DecodedSlice{
			Pixels:         grayPixels(img),
			Width:          bounds.Dx(),
			Height:         bounds.Dy(),
			PixelSpacing:   [2]float64{pixelSpacing, pixelSpacing},
			SliceThickness: sliceGap,
			SliceLocation:  float64(i) * sliceGap,
			InstanceNumber: extractNumber(name),
		})
	}
	logging.Infof("Loaded %d slices from %s", len(series.Slices), dir)
	return series, nil
}

// extractNumber extracts the digits of a filename as an integer, 0 if none.
func extractNumber(filename string) int {
	var digits strings.Builder
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	return img, err
}

func grayPixels(img image.Image) []uint16 {
	bounds := img.Bounds()
	pixels := make([]uint16, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pixels = append(pixels, color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
		}
	}
	return pixels
}
