package models

// DecodedSlice represents a single decoded 2D image of a series with the
// geometric metadata needed to place it in the volume
type DecodedSlice struct {
	// Pixels holds the raw intensities in row-major order (x + y*Width)
	Pixels []uint16

	// Width and Height are the dimensions of the slice in pixels
	Width  int
	Height int

	// PixelSpacing is the physical size of a pixel in mm along x and y
	PixelSpacing [2]float64

	// SliceThickness is the nominal thickness of the slice in mm
	SliceThickness float64

	// SliceLocation is the physical position of the slice along the stacking axis
	SliceLocation float64

	// InstanceNumber is the acquisition order reported by the scanner
	InstanceNumber int
}

// Series represents a fully decoded stack of slices handed to the core by the
// decoding collaborator
type Series struct {
	// Slices are the decoded images, in any order
	Slices []DecodedSlice

	// PatientName and Modality are display metadata only
	PatientName string
	Modality    string
}

// Len returns the number of slices in the series
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Slices)
}
