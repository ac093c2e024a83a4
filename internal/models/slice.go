package models

import (
	"fmt"
	"image"
)

// Slice represents a single 2D image slice with metadata
type Slice struct {
	// Image is the actual slice image data
	Image image.Image

	// Index is the position of this slice in the sequence
	Index int

	// Filename is the original filename of the slice
	Filename string
}

// FeatureMode selects which per-pixel features are extracted from a slice.
type FeatureMode string

const (
	// FeatureGray uses a single intensity feature per pixel
	FeatureGray FeatureMode = "gray"

	// FeatureRGB uses the three colour channels as features
	FeatureRGB FeatureMode = "rgb"
)

// NumFeatures returns the number of features the mode yields per pixel.
func (m FeatureMode) NumFeatures() int {
	if m == FeatureRGB {
		return 3
	}
	return 1
}

// FeatureVolume is a 3D stack of per-pixel feature vectors. Data is stored
// pixel-major: the NumFeatures values of pixel i sit at
// Data[i*NumFeatures : (i+1)*NumFeatures], and pixel i is x + y*Width +
// z*Width*Height.
type FeatureVolume struct {
	Data []float64

	NumFeatures int

	// Width, Height, Depth are the dimensions of the volume in voxels
	Width, Height, Depth int
}

// NewFeatureVolume allocates a zeroed feature volume.
func NewFeatureVolume(width, height, depth, numFeatures int) *FeatureVolume {
	return &FeatureVolume{
		Data:        make([]float64, width*height*depth*numFeatures),
		NumFeatures: numFeatures,
		Width:       width,
		Height:      height,
		Depth:       depth,
	}
}

// FromSlices stacks the slices along z. All slices must share the size of
// the first one. Channel values are scaled to [0, 1].
func FromSlices(slices []Slice, mode FeatureMode) (*FeatureVolume, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("no slices to stack")
	}

	bounds := slices[0].Image.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	nf := mode.NumFeatures()
	vol := NewFeatureVolume(width, height, len(slices), nf)

	for z, s := range slices {
		b := s.Image.Bounds()
		if b.Dx() != width || b.Dy() != height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d", s.Filename, b.Dx(), b.Dy(), width, height)
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, bl, _ := s.Image.At(b.Min.X+x, b.Min.Y+y).RGBA()
				base := (z*width*height + y*width + x) * nf
				if mode == FeatureRGB {
					vol.Data[base] = float64(r) / 65535.0
					vol.Data[base+1] = float64(g) / 65535.0
					vol.Data[base+2] = float64(bl) / 65535.0
				} else {
					// Luma weights as in image/color's gray conversion
					vol.Data[base] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 65535.0
				}
			}
		}
	}
	return vol, nil
}

// Size returns the extent as [width, height, depth].
func (v *FeatureVolume) Size() []int {
	return []int{v.Width, v.Height, v.Depth}
}

// Len returns the number of voxels.
func (v *FeatureVolume) Len() int {
	return v.Width * v.Height * v.Depth
}

// Pixel returns the feature vector of voxel index without copying.
func (v *FeatureVolume) Pixel(index int) []float64 {
	base := index * v.NumFeatures
	return v.Data[base : base+v.NumFeatures]
}

// Channel copies feature f of slice z into a width*height array.
func (v *FeatureVolume) Channel(z, f int) []float64 {
	plane := v.Width * v.Height
	out := make([]float64, plane)
	for i := 0; i < plane; i++ {
		out[i] = v.Data[(z*plane+i)*v.NumFeatures+f]
	}
	return out
}

// SetChannel writes a width*height array back into feature f of slice z.
func (v *FeatureVolume) SetChannel(z, f int, data []float64) {
	plane := v.Width * v.Height
	for i := 0; i < plane && i < len(data); i++ {
		v.Data[(z*plane+i)*v.NumFeatures+f] = data[i]
	}
}
