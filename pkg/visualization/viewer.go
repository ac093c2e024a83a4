package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Viewer renders a 3D label volume as coloured 2D slices along any axis.
type Viewer struct {
	// labels holds the class of every voxel, x fastest
	labels []int

	// dimensions of the volume
	width  int
	height int
	depth  int

	// palette maps a class to its display colour
	palette []color.RGBA
}

// NewViewer creates a viewer over labels. palette must have one colour per
// class; labels outside it are drawn in magenta.
func NewViewer(labels []int, width, height, depth int, palette []color.RGBA) (*Viewer, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("invalid volume size %dx%dx%d", width, height, depth)
	}
	if len(labels) != width*height*depth {
		return nil, fmt.Errorf("volume has %d labels, expected %d", len(labels), width*height*depth)
	}
	return &Viewer{
		labels:  labels,
		width:   width,
		height:  height,
		depth:   depth,
		palette: palette,
	}, nil
}

// Palette returns n visually distinct colours with evenly spaced hues.
// Entries of fixed that parse as hex colours (#rrggbb) take precedence.
func Palette(n int, fixed []string) ([]color.RGBA, error) {
	out := make([]color.RGBA, n)
	for i := 0; i < n; i++ {
		c := colorful.Hsv(360*float64(i)/float64(max(n, 1)), 0.65, 0.9)
		if i < len(fixed) && fixed[i] != "" {
			parsed, err := colorful.Hex(fixed[i])
			if err != nil {
				return nil, fmt.Errorf("class %d colour %q: %w", i, fixed[i], err)
			}
			c = parsed
		}
		r, g, b := c.Clamped().RGB255()
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out, nil
}

func (v *Viewer) colorOf(label int) color.RGBA {
	if label < 0 || label >= len(v.palette) {
		return color.RGBA{R: 255, B: 255, A: 255}
	}
	return v.palette[label]
}

// ExtractSlice extracts a 2D slice from the 3D volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (*image.RGBA, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.RGBA

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				idx := z*v.width*v.height + y*v.width + position
				img.SetRGBA(z, y, v.colorOf(v.labels[idx]))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				idx := z*v.width*v.height + position*v.width + x
				img.SetRGBA(x, z, v.colorOf(v.labels[idx]))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				idx := position*v.width*v.height + y*v.width + x
				img.SetRGBA(x, y, v.colorOf(v.labels[idx]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image. PNG keeps label
// colours exact.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence extracts and saves a sequence of slices along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
