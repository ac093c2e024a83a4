package visualization

import (
	"fmt"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// layeredLabels labels every voxel with its z index modulo classes
func layeredLabels(width, height, depth, classes int) []int {
	labels := make([]int, width*height*depth)
	for z := 0; z < depth; z++ {
		for i := 0; i < width*height; i++ {
			labels[z*width*height+i] = z % classes
		}
	}
	return labels
}

// TestPalette verifies generated and fixed colours
func TestPalette(t *testing.T) {
	p, err := Palette(3, []string{"#ff0000", ""})
	if err != nil {
		t.Fatalf("Palette failed: %v", err)
	}
	if len(p) != 3 {
		t.Fatalf("Expected 3 colours, got %d", len(p))
	}
	if p[0] != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Expected fixed red for class 0, got %v", p[0])
	}
	if p[1] == p[2] {
		t.Errorf("Generated colours should differ, both are %v", p[1])
	}

	again, _ := Palette(3, []string{"#ff0000", ""})
	for i := range p {
		if p[i] != again[i] {
			t.Errorf("Palette is not deterministic at %d: %v vs %v", i, p[i], again[i])
		}
	}

	if _, err := Palette(2, []string{"not-a-colour"}); err == nil {
		t.Error("Expected error for malformed hex colour")
	}
}

// TestNewViewerValidation verifies size checks
func TestNewViewerValidation(t *testing.T) {
	if _, err := NewViewer(make([]int, 10), 2, 2, 2, nil); err == nil {
		t.Error("Expected error for label count mismatch")
	}
	if _, err := NewViewer(nil, 0, 2, 2, nil); err == nil {
		t.Error("Expected error for empty volume")
	}
}

// TestExtractSlice verifies that slices are correctly extracted and coloured
func TestExtractSlice(t *testing.T) {
	width, height, depth := 6, 4, 3
	palette, _ := Palette(2, nil)
	viewer, err := NewViewer(layeredLabels(width, height, depth, 2), width, height, depth, palette)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	// Test extracting Z slices
	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d", width, height, bounds.Dx(), bounds.Dy())
		}
		if got := img.RGBAAt(width/2, height/2); got != palette[z%2] {
			t.Errorf("Z slice %d: expected colour %v, got %v", z, palette[z%2], got)
		}
	}

	// Test extracting X slice: columns run along z
	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}
	if imgX.RGBAAt(1, 0) != palette[1] {
		t.Errorf("X slice column 1 should show class 1")
	}

	// Test extracting Y slice: rows run along z
	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}
	if imgY.RGBAAt(0, 2) != palette[0] {
		t.Errorf("Y slice row 2 should show class 0")
	}

	// Test invalid axis
	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}

	// Test out of bounds position
	if _, err := viewer.ExtractSlice("z", depth+1); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
}

// TestUnknownLabelColour verifies labels beyond the palette are highlighted
func TestUnknownLabelColour(t *testing.T) {
	palette, _ := Palette(1, nil)
	viewer, _ := NewViewer([]int{0, 5}, 2, 1, 1, palette)
	img, _ := viewer.ExtractSlice("z", 0)
	if got := img.RGBAAt(1, 0); got != (color.RGBA{R: 255, B: 255, A: 255}) {
		t.Errorf("Expected magenta for unknown label, got %v", got)
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	width, height, depth := 5, 5, 3
	palette, _ := Palette(3, nil)
	viewer, err := NewViewer(layeredLabels(width, height, depth, 3), width, height, depth, palette)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	outputDir := filepath.Join(t.TempDir(), "slices")
	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	// Verify files exist and decode with exact colours
	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		f, err := os.Open(filename)
		if err != nil {
			t.Errorf("Expected slice file does not exist: %s", filename)
			continue
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Errorf("Failed to decode %s: %v", filename, err)
			continue
		}
		r, g, b, _ := img.At(0, 0).RGBA()
		want := palette[z]
		if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
			t.Errorf("Slice %d: expected colour %v, got (%d, %d, %d)", z, want, r>>8, g>>8, b>>8)
		}
	}

	// Test invalid axis
	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
