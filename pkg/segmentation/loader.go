package segmentation

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"mrfsegment/internal/models"
)

// loadSlices loads and sorts the input slices from the specified directory.
// This function performs the following operations:
// 1. Reads all files from the input directory
// 2. Filters for the configured image extensions
// 3. Sorts the files based on numerical values in their filenames to ensure anatomical order
// 4. Decodes each slice
//
// Slice order matters: the z neighbours of a voxel in the MRF are the
// voxels at the same position in the previous and next file.
func loadSlices(dir string, extensions []string) ([]models.Slice, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if allowed[strings.ToLower(filepath.Ext(entry.Name()))] {
			imageFiles = append(imageFiles, entry.Name())
		}
	}

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no images with extensions %v found in %s", extensions, dir)
	}

	// Sort by the number embedded in the filename, then by name
	sort.Slice(imageFiles, func(i, j int) bool {
		numI := extractNumber(imageFiles[i])
		numJ := extractNumber(imageFiles[j])
		if numI != numJ {
			return numI < numJ
		}
		return imageFiles[i] < imageFiles[j]
	})

	slices := make([]models.Slice, 0, len(imageFiles))
	for i, filename := range imageFiles {
		img, err := loadImage(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", filename, err)
		}
		slices = append(slices, models.Slice{Image: img, Index: i, Filename: filename})
	}
	return slices, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage decodes any registered image format
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}
