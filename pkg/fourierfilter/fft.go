// Package fourierfilter smooths image slices in the frequency domain before
// classification. It is a thin layer over gonum's FFT.
package fourierfilter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT2D performs a 2D Fast Fourier Transform on the input data.
//
// Parameters:
//   - data: Input image data as a 1D array (row-major order)
//   - width, height: Image dimensions; any positive sizes are accepted
//
// Returns:
//   - The full, unnormalised 2D spectrum, row-major, height x width
func FFT2D(data []float64, width, height int) []complex128 {
	rowFFT := fourier.NewFFT(width)
	colFFT := fourier.NewCmplxFFT(height)

	result := make([]complex128, width*height)
	half := make([]complex128, width/2+1) // Gonum FFT output size for real input

	// Row transforms, expanded to the full spectrum by conjugate symmetry
	for y := 0; y < height; y++ {
		rowFFT.Coefficients(half, data[y*width:(y+1)*width])
		row := result[y*width : (y+1)*width]
		copy(row, half)
		for x := len(half); x < width; x++ {
			c := half[width-x]
			row[x] = complex(real(c), -imag(c))
		}
	}

	// Column transforms
	col := make([]complex128, height)
	out := make([]complex128, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = result[y*width+x]
		}
		colFFT.Coefficients(out, col)
		for y := 0; y < height; y++ {
			result[y*width+x] = out[y]
		}
	}

	return result
}

// LowPass attenuates high spatial frequencies of a width x height slice
// with a Gaussian transfer function exp(-r²/2σ²), where r is the radial
// frequency in cycles per pixel. The DC term is kept exactly, so the mean
// intensity is preserved.
func LowPass(data []float64, width, height int, sigma float64) ([]float64, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid slice size %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("slice has %d values, expected %d", len(data), width*height)
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("sigma must be positive, got %f", sigma)
	}

	rowFFT := fourier.NewFFT(width)
	colFFT := fourier.NewCmplxFFT(height)
	halfWidth := width/2 + 1

	// Half spectrum: height rows of halfWidth coefficients
	spectrum := make([]complex128, height*halfWidth)
	for y := 0; y < height; y++ {
		rowFFT.Coefficients(spectrum[y*halfWidth:(y+1)*halfWidth], data[y*width:(y+1)*width])
	}

	col := make([]complex128, height)
	out := make([]complex128, height)
	for x := 0; x < halfWidth; x++ {
		for y := 0; y < height; y++ {
			col[y] = spectrum[y*halfWidth+x]
		}
		colFFT.Coefficients(out, col)

		fx := float64(x) / float64(width)
		for y := 0; y < height; y++ {
			ky := y
			if ky > height/2 {
				ky = height - y
			}
			fy := float64(ky) / float64(height)
			r2 := fx*fx + fy*fy
			out[y] *= complex(math.Exp(-r2/(2*sigma*sigma)), 0)
		}

		// Inverse column transform; gonum leaves it unnormalised
		colFFT.Sequence(col, out)
		for y := 0; y < height; y++ {
			spectrum[y*halfWidth+x] = col[y] / complex(float64(height), 0)
		}
	}

	result := make([]float64, width*height)
	for y := 0; y < height; y++ {
		row := result[y*width : (y+1)*width]
		rowFFT.Sequence(row, spectrum[y*halfWidth:(y+1)*halfWidth])
		for x := range row {
			row[x] /= float64(width)
		}
	}
	return result, nil
}
