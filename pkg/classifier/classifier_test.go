package classifier

import (
	"context"
	"errors"
	"math"
	"testing"

	"mrfsegment/pkg/mrf"
)

func twoClassModels() []ClassModel {
	return []ClassModel{
		{Name: "background", Mean: []float64{0.1, 0.1}, Covariance: [][]float64{{0.01, 0}, {0, 0.01}}},
		{Name: "tissue", Mean: []float64{0.8, 0.6}, Covariance: [][]float64{{0.04, 0}, {0, 0.01}}},
	}
}

// TestGaussianDistances verifies Mahalanobis distances against hand-computed values
func TestGaussianDistances(t *testing.T) {
	g, err := NewGaussian(twoClassModels())
	if err != nil {
		t.Fatalf("Failed to create classifier: %v", err)
	}
	if g.NumberOfClasses() != 2 {
		t.Errorf("Expected 2 classes, got %d", g.NumberOfClasses())
	}

	d, err := g.Classify([]float64{0.8, 0.4})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	// Class 0: diff (0.7, 0.3), variances 0.01 -> sqrt(49 + 9)
	// Class 1: diff (0, -0.2), variances (0.04, 0.01) -> sqrt(0 + 4)
	want := []float64{math.Sqrt(58), 2}
	for c := range want {
		if math.Abs(d[c]-want[c]) > 1e-9 {
			t.Errorf("Class %d: expected distance %f, got %f", c, want[c], d[c])
		}
	}
}

// TestGaussianIdentityCovariance verifies a nil covariance behaves as Euclidean
func TestGaussianIdentityCovariance(t *testing.T) {
	models := []ClassModel{{Mean: []float64{0, 0}}, {Mean: []float64{3, 4}}}
	g, err := NewGaussian(models)
	if err != nil {
		t.Fatalf("Failed to create classifier: %v", err)
	}
	d, _ := g.Classify([]float64{0, 0})
	if math.Abs(d[0]) > 1e-12 || math.Abs(d[1]-5) > 1e-9 {
		t.Errorf("Expected distances [0 5], got %v", d)
	}
}

// TestGaussianConfigurationErrors verifies invalid class models are rejected
func TestGaussianConfigurationErrors(t *testing.T) {
	testCases := []struct {
		name   string
		models []ClassModel
	}{
		{"no classes", nil},
		{"empty mean", []ClassModel{{Mean: nil}}},
		{"mixed dimensions", []ClassModel{{Mean: []float64{0}}, {Mean: []float64{0, 1}}}},
		{"short covariance", []ClassModel{{Mean: []float64{0, 0}, Covariance: [][]float64{{1, 0}}}}},
		{"asymmetric covariance", []ClassModel{{Mean: []float64{0, 0}, Covariance: [][]float64{{1, 0.5}, {0, 1}}}}},
		{"singular covariance", []ClassModel{{Mean: []float64{0, 0}, Covariance: [][]float64{{1, 1}, {1, 1}}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewGaussian(tc.models); !errors.Is(err, mrf.ErrConfiguration) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}
}

// TestFeatureLengthMismatch verifies classifiers refuse wrong-length features
func TestFeatureLengthMismatch(t *testing.T) {
	for _, kind := range []Kind{KindGaussian, KindEuclidean} {
		c, err := New(kind, twoClassModels())
		if err != nil {
			t.Fatalf("New(%s) failed: %v", kind, err)
		}
		if _, err := c.Classify([]float64{1}); !errors.Is(err, mrf.ErrData) {
			t.Errorf("%s: expected data error, got %v", kind, err)
		}
	}
}

// TestMinimumDistance verifies Euclidean distances ignore covariance
func TestMinimumDistance(t *testing.T) {
	md, err := NewMinimumDistance(twoClassModels())
	if err != nil {
		t.Fatalf("Failed to create classifier: %v", err)
	}
	d, err := md.Classify([]float64{0.8, 0.6})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if math.Abs(d[0]-math.Hypot(0.7, 0.5)) > 1e-9 || d[1] != 0 {
		t.Errorf("Unexpected distances %v", d)
	}
}

// TestNewUnknownKind verifies unknown kinds are configuration errors
func TestNewUnknownKind(t *testing.T) {
	if _, err := New("svm", twoClassModels()); !errors.Is(err, mrf.ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

type grayImage struct {
	size   []int
	values []float64
}

func (g *grayImage) Size() []int               { return g.size }
func (g *grayImage) Pixel(index int) []float64 { return g.values[index : index+1] }

// TestGaussianDrivesEngine verifies the classifier plugs into the ICM engine
func TestGaussianDrivesEngine(t *testing.T) {
	models := []ClassModel{
		{Name: "dark", Mean: []float64{0.2}, Covariance: [][]float64{{0.01}}},
		{Name: "bright", Mean: []float64{0.8}, Covariance: [][]float64{{0.01}}},
	}
	g, err := NewGaussian(models)
	if err != nil {
		t.Fatalf("Failed to create classifier: %v", err)
	}

	// A bright row with one pixel just on the dark side of the midpoint.
	img := &grayImage{size: []int{5}, values: []float64{0.8, 0.8, 0.45, 0.8, 0.8}}
	e, err := mrf.NewEngine(mrf.Options{NumberOfClasses: 2, Radius: []int{1}, Weights: []float64{2, 0, 2}})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	vol, res, err := e.Segment(context.Background(), img, g)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if vol.InitialLabels()[2] != 0 {
		t.Fatalf("Expected the dim pixel to start as dark")
	}
	for i, l := range vol.Labels() {
		if l != 1 {
			t.Errorf("Pixel %d: expected bright, got %d", i, l)
		}
	}
	if res.State != mrf.Converged {
		t.Errorf("Expected convergence, got %s", res.State)
	}
}
