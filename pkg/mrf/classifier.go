package mrf

// Classifier produces, for one pixel's feature vector, a distance to each
// class. Smaller is a better fit. Implementations must return exactly
// NumberOfClasses values and be safe for concurrent use.
type Classifier interface {
	Classify(features []float64) ([]float64, error)
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(features []float64) ([]float64, error)

// Classify calls f(features).
func (f ClassifierFunc) Classify(features []float64) ([]float64, error) {
	return f(features)
}

// FeatureImage is the read-only multi-dimensional feature image that seeds
// a LabelVolume. Pixel returns the feature vector of the pixel at flat
// index, dimension 0 varying fastest.
type FeatureImage interface {
	Size() []int
	Pixel(index int) []float64
}
