package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"mrfsegment/pkg/mrf"
)

// MinimumDistance scores a feature vector by its Euclidean distance to each
// class mean. Covariances in the models are ignored.
type MinimumDistance struct {
	means [][]float64
}

// NewMinimumDistance copies the class means.
func NewMinimumDistance(models []ClassModel) (*MinimumDistance, error) {
	if _, err := checkModels(models); err != nil {
		return nil, err
	}
	md := &MinimumDistance{means: make([][]float64, len(models))}
	for c, m := range models {
		md.means[c] = append([]float64(nil), m.Mean...)
	}
	return md, nil
}

func (md *MinimumDistance) NumberOfClasses() int {
	return len(md.means)
}

func (md *MinimumDistance) Classify(features []float64) ([]float64, error) {
	if len(features) != len(md.means[0]) {
		return nil, fmt.Errorf("%w: got %d features, classifier expects %d", mrf.ErrData, len(features), len(md.means[0]))
	}
	distances := make([]float64, len(md.means))
	for c, mean := range md.means {
		distances[c] = floats.Distance(features, mean, 2)
	}
	return distances, nil
}

// Kind names a classifier implementation in configuration.
type Kind string

const (
	KindGaussian  Kind = "gaussian"
	KindEuclidean Kind = "euclidean"
)

// Classifier is an mrf.Classifier that also reports its class count.
type Classifier interface {
	mrf.Classifier
	NumberOfClasses() int
}

// New builds the classifier named by kind.
func New(kind Kind, models []ClassModel) (Classifier, error) {
	switch kind {
	case KindGaussian, "":
		return NewGaussian(models)
	case KindEuclidean:
		return NewMinimumDistance(models)
	default:
		return nil, fmt.Errorf("%w: unknown classifier kind %q", mrf.ErrConfiguration, kind)
	}
}
