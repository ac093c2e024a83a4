// Package classifier provides distance classifiers that seed MRF labelling.
// Class parameters are supplied by the caller; nothing here is trained.
package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"mrfsegment/pkg/mrf"
)

// ClassModel describes one class in feature space.
type ClassModel struct {
	// Name is informational only.
	Name string

	// Mean is the class centre. Every class must have the same length.
	Mean []float64

	// Covariance is a symmetric positive definite matrix, row-major, of
	// size len(Mean) x len(Mean). Nil means the identity.
	Covariance [][]float64
}

// Gaussian scores a feature vector by its Mahalanobis distance to each
// class mean under that class's covariance.
type Gaussian struct {
	dims  int
	means []*mat.VecDense
	chols []*mat.Cholesky
}

// NewGaussian factorises each class covariance once. It fails if the classes
// disagree on dimensionality or a covariance is not positive definite.
func NewGaussian(models []ClassModel) (*Gaussian, error) {
	dims, err := checkModels(models)
	if err != nil {
		return nil, err
	}

	g := &Gaussian{
		dims:  dims,
		means: make([]*mat.VecDense, len(models)),
		chols: make([]*mat.Cholesky, len(models)),
	}

	for c, m := range models {
		g.means[c] = mat.NewVecDense(dims, append([]float64(nil), m.Mean...))

		sym, err := covarianceMatrix(dims, m.Covariance)
		if err != nil {
			return nil, fmt.Errorf("class %d (%s): %w", c, m.Name, err)
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(sym); !ok {
			return nil, fmt.Errorf("%w: class %d (%s): covariance is not positive definite", mrf.ErrConfiguration, c, m.Name)
		}
		g.chols[c] = &chol
	}
	return g, nil
}

func covarianceMatrix(dims int, cov [][]float64) (*mat.SymDense, error) {
	if cov == nil {
		sym := mat.NewSymDense(dims, nil)
		for i := 0; i < dims; i++ {
			sym.SetSym(i, i, 1)
		}
		return sym, nil
	}

	if len(cov) != dims {
		return nil, fmt.Errorf("%w: covariance has %d rows, want %d", mrf.ErrConfiguration, len(cov), dims)
	}
	data := make([]float64, 0, dims*dims)
	for i, row := range cov {
		if len(row) != dims {
			return nil, fmt.Errorf("%w: covariance row %d has %d columns, want %d", mrf.ErrConfiguration, i, len(row), dims)
		}
		data = append(data, row...)
	}
	for i := 0; i < dims; i++ {
		for j := i + 1; j < dims; j++ {
			if data[i*dims+j] != data[j*dims+i] {
				return nil, fmt.Errorf("%w: covariance is not symmetric at (%d, %d)", mrf.ErrConfiguration, i, j)
			}
		}
	}
	return mat.NewSymDense(dims, data), nil
}

// NumberOfClasses returns how many distances Classify produces.
func (g *Gaussian) NumberOfClasses() int {
	return len(g.means)
}

// Classify returns the Mahalanobis distance of features to every class.
func (g *Gaussian) Classify(features []float64) ([]float64, error) {
	if len(features) != g.dims {
		return nil, fmt.Errorf("%w: got %d features, classifier expects %d", mrf.ErrData, len(features), g.dims)
	}

	x := mat.NewVecDense(g.dims, append([]float64(nil), features...))
	distances := make([]float64, len(g.means))
	for c := range g.means {
		distances[c] = stat.Mahalanobis(x, g.means[c], g.chols[c])
	}
	return distances, nil
}

func checkModels(models []ClassModel) (int, error) {
	if len(models) == 0 {
		return 0, fmt.Errorf("%w: at least one class is required", mrf.ErrConfiguration)
	}
	dims := len(models[0].Mean)
	if dims == 0 {
		return 0, fmt.Errorf("%w: class 0 (%s) has an empty mean", mrf.ErrConfiguration, models[0].Name)
	}
	for c, m := range models {
		if len(m.Mean) != dims {
			return 0, fmt.Errorf("%w: class %d (%s) mean has %d features, want %d", mrf.ErrConfiguration, c, m.Name, len(m.Mean), dims)
		}
	}
	return dims, nil
}
