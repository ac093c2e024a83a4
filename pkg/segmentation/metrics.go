package segmentation

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"mrfsegment/pkg/mrf"
)

// Metrics summarises a labelling run.
type Metrics struct {
	// State is how the run ended: converged or iteration-limit-reached
	State string `yaml:"state"`

	// Iterations is the number of ICM iterations performed
	Iterations int `yaml:"iterations"`

	// FinalChanges is the number of pixels that changed in the last iteration
	FinalChanges int `yaml:"finalChanges"`

	// Relabelled counts pixels whose final label differs from the initial
	// classification; RelabelledFraction is the same as a fraction
	Relabelled         int     `yaml:"relabelled"`
	RelabelledFraction float64 `yaml:"relabelledFraction"`

	// ClassNames and ClassFractions give the share of voxels per class
	ClassNames     []string  `yaml:"classNames"`
	ClassFractions []float64 `yaml:"classFractions"`

	// LabelEntropy is the Shannon entropy of the class distribution in bits
	LabelEntropy float64 `yaml:"labelEntropy"`

	// MeanDataFit is the mean classifier distance of each voxel to its
	// final class
	MeanDataFit float64 `yaml:"meanDataFit"`
}

func calculateMetrics(vol *mrf.LabelVolume, res mrf.Result, names []string) Metrics {
	n := vol.Len()
	m := Metrics{
		State:          res.State.String(),
		Iterations:     res.Iterations,
		FinalChanges:   res.Errors,
		ClassNames:     names,
		ClassFractions: make([]float64, vol.NumberOfClasses()),
	}

	labels := vol.Labels()
	initial := vol.InitialLabels()
	fit := make([]float64, n)
	for i, l := range labels {
		if l != initial[i] {
			m.Relabelled++
		}
		m.ClassFractions[l]++
		fit[i] = vol.Distance(i, l)
	}

	for c := range m.ClassFractions {
		m.ClassFractions[c] /= float64(n)
	}
	m.RelabelledFraction = float64(m.Relabelled) / float64(n)
	m.LabelEntropy = stat.Entropy(m.ClassFractions) / math.Ln2
	m.MeanDataFit = stat.Mean(fit, nil)
	return m
}
