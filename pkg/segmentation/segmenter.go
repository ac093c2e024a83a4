// Package segmentation runs the slice-to-labels pipeline: it stacks a
// directory of 2D slices into a feature volume, seeds labels with a
// distance classifier, refines them with ICM and writes the results.
package segmentation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"mrfsegment/internal/logging"
	"mrfsegment/internal/models"
	"mrfsegment/pkg/classifier"
	"mrfsegment/pkg/config"
	"mrfsegment/pkg/fourierfilter"
	"mrfsegment/pkg/labelio"
	"mrfsegment/pkg/mrf"
	"mrfsegment/pkg/visualization"
)

// Output file names inside Params.OutputDir.
const (
	LabelsFile  = "labels.mrfl"
	MetricsFile = "metrics.yaml"
	SlicesDir   = "slices"
)

// Params holds the segmentation parameters.
type Params struct {
	// InputDir is the directory containing the 2D slice images. Slices are
	// ordered by the number in their filename.
	InputDir string

	// OutputDir receives the label volume, label slices and metrics.
	OutputDir string

	// Config carries the classifier, MRF, filter and output settings.
	// Nil uses config.DefaultConfig().
	Config *config.Config

	// Logger receives stage and iteration logs. Nil disables logging.
	Logger *zerolog.Logger
}

// Segmenter handles one segmentation run.
//
// The process consists of several steps:
// 1. Loading input slices and stacking them into a feature volume
// 2. Optionally low-pass filtering every slice in the Fourier domain
// 3. Seeding labels with the configured distance classifier
// 4. Refining labels with synchronous ICM
// 5. Writing label slices, the label volume and metrics
type Segmenter struct {
	params *Params
	cfg    *config.Config
	logger zerolog.Logger

	features *models.FeatureVolume
	volume   *mrf.LabelVolume
	result   mrf.Result
	metrics  Metrics
}

// NewSegmenter creates a segmenter with the provided parameters.
func NewSegmenter(params *Params) *Segmenter {
	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := zerolog.Nop()
	if params.Logger != nil {
		logger = logging.Component(*params.Logger, "segmentation")
	}
	return &Segmenter{params: params, cfg: cfg, logger: logger}
}

// Process runs the complete segmentation pipeline. Cancelling ctx stops the
// ICM run at the next iteration boundary and Process returns ctx's error.
func (s *Segmenter) Process(ctx context.Context) error {
	start := time.Now()
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.params.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Step 1: Load input slices
	s.logger.Info().Str("dir", s.params.InputDir).Msg("step 1: loading input slices")
	slices, err := loadSlices(s.params.InputDir, s.cfg.Processing.Extensions)
	if err != nil {
		return fmt.Errorf("failed to load slices: %w", err)
	}
	s.features, err = models.FromSlices(slices, models.FeatureMode(s.cfg.Processing.FeatureMode))
	if err != nil {
		return fmt.Errorf("failed to build feature volume: %w", err)
	}
	s.logger.Info().
		Int("width", s.features.Width).
		Int("height", s.features.Height).
		Int("depth", s.features.Depth).
		Int("features", s.features.NumFeatures).
		Msg("feature volume ready")

	// Step 2: Fourier prefilter
	if s.cfg.Filter.Enabled {
		s.logger.Info().Float64("sigma", s.cfg.Filter.Sigma).Msg("step 2: low-pass filtering slices")
		if err := s.filterSlices(ctx); err != nil {
			return fmt.Errorf("failed to filter slices: %w", err)
		}
	}

	// Step 3 and 4: Classify, then refine with ICM
	s.logger.Info().Str("classifier", s.cfg.Classifier.Kind).Int("classes", len(s.cfg.Classifier.Classes)).Msg("step 3: classifying and refining labels")
	if err := s.label(ctx); err != nil {
		return err
	}

	s.metrics = calculateMetrics(s.volume, s.result, s.classNames())

	// Step 5: Write outputs
	s.logger.Info().Str("dir", s.params.OutputDir).Msg("step 5: writing outputs")
	if err := s.writeOutputs(); err != nil {
		return err
	}

	s.logger.Info().
		Str("state", s.metrics.State).
		Int("iterations", s.metrics.Iterations).
		Float64("relabelled", s.metrics.RelabelledFraction).
		Dur("elapsed", time.Since(start)).
		Msg("segmentation finished")
	return nil
}

// filterSlices low-passes every channel of every slice, one goroutine per
// slice up to the configured worker count.
func (s *Segmenter) filterSlices(ctx context.Context) error {
	fv := s.features
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Processing.NumWorkers, 1))

	for z := 0; z < fv.Depth; z++ {
		z := z
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for f := 0; f < fv.NumFeatures; f++ {
				filtered, err := fourierfilter.LowPass(fv.Channel(z, f), fv.Width, fv.Height, s.cfg.Filter.Sigma)
				if err != nil {
					return fmt.Errorf("slice %d channel %d: %w", z, f, err)
				}
				fv.SetChannel(z, f, filtered)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Segmenter) label(ctx context.Context) error {
	classModels := make([]classifier.ClassModel, len(s.cfg.Classifier.Classes))
	for i, c := range s.cfg.Classifier.Classes {
		classModels[i] = classifier.ClassModel{Name: c.Name, Mean: c.Mean, Covariance: c.Covariance}
	}
	clf, err := classifier.New(classifier.Kind(s.cfg.Classifier.Kind), classModels)
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	engine, err := mrf.NewEngine(mrf.Options{
		NumberOfClasses:           clf.NumberOfClasses(),
		MaximumNumberOfIterations: s.cfg.MRF.MaxIterations,
		ErrorTolerance:            s.cfg.ToleranceFor(s.features.Len()),
		Radius:                    s.cfg.MRF.NeighborhoodRadius,
		Weights:                   s.cfg.MRF.Weights,
		Workers:                   s.cfg.Processing.NumWorkers,
		Logger:                    s.params.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build MRF engine: %w", err)
	}

	s.volume, s.result, err = engine.Segment(ctx, s.features, clf)
	if err != nil {
		return fmt.Errorf("labelling failed: %w", err)
	}
	return nil
}

func (s *Segmenter) writeOutputs() error {
	out := s.params.OutputDir
	size := s.volume.Size()
	labels := s.volume.Labels()

	if s.cfg.Output.SaveRaw {
		err := labelio.WriteFile(filepath.Join(out, LabelsFile), labelio.Volume{
			Size:            size,
			NumberOfClasses: s.volume.NumberOfClasses(),
			Labels:          labels,
		})
		if err != nil {
			return fmt.Errorf("failed to write label volume: %w", err)
		}
	}

	if s.cfg.Output.SaveLabelSlices {
		fixed := make([]string, len(s.cfg.Classifier.Classes))
		for i, c := range s.cfg.Classifier.Classes {
			fixed[i] = c.Color
		}
		palette, err := visualization.Palette(s.volume.NumberOfClasses(), fixed)
		if err != nil {
			return fmt.Errorf("failed to build palette: %w", err)
		}
		viewer, err := visualization.NewViewer(labels, size[0], size[1], size[2], palette)
		if err != nil {
			return err
		}
		for _, axis := range []string{"x", "y", "z"} {
			if err := viewer.SaveSliceSequence(axis, filepath.Join(out, SlicesDir, axis)); err != nil {
				s.logger.Warn().Err(err).Str("axis", axis).Msg("failed to save label slices")
			}
		}
	}

	data, err := yaml.Marshal(s.metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	if err := os.WriteFile(filepath.Join(out, MetricsFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func (s *Segmenter) classNames() []string {
	names := make([]string, len(s.cfg.Classifier.Classes))
	for i, c := range s.cfg.Classifier.Classes {
		names[i] = c.Name
	}
	return names
}

// GetMetrics returns the metrics of the last Process call.
func (s *Segmenter) GetMetrics() Metrics {
	return s.metrics
}

// GetResult returns how the ICM run ended, including per-iteration history.
func (s *Segmenter) GetResult() mrf.Result {
	return s.result
}

// GetLabels returns the final labels and the volume dimensions.
func (s *Segmenter) GetLabels() ([]int, int, int, int) {
	if s.volume == nil {
		return nil, 0, 0, 0
	}
	size := s.volume.Size()
	return s.volume.Labels(), size[0], size[1], size[2]
}
