// Package config provides configuration loading and management for mrfsegment.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"mrfsegment/pkg/mrf"
)

// ClassConfig describes one tissue class for the initial classifier
type ClassConfig struct {
	// Name labels the class in logs and metrics
	Name string `yaml:"name"`

	// Mean is the class centre in feature space
	Mean []float64 `yaml:"mean"`

	// Covariance is the class covariance; omitted means identity
	Covariance [][]float64 `yaml:"covariance,omitempty"`

	// Color is a hex colour (#rrggbb) for label slices; omitted picks one
	Color string `yaml:"color,omitempty"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many goroutines share each labelling sweep
		NumWorkers int `yaml:"numWorkers"`

		// FeatureMode selects per-pixel features: "gray" or "rgb"
		FeatureMode string `yaml:"featureMode"`

		// Extensions lists the slice file extensions to load
		Extensions []string `yaml:"extensions"`
	} `yaml:"processing"`

	// MRF labelling parameters
	MRF struct {
		// MaxIterations caps the number of ICM iterations
		MaxIterations int `yaml:"maxIterations"`

		// ErrorTolerance is the changed-pixel count at which a run converges
		ErrorTolerance int `yaml:"errorTolerance"`

		// ErrorToleranceFraction, when positive, overrides ErrorTolerance
		// with a fraction of the total pixel count
		ErrorToleranceFraction float64 `yaml:"errorToleranceFraction"`

		// NeighborhoodRadius is the radius per dimension (x, y, z)
		NeighborhoodRadius []int `yaml:"neighborhoodRadius"`

		// Weights is the flat neighbourhood weight table, x fastest;
		// omitted uses the default 3x3x3 table
		Weights []float64 `yaml:"weights,omitempty"`
	} `yaml:"mrf"`

	// Classifier parameters
	Classifier struct {
		// Kind is "gaussian" (Mahalanobis) or "euclidean"
		Kind string `yaml:"kind"`

		// Classes defines the labels; their count is the number of classes
		Classes []ClassConfig `yaml:"classes"`
	} `yaml:"classifier"`

	// Fourier prefilter parameters
	Filter struct {
		// Enabled turns on per-slice Gaussian low-pass filtering
		Enabled bool `yaml:"enabled"`

		// Sigma is the filter width in normalised frequency (0, 0.5]
		Sigma float64 `yaml:"sigma"`
	} `yaml:"filter"`

	// Output parameters
	Output struct {
		// SaveLabelSlices writes coloured label slices along every axis
		SaveLabelSlices bool `yaml:"saveLabelSlices"`

		// SaveRaw writes the compressed label volume
		SaveRaw bool `yaml:"saveRaw"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.FeatureMode = "gray"
	cfg.Processing.Extensions = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp"}

	// Set default MRF parameters
	cfg.MRF.MaxIterations = mrf.DefaultMaximumNumberOfIterations
	cfg.MRF.ErrorTolerance = 0
	cfg.MRF.NeighborhoodRadius = []int{1, 1, 1}

	// Two-class dark/bright split as a starting point
	cfg.Classifier.Kind = "gaussian"
	cfg.Classifier.Classes = []ClassConfig{
		{Name: "background", Mean: []float64{0.1}, Covariance: [][]float64{{0.01}}, Color: "#000000"},
		{Name: "foreground", Mean: []float64{0.7}, Covariance: [][]float64{{0.04}}, Color: "#e8c547"},
	}

	// Set default filter parameters
	cfg.Filter.Enabled = false
	cfg.Filter.Sigma = 0.25

	// Set default output parameters
	cfg.Output.SaveLabelSlices = true
	cfg.Output.SaveRaw = true
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks the configuration for values the pipeline cannot run with.
// Errors wrap mrf.ErrConfiguration.
func (c *Config) Validate() error {
	if c.Processing.FeatureMode != "gray" && c.Processing.FeatureMode != "rgb" {
		return fmt.Errorf("%w: featureMode must be gray or rgb, got %q", mrf.ErrConfiguration, c.Processing.FeatureMode)
	}
	if len(c.Processing.Extensions) == 0 {
		return fmt.Errorf("%w: no input extensions configured", mrf.ErrConfiguration)
	}
	if c.MRF.MaxIterations < 0 {
		return fmt.Errorf("%w: maxIterations must not be negative", mrf.ErrConfiguration)
	}
	if c.MRF.ErrorTolerance < 0 {
		return fmt.Errorf("%w: errorTolerance must not be negative", mrf.ErrConfiguration)
	}
	if c.MRF.ErrorToleranceFraction < 0 || c.MRF.ErrorToleranceFraction > 1 {
		return fmt.Errorf("%w: errorToleranceFraction must lie in [0, 1]", mrf.ErrConfiguration)
	}
	if len(c.MRF.NeighborhoodRadius) != 3 {
		return fmt.Errorf("%w: neighborhoodRadius needs 3 entries (x, y, z), got %d", mrf.ErrConfiguration, len(c.MRF.NeighborhoodRadius))
	}
	if len(c.Classifier.Classes) == 0 {
		return fmt.Errorf("%w: at least one class is required", mrf.ErrConfiguration)
	}

	want := 1
	if c.Processing.FeatureMode == "rgb" {
		want = 3
	}
	for i, cls := range c.Classifier.Classes {
		if len(cls.Mean) != want {
			return fmt.Errorf("%w: class %d (%s) mean has %d features, featureMode %s needs %d",
				mrf.ErrConfiguration, i, cls.Name, len(cls.Mean), c.Processing.FeatureMode, want)
		}
	}
	if c.Filter.Enabled && (c.Filter.Sigma <= 0 || c.Filter.Sigma > 0.5) {
		return fmt.Errorf("%w: filter sigma must lie in (0, 0.5], got %f", mrf.ErrConfiguration, c.Filter.Sigma)
	}
	return nil
}

// ToleranceFor resolves the convergence threshold for a volume of
// totalPixels voxels.
func (c *Config) ToleranceFor(totalPixels int) int {
	if c.MRF.ErrorToleranceFraction > 0 {
		return int(c.MRF.ErrorToleranceFraction * float64(totalPixels))
	}
	return c.MRF.ErrorTolerance
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
