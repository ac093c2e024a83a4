package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mrfsegment/pkg/mrf"
)

// TestDefaultConfigIsValid verifies the defaults pass validation
func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config failed validation: %v", err)
	}
	if cfg.MRF.MaxIterations != mrf.DefaultMaximumNumberOfIterations {
		t.Errorf("Expected %d iterations, got %d", mrf.DefaultMaximumNumberOfIterations, cfg.MRF.MaxIterations)
	}
	if cfg.Processing.NumWorkers < 1 {
		t.Errorf("Expected at least one worker, got %d", cfg.Processing.NumWorkers)
	}
}

// TestLoadConfigMissingFile verifies defaults are returned for a missing file
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Classifier.Classes) != 2 {
		t.Errorf("Expected default classes, got %d", len(cfg.Classifier.Classes))
	}
}

// TestLoadConfigOverrides verifies YAML values replace the defaults
func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := `
processing:
  featureMode: rgb
mrf:
  maxIterations: 12
  errorToleranceFraction: 0.01
  neighborhoodRadius: [1, 1, 0]
  weights: [1, 2, 1, 2, 0, 2, 1, 2, 1]
classifier:
  kind: euclidean
  classes:
    - name: red
      mean: [1, 0, 0]
    - name: blue
      mean: [0, 0, 1]
`
	if err := os.WriteFile(path, []byte(yamlData), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Loaded config failed validation: %v", err)
	}

	if cfg.MRF.MaxIterations != 12 || len(cfg.MRF.Weights) != 9 {
		t.Errorf("MRF section not loaded: %+v", cfg.MRF)
	}
	if cfg.Classifier.Kind != "euclidean" || len(cfg.Classifier.Classes) != 2 || cfg.Classifier.Classes[1].Name != "blue" {
		t.Errorf("Classifier section not loaded: %+v", cfg.Classifier)
	}
	if got := cfg.ToleranceFor(10000); got != 100 {
		t.Errorf("Expected fractional tolerance of 100 pixels, got %d", got)
	}
	// Untouched values keep their defaults
	if !cfg.Output.SaveRaw {
		t.Errorf("Expected default SaveRaw to survive partial YAML")
	}
}

// TestLoadConfigMalformed verifies parse errors are reported
func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("mrf: [unterminated"), 0644)
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error")
	}
}

// TestSaveAndReload verifies a saved config loads back unchanged
func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	def := DefaultConfig()
	if cfg.Classifier.Classes[1].Color != def.Classifier.Classes[1].Color || cfg.Filter.Sigma != def.Filter.Sigma {
		t.Errorf("Reloaded config differs from defaults: %+v", cfg)
	}
}

// TestValidate verifies invalid settings are configuration errors
func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"feature mode", func(c *Config) { c.Processing.FeatureMode = "hsv" }},
		{"no extensions", func(c *Config) { c.Processing.Extensions = nil }},
		{"negative iterations", func(c *Config) { c.MRF.MaxIterations = -1 }},
		{"negative tolerance", func(c *Config) { c.MRF.ErrorTolerance = -3 }},
		{"tolerance fraction", func(c *Config) { c.MRF.ErrorToleranceFraction = 1.5 }},
		{"radius dims", func(c *Config) { c.MRF.NeighborhoodRadius = []int{1, 1} }},
		{"no classes", func(c *Config) { c.Classifier.Classes = nil }},
		{"mean length", func(c *Config) { c.Processing.FeatureMode = "rgb" }},
		{"filter sigma", func(c *Config) { c.Filter.Enabled = true; c.Filter.Sigma = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, mrf.ErrConfiguration) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}
}
