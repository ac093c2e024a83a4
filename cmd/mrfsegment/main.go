package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mrfsegment/internal/logging"
	"mrfsegment/pkg/config"
	"mrfsegment/pkg/mrf"
	"mrfsegment/pkg/segmentation"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing 2D slices")
	outputDir := flag.String("output", "segmentation", "Directory for label volume, label slices and metrics")
	configPath := flag.String("config", "mrfsegment.yaml", "YAML configuration file (defaults are used if it does not exist)")
	workers := flag.Int("workers", 0, "Goroutines per labelling sweep (0 keeps the configured value)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	verbose := flag.Bool("verbose", false, "Log every ICM iteration")
	flag.Parse()

	logger := logging.NewConsole(*verbose)

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			logger.Fatal().Err(err).Msg("failed to write default configuration")
		}
		logger.Info().Str("path", *configPath).Msg("default configuration written")
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *workers > 0 {
		cfg.Processing.NumWorkers = *workers
	}
	if cfg.Output.Verbose && !*verbose {
		logger = logging.NewConsole(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	segmenter := segmentation.NewSegmenter(&segmentation.Params{
		InputDir:  *inputDir,
		OutputDir: *outputDir,
		Config:    cfg,
		Logger:    &logger,
	})

	startTime := time.Now()
	if err := segmenter.Process(ctx); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			logger.Warn().Msg("segmentation interrupted")
			os.Exit(130)
		case errors.Is(err, mrf.ErrConfiguration):
			logger.Fatal().Err(err).Msg("invalid configuration")
		default:
			logger.Fatal().Err(err).Msg("segmentation failed")
		}
	}
	processingTime := time.Since(startTime)

	metrics := segmenter.GetMetrics()
	fmt.Printf("\nSegmentation completed in %.2f seconds\n", processingTime.Seconds())
	fmt.Printf("Outputs saved to: %s\n\n", *outputDir)

	fmt.Printf("Labelling Metrics:\n")
	fmt.Printf("==================\n")
	fmt.Printf("Final state: %s after %d iterations\n", metrics.State, metrics.Iterations)
	fmt.Printf("Changes in last iteration: %d\n", metrics.FinalChanges)
	fmt.Printf("Relabelled by smoothing: %d (%.2f%%)\n", metrics.Relabelled, 100*metrics.RelabelledFraction)
	fmt.Printf("Label entropy: %.3f bits\n", metrics.LabelEntropy)
	fmt.Printf("Mean data fit: %.4f\n", metrics.MeanDataFit)
	for i, frac := range metrics.ClassFractions {
		fmt.Printf("- %-12s %6.2f%%\n", metrics.ClassNames[i], 100*frac)
	}

	if cfg.Output.SaveLabelSlices {
		fmt.Printf("\nLabel slices saved to: %s\n", filepath.Join(*outputDir, segmentation.SlicesDir))
	}
}
