// Package mrf refines a per-pixel classification of an N-dimensional image
// with a Markov Random Field model minimised by Iterated Conditional Modes.
//
// Each pixel starts with the class its classifier distance favours. Every
// iteration then re-scores each pixel as
//
//	energy(c) = distance(c) + sum of weight(offset) over neighbours whose label is not c
//
// and moves it to the lowest-energy class. Updates are synchronous: all
// pixels read the labels committed by the previous iteration. Iteration
// stops once the number of pixels that changed falls to the error tolerance
// or the iteration budget runs out.
package mrf

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultMaximumNumberOfIterations bounds a run when Options leaves the
// iteration budget unset.
const DefaultMaximumNumberOfIterations = 50

// State is the phase of a labelling run.
type State int

const (
	Initializing State = iota
	Iterating
	Converged
	IterationLimitReached
	Canceled
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case IterationLimitReached:
		return "iteration-limit-reached"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IterationStats summarises one completed iteration.
type IterationStats struct {
	Iteration int
	Examined  int
	Changed   int
	Duration  time.Duration
}

// ProgressCallback is invoked after every iteration, at the barrier, from
// the goroutine that called Run.
type ProgressCallback func(stats IterationStats)

// Options configures an Engine.
type Options struct {
	// NumberOfClasses is the number of labels a pixel may take. Required.
	NumberOfClasses int

	// MaximumNumberOfIterations caps the run. Zero selects
	// DefaultMaximumNumberOfIterations.
	MaximumNumberOfIterations int

	// ErrorTolerance is the number of changed pixels at or below which an
	// iteration counts as converged.
	ErrorTolerance int

	// Radius is the neighbourhood radius per dimension. When both Radius and
	// Weights are nil the default radius-1 kernel is built for whatever
	// dimensionality the volume has.
	Radius []int

	// Weights is the flat neighbourhood weight table for Radius. Nil selects
	// DefaultKernel, which only exists for radius 1.
	Weights []float64

	// Kernel may be given instead of Weights. Its radius must equal Radius
	// when both are set.
	Kernel *Kernel

	// Workers is the number of goroutines sharing each sweep. Zero or less
	// uses GOMAXPROCS.
	Workers int

	Logger   *zerolog.Logger
	Progress ProgressCallback
}

// Result reports how a run ended. Errors is the change count of the last
// completed iteration.
type Result struct {
	State      State
	Iterations int
	Errors     int
	History    []IterationStats
}

// Engine runs ICM labelling. It keeps no state between runs, so one Engine
// may label several volumes, though not the same volume concurrently.
type Engine struct {
	numClasses    int
	maxIterations int
	tolerance     int
	kernel        *Kernel
	workers       int
	logger        zerolog.Logger
	progress      ProgressCallback
}

// NewEngine validates opts and builds an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.NumberOfClasses < 1 {
		return nil, configErrorf("number of classes must be at least 1, got %d", opts.NumberOfClasses)
	}
	if opts.MaximumNumberOfIterations < 0 {
		return nil, configErrorf("maximum number of iterations must not be negative, got %d", opts.MaximumNumberOfIterations)
	}
	if opts.ErrorTolerance < 0 {
		return nil, configErrorf("error tolerance must not be negative, got %d", opts.ErrorTolerance)
	}

	kernel, err := resolveKernel(opts)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		numClasses:    opts.NumberOfClasses,
		maxIterations: opts.MaximumNumberOfIterations,
		tolerance:     opts.ErrorTolerance,
		kernel:        kernel,
		workers:       opts.Workers,
		logger:        zerolog.Nop(),
		progress:      opts.Progress,
	}
	if e.maxIterations == 0 {
		e.maxIterations = DefaultMaximumNumberOfIterations
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger != nil {
		e.logger = opts.Logger.With().Str("component", "icm").Logger()
	}
	return e, nil
}

// resolveKernel returns nil when the kernel should be the default for the
// volume's dimensionality, which is only known at run time.
func resolveKernel(opts Options) (*Kernel, error) {
	for d, r := range opts.Radius {
		if r < 0 {
			return nil, configErrorf("neighborhood radius[%d] is negative (%d)", d, r)
		}
	}

	switch {
	case opts.Kernel != nil:
		if opts.Weights != nil {
			return nil, configErrorf("set either Kernel or Weights, not both")
		}
		if opts.Radius != nil && !opts.Kernel.MatchesRadius(opts.Radius) {
			return nil, configErrorf("kernel radius %v does not match neighborhood radius %v", opts.Kernel.Radius(), opts.Radius)
		}
		return opts.Kernel, nil

	case opts.Weights != nil:
		if opts.Radius == nil {
			return nil, configErrorf("weights given without a neighborhood radius")
		}
		return NewKernel(opts.Radius, opts.Weights)

	case opts.Radius != nil:
		for d, r := range opts.Radius {
			if r != 1 {
				return nil, configErrorf("no default weights for radius %d in dimension %d; supply Weights", r, d)
			}
		}
		return DefaultKernel(len(opts.Radius)), nil
	}
	return nil, nil
}

// Kernel returns the configured kernel, or nil when the default is chosen
// per volume.
func (e *Engine) Kernel() *Kernel {
	return e.kernel
}

func (e *Engine) kernelFor(dims int) (*Kernel, error) {
	if e.kernel == nil {
		return DefaultKernel(dims), nil
	}
	if e.kernel.Dims() != dims {
		return nil, dataErrorf("kernel has %d dimensions, volume has %d", e.kernel.Dims(), dims)
	}
	return e.kernel, nil
}

// Initialize classifies every pixel of features once and returns a volume
// seeded with the distances and their argmin labels. A classifier error or
// a distance vector of the wrong length aborts seeding.
func (e *Engine) Initialize(ctx context.Context, features FeatureImage, classifier Classifier) (*LabelVolume, error) {
	if classifier == nil {
		return nil, configErrorf("classifier is nil")
	}
	if features == nil {
		return nil, configErrorf("feature image is nil")
	}

	vol, err := NewLabelVolume(features.Size(), e.numClasses)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range partition(vol.Len(), e.workers) {
		s := s
		g.Go(func() error {
			for i := s.start; i < s.end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				distances, err := classifier.Classify(features.Pixel(i))
				if err != nil {
					return fmt.Errorf("classify pixel %d: %w", i, err)
				}
				if err := vol.SetDistances(i, distances); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Ints("size", vol.Size()).
		Int("classes", e.numClasses).
		Dur("elapsed", time.Since(start)).
		Msg("initial classification done")
	return vol, nil
}

// Segment seeds a volume from features and runs ICM on it.
func (e *Engine) Segment(ctx context.Context, features FeatureImage, classifier Classifier) (*LabelVolume, Result, error) {
	vol, err := e.Initialize(ctx, features, classifier)
	if err != nil {
		return nil, Result{State: Initializing}, err
	}
	res, err := e.Run(ctx, vol)
	return vol, res, err
}

// Run iterates ICM on vol until it converges or the iteration budget is
// spent, mutating the labels in place. Reaching the budget is not an error.
//
// ctx is only consulted between iterations. When it is done, Run returns
// the labels committed by the last complete iteration, State Canceled and
// ctx.Err().
func (e *Engine) Run(ctx context.Context, vol *LabelVolume) (Result, error) {
	res := Result{State: Initializing}
	if vol == nil {
		return res, configErrorf("label volume is nil")
	}
	if vol.NumberOfClasses() != e.numClasses {
		return res, dataErrorf("volume has %d classes, engine expects %d", vol.NumberOfClasses(), e.numClasses)
	}
	kernel, err := e.kernelFor(len(vol.size))
	if err != nil {
		return res, err
	}

	nb := newNeighborhood(vol.grid, kernel)
	tracker := newTracker(nb)
	spans := partition(vol.Len(), e.workers)

	res.State = Iterating
	for {
		if err := ctx.Err(); err != nil {
			res.State = Canceled
			e.logger.Warn().Int("iterations", res.Iterations).Msg("labelling canceled")
			return res, err
		}

		start := time.Now()
		tracker.Reset()
		examined := e.sweep(vol, nb, tracker, spans)

		// Barrier: every sweep goroutine has finished writing.
		vol.Commit()
		changed := tracker.Swap()

		res.Iterations++
		res.Errors = changed
		stats := IterationStats{
			Iteration: res.Iterations,
			Examined:  examined,
			Changed:   changed,
			Duration:  time.Since(start),
		}
		res.History = append(res.History, stats)

		e.logger.Debug().
			Int("iteration", stats.Iteration).
			Int("examined", stats.Examined).
			Int("changed", stats.Changed).
			Dur("elapsed", stats.Duration).
			Msg("iteration complete")
		if e.progress != nil {
			e.progress(stats)
		}

		if changed <= e.tolerance {
			res.State = Converged
			break
		}
		if res.Iterations >= e.maxIterations {
			res.State = IterationLimitReached
			break
		}
	}

	e.logger.Info().
		Str("state", res.State.String()).
		Int("iterations", res.Iterations).
		Int("changed", res.Errors).
		Msg("labelling finished")
	return res, nil
}

// sweep runs one synchronous iteration over every pixel and returns how
// many were examined. Each span is handled by its own goroutine and keeps
// its own scratch buffers and counter.
func (e *Engine) sweep(vol *LabelVolume, nb *neighborhood, tracker *Tracker, spans []span) int {
	examined := make([]int, len(spans))

	var wg sync.WaitGroup
	for w, s := range spans {
		wg.Add(1)
		go func(w int, s span) {
			defer wg.Done()
			coord := make([]int, len(nb.size))
			agree := make([]float64, e.numClasses)
			energy := make([]float64, e.numClasses)

			for i := s.start; i < s.end; i++ {
				old := vol.Label(i)
				nb.coord(i, coord)
				if !tracker.ShouldExamine(i, coord) {
					vol.SetLabel(i, old)
					tracker.RecordChange(i, false)
					continue
				}
				examined[w]++

				energies(vol, nb, i, coord, agree, energy)
				label := argmin(energy)
				vol.SetLabel(i, label)
				tracker.RecordChange(i, label != old)
			}
		}(w, s)
	}
	wg.Wait()

	total := 0
	for _, n := range examined {
		total += n
	}
	return total
}

// energies fills out with the energy of every class for pixel index, using
// the committed neighbour labels. Out-of-bounds neighbours contribute
// nothing. agree is scratch space of the same length as out.
func energies(vol *LabelVolume, nb *neighborhood, index int, coord []int, agree, out []float64) {
	for c := range agree {
		agree[c] = 0
	}

	// Mismatch weight for class c is the in-bounds total minus the weight
	// of neighbours already labelled c.
	total := 0.0
	interior := nb.interior(coord)
	for k := range nb.neighbors {
		n := &nb.neighbors[k]
		if !interior && !nb.inBounds(coord, n) {
			continue
		}
		total += n.weight
		agree[vol.labels[index+n.delta]] += n.weight
	}

	dist := vol.distanceRow(index)
	for c := range out {
		out[c] = dist[c] + (total - agree[c])
	}
}

type span struct {
	start, end int
}

// partition splits [0, n) into at most parts contiguous spans.
func partition(n, parts int) []span {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	parts = min(parts, n)

	chunk := (n + parts - 1) / parts
	spans := make([]span, 0, parts)
	for start := 0; start < n; start += chunk {
		spans = append(spans, span{start: start, end: min(start+chunk, n)})
	}
	return spans
}
