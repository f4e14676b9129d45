// Package linkage implements the batch record-linkage engine: it resolves a
// source collection of person records against a target collection and reports
// matched pairs plus the unmatched residue on both sides.
//
// The engine is I/O free. Transport, persistence and eventing live in the
// processor and route layers; everything here is deterministic given the same
// inputs and configuration.
package linkage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/blocking"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/stem/pkg/tracing"
)

var (
	// ErrInvalidConfiguration is returned by NewEngine when the configuration
	// fails validation. Nothing after construction returns it.
	ErrInvalidConfiguration = errors.New("invalid linkage configuration")

	// ErrRunFinalized is returned when a batch is submitted to a run whose
	// report has already been assembled.
	ErrRunFinalized = errors.New("linkage run already finalized")
)

// weightSumEpsilon is the tolerance when checking that weights sum to 1.0.
const weightSumEpsilon = 1e-6

// Config contains the engine configuration for a run.
type Config struct {
	CompositeThreshold float64                `validate:"gte=0,lte=100"`
	Weights            models.FieldWeights    `validate:"required"`
	Thresholds         models.FieldThresholds `validate:"required"`
	DOBWindowDays      int                    `validate:"gt=0"`
	BatchSize          int                    `validate:"gt=0"`
	MinPhoneDigits     int                    `validate:"gte=1"`
	MaxFallbackScan    int                    `validate:"gt=0"`
	WorkerCount        int                    `validate:"gt=0"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CompositeThreshold: 85,
		Weights:            models.FieldWeights{Name: 0.4, Email: 0.2, DOB: 0.2, Phone: 0.2},
		Thresholds:         models.FieldThresholds{},
		DOBWindowDays:      30,
		BatchSize:          1000,
		MinPhoneDigits:     6,
		MaxFallbackScan:    5000,
		WorkerCount:        4,
	}
}

// ConfigFromApp builds the engine configuration from the service
// configuration.
func ConfigFromApp(app config.Config) Config {
	return Config{
		CompositeThreshold: app.CompositeThreshold,
		Weights: models.FieldWeights{
			Name:  app.NameWeight,
			Email: app.EmailWeight,
			DOB:   app.DOBWeight,
			Phone: app.PhoneWeight,
		},
		Thresholds: models.FieldThresholds{
			Name:  app.NameThreshold,
			Email: app.EmailThreshold,
			Phone: app.PhoneThreshold,
		},
		DOBWindowDays:   app.DOBWindowDays,
		BatchSize:       app.LinkageBatchSize,
		MinPhoneDigits:  app.MinPhoneDigits,
		MaxFallbackScan: app.MaxFallbackScan,
		WorkerCount:     app.LinkageWorkerCount,
	}
}

// ApplyOptions returns a copy of the config with any request overrides
// applied. The result still goes through NewEngine validation.
func (c Config) ApplyOptions(opts *models.RunOptions) Config {
	if opts == nil {
		return c
	}
	if opts.CompositeThreshold != nil {
		c.CompositeThreshold = *opts.CompositeThreshold
	}
	if opts.Weights != nil {
		c.Weights = *opts.Weights
	}
	if opts.Thresholds != nil {
		c.Thresholds = *opts.Thresholds
	}
	if opts.DOBWindowDays != nil {
		c.DOBWindowDays = *opts.DOBWindowDays
	}
	if opts.BatchSize != nil {
		c.BatchSize = *opts.BatchSize
	}
	if opts.MinPhoneDigits != nil {
		c.MinPhoneDigits = *opts.MinPhoneDigits
	}
	if opts.MaxFallbackScan != nil {
		c.MaxFallbackScan = *opts.MaxFallbackScan
	}
	return c
}

var validate = validator.New()

// Validate checks the configuration, including that the field weights sum
// to 1.0 within tolerance.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	if sum := c.Weights.Sum(); math.Abs(sum-1.0) > weightSumEpsilon {
		return fmt.Errorf("%w: field weights sum to %v, want 1.0", ErrInvalidConfiguration, sum)
	}

	for _, threshold := range []float64{c.Thresholds.Name, c.Thresholds.Email, c.Thresholds.Phone} {
		if threshold < 0 || threshold > 100 {
			return fmt.Errorf("%w: field thresholds must be within 0..100", ErrInvalidConfiguration)
		}
	}

	return nil
}

// Engine runs record-linkage jobs. One Engine can serve many runs; per-run
// state lives on the Run.
type Engine struct {
	log ectologger.Logger
	cfg Config
}

// NewEngine creates a new Engine. Configuration errors surface here and only
// here; a constructed engine never rejects input for configuration reasons.
func NewEngine(log ectologger.Logger, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{log: log, cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run is the mutable state of one linkage run: the indexed targets, the
// claimed set, and the accumulated results. A Run is not safe for concurrent
// Submit calls; batches are processed strictly in submission order.
type Run struct {
	engine   *Engine
	resolver *matching.Resolver
	index    *blocking.Index
	claims   *matching.ClaimSet

	targetIDs   []string
	seenSources map[string]struct{}

	matches         []models.MatchedPair
	unmatchedSource []models.UnmatchedRecord
	warnings        []models.RunWarning
	processed       int
	sourceCount     int
	finalized       bool
	report          *models.Report
}

// NewRun normalizes and indexes the target collection and returns a run ready
// to accept source batches. Duplicate target ids keep the first occurrence
// and record a warning.
func (e *Engine) NewRun(ctx context.Context, targets []models.Record) (*Run, error) {
	ctx, span := tracing.StartSpan(ctx, "linkage.Engine.NewRun")
	defer span.End()

	run := &Run{
		engine:      e,
		claims:      matching.NewClaimSet(),
		seenSources: make(map[string]struct{}),
	}

	scorer := matching.NewScorer(e.cfg.Weights, e.cfg.Thresholds, e.cfg.DOBWindowDays)
	run.resolver = matching.NewResolver(scorer, e.cfg.CompositeThreshold)

	seen := make(map[string]struct{}, len(targets))
	normalized := make([]models.NormalizedRecord, 0, len(targets))
	for _, rec := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := seen[rec.RecordID]; ok {
			run.warnings = append(run.warnings, models.RunWarning{
				Code:     models.WarningDuplicateRecord,
				RecordID: rec.RecordID,
				Message:  "duplicate target record id, keeping first occurrence",
			})
			continue
		}
		seen[rec.RecordID] = struct{}{}
		normalized = append(normalized, normalizers.NormalizeRecord(rec, e.cfg.MinPhoneDigits))
		run.targetIDs = append(run.targetIDs, rec.RecordID)
	}

	run.index = blocking.Build(normalized, e.cfg.MaxFallbackScan)

	e.log.WithContext(ctx).WithFields(map[string]any{
		"target_count": len(normalized),
	}).Debug("Built blocking index for linkage run")

	return run, nil
}

// scored holds the phase-one output for one source record of a batch.
type scored struct {
	pairs    []models.CandidatePair
	warnings []models.RunWarning
}

// Submit processes one batch of source records. Scoring fans out to a bounded
// worker pool; claims are then resolved sequentially in input order, so the
// outcome is identical to a single-threaded pass and independent of how the
// sources were batched.
func (r *Run) Submit(ctx context.Context, batch []models.Record) error {
	ctx, span := tracing.StartSpan(ctx, "linkage.Run.Submit")
	defer span.End()

	if r.finalized {
		return ErrRunFinalized
	}

	// Duplicate source ids keep the first occurrence, like targets.
	accepted := make([]models.NormalizedRecord, 0, len(batch))
	for _, rec := range batch {
		if _, ok := r.seenSources[rec.RecordID]; ok {
			r.warnings = append(r.warnings, models.RunWarning{
				Code:     models.WarningDuplicateRecord,
				RecordID: rec.RecordID,
				Message:  "duplicate source record id, keeping first occurrence",
			})
			// skipped duplicates still count toward progress so it reaches the total
			r.processed++
			continue
		}
		r.seenSources[rec.RecordID] = struct{}{}
		accepted = append(accepted, normalizers.NormalizeRecord(rec, r.engine.cfg.MinPhoneDigits))
	}
	r.sourceCount += len(accepted)

	// Phase one: score every source against its candidate block in parallel.
	// Scores never depend on the claimed set, so this is race free.
	results := make([]scored, len(accepted))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := r.engine.cfg.WorkerCount
	if workers > len(accepted) && len(accepted) > 0 {
		workers = len(accepted)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				candidates, warnings := r.index.Candidates(accepted[i])
				results[i] = scored{
					pairs:    r.resolver.ScoreCandidates(accepted[i], candidates),
					warnings: warnings,
				}
			}
		}()
	}
	for i := range accepted {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	// Phase two: claim targets sequentially in input order.
	for i, src := range accepted {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := results[i]
		r.warnings = append(r.warnings, res.warnings...)

		if match := r.resolver.Resolve(res.pairs, r.claims); match != nil {
			r.matches = append(r.matches, *match)
		} else {
			r.unmatchedSource = append(r.unmatchedSource, models.UnmatchedRecord{
				RecordID: src.RecordID,
				Side:     models.SideSource,
			})
		}
		r.processed++
	}

	return nil
}

// Progress returns the counters for the work submitted so far.
func (r *Run) Progress() models.Progress {
	return models.Progress{
		Processed: r.processed,
		Matched:   len(r.matches),
	}
}

// Run executes a full linkage of sources against targets, slicing the sources
// into fixed-size batches. onProgress, if non-nil, is called after each batch.
// On cancellation the partial report is returned alongside the context error;
// completed batches keep their results and the report is marked partial.
func (e *Engine) Run(ctx context.Context, sources, targets []models.Record, onProgress func(models.Progress)) (*models.Report, error) {
	ctx, span := tracing.StartSpan(ctx, "linkage.Engine.Run")
	defer span.End()

	log := e.log.WithContext(ctx).WithFields(map[string]any{
		"source_count": len(sources),
		"target_count": len(targets),
	})

	run, err := e.NewRun(ctx, targets)
	if err != nil {
		return nil, err
	}

	total := len(sources)
	for start := 0; start < total; start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > total {
			end = total
		}

		if err := run.Submit(ctx, sources[start:end]); err != nil {
			log.WithError(err).Warn("Linkage run interrupted, assembling partial report")
			report := run.Finalize()
			report.Partial = true
			return report, err
		}

		if onProgress != nil {
			progress := run.Progress()
			progress.Total = total
			onProgress(progress)
		}
	}

	report := run.Finalize()

	log.WithFields(map[string]any{
		"match_count":     len(report.Matches),
		"unmatched_count": len(report.UnmatchedSource) + len(report.UnmatchedTarget),
		"warning_count":   len(report.Warnings),
	}).Info("Linkage run completed")

	return report, nil
}
