package linkage

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/run"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/stem/pkg/tracing"
)

// Service executes linkage requests end to end: fingerprint dedup, run
// persistence, engine execution and lifecycle events. Both the Kafka
// processor and the HTTP routes drive it.
type Service struct {
	log     ectologger.Logger
	baseCfg Config
	runs    *run.Repository
	emitter *events.Emitter
}

// NewService creates a new linkage service. baseCfg is the service default
// configuration; requests may override individual knobs.
func NewService(log ectologger.Logger, baseCfg Config, runs *run.Repository, emitter *events.Emitter) *Service {
	return &Service{
		log:     log,
		baseCfg: baseCfg,
		runs:    runs,
		emitter: emitter,
	}
}

// ExecuteResult is the outcome of ExecuteRequest.
type ExecuteResult struct {
	Run    *models.LinkageRun
	Report *models.Report
	// Duplicate is true when the request fingerprint matched an existing run
	// and no new work was performed.
	Duplicate bool
}

// ExecuteRequest runs one linkage request. A request whose fingerprint
// matches an already completed or still running run is not re-executed;
// at-least-once delivery upstream makes this path routine, not exceptional.
//
// Configuration errors are returned wrapped in ErrInvalidConfiguration and
// the run is persisted as failed so the caller can see why.
func (s *Service) ExecuteRequest(ctx context.Context, req models.LinkageRequest) (*ExecuteResult, error) {
	ctx, span := tracing.StartSpan(ctx, "linkage.Service.ExecuteRequest")
	defer span.End()

	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":    req.TenantID,
		"request_id":   req.RequestID,
		"source_count": len(req.SourceRecords),
		"target_count": len(req.TargetRecords),
	})

	fp, err := fingerprint.GenerateRequest(req)
	if err != nil {
		log.WithError(err).Error("Failed to fingerprint linkage request")
		return nil, err
	}

	existing, err := s.runs.GetByFingerprint(ctx, req.TenantID, fp)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != models.RunStatusFailed {
		log.WithFields(map[string]any{"run_id": existing.ID, "status": existing.Status}).Info("Skipping duplicate linkage request")
		return &ExecuteResult{Run: existing, Duplicate: true}, nil
	}

	runRow, err := s.runs.Create(ctx, &models.LinkageRun{
		TenantID:           req.TenantID,
		RequestFingerprint: fp,
		SourceCount:        len(req.SourceRecords),
		TargetCount:        len(req.TargetRecords),
	})
	if err != nil {
		return nil, err
	}

	log = log.WithFields(map[string]any{"run_id": runRow.ID})

	engine, err := NewEngine(s.log, s.baseCfg.ApplyOptions(req.Options))
	if err != nil {
		log.WithError(err).Warn("Rejecting linkage request with invalid configuration")
		s.failRun(ctx, runRow, err)
		return &ExecuteResult{Run: runRow}, err
	}

	if emitErr := s.emitter.EmitRunStarted(ctx, req.TenantID, runRow.ID, len(req.SourceRecords), len(req.TargetRecords)); emitErr != nil {
		log.WithError(emitErr).Warn("Failed to emit run.started event")
	}

	report, err := engine.Run(ctx, req.SourceRecords, req.TargetRecords, func(progress models.Progress) {
		if emitErr := s.emitter.EmitRunProgress(ctx, req.TenantID, runRow.ID, progress); emitErr != nil {
			log.WithError(emitErr).Warn("Failed to emit run.progress event")
		}
	})
	if err != nil {
		s.failRun(ctx, runRow, err)
		return &ExecuteResult{Run: runRow, Report: report}, err
	}
	report.RunID = runRow.ID

	if err := s.runs.CreateMatchesBatch(ctx, req.TenantID, runRow.ID, report.Matches); err != nil {
		s.failRun(ctx, runRow, err)
		return &ExecuteResult{Run: runRow, Report: report}, err
	}
	if err := s.runs.MarkCompleted(ctx, req.TenantID, runRow.ID, report); err != nil {
		return &ExecuteResult{Run: runRow, Report: report}, err
	}

	if emitErr := s.emitter.EmitRunCompleted(ctx, req.TenantID, runRow.ID, report); emitErr != nil {
		log.WithError(emitErr).Warn("Failed to emit run.completed event")
	}

	log.WithFields(map[string]any{
		"match_count":   len(report.Matches),
		"warning_count": len(report.Warnings),
	}).Info("Linkage request completed")

	return &ExecuteResult{Run: runRow, Report: report}, nil
}

// failRun marks the run failed and emits run.failed. Both are best effort;
// the original error is what the caller sees.
func (s *Service) failRun(ctx context.Context, runRow *models.LinkageRun, runErr error) {
	if err := s.runs.MarkFailed(ctx, runRow.TenantID, runRow.ID, runErr); err != nil {
		s.log.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runRow.ID}).Error("Failed to mark run failed")
	}
	if err := s.emitter.EmitRunFailed(ctx, runRow.TenantID, runRow.ID, runErr); err != nil {
		s.log.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runRow.ID}).Warn("Failed to emit run.failed event")
	}
}
