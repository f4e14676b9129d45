// Package events handles event emission for linkage run lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/tracing"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter handles event emission for fern
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *Emitter) publish(ctx context.Context, eventType EventType, tenantID, runID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &kafka.RunEvent{
		EventType: string(eventType),
		TenantID:  tenantID,
		RunID:     runID,
		Data:      data,
	}

	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"run_id":     runID,
		}).Error("Failed to emit run event")
		return err
	}

	return nil
}

// EmitRunStarted emits a run.started event
func (e *Emitter) EmitRunStarted(ctx context.Context, tenantID, runID string, sourceCount, targetCount int) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunStarted")
	defer span.End()

	event := RunStartedEvent{
		BaseEvent:   NewBaseEvent(EventTypeRunStarted, tenantID),
		RunID:       runID,
		SourceCount: sourceCount,
		TargetCount: targetCount,
	}

	return e.publish(ctx, EventTypeRunStarted, tenantID, runID, event)
}

// EmitRunProgress emits a run.progress event after a processed batch
func (e *Emitter) EmitRunProgress(ctx context.Context, tenantID, runID string, progress models.Progress) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunProgress")
	defer span.End()

	event := RunProgressEvent{
		BaseEvent: NewBaseEvent(EventTypeRunProgress, tenantID),
		RunID:     runID,
		Processed: progress.Processed,
		Total:     progress.Total,
		Matched:   progress.Matched,
	}

	return e.publish(ctx, EventTypeRunProgress, tenantID, runID, event)
}

// EmitRunCompleted emits a run.completed event with the report summary
func (e *Emitter) EmitRunCompleted(ctx context.Context, tenantID, runID string, report *models.Report) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	event := RunCompletedEvent{
		BaseEvent:            NewBaseEvent(EventTypeRunCompleted, tenantID),
		RunID:                runID,
		MatchCount:           len(report.Matches),
		UnmatchedSourceCount: len(report.UnmatchedSource),
		UnmatchedTargetCount: len(report.UnmatchedTarget),
		WarningCount:         len(report.Warnings),
		Partial:              report.Partial,
	}

	return e.publish(ctx, EventTypeRunCompleted, tenantID, runID, event)
}

// EmitRunFailed emits a run.failed event
func (e *Emitter) EmitRunFailed(ctx context.Context, tenantID, runID string, runErr error) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunFailed")
	defer span.End()

	event := RunFailedEvent{
		BaseEvent: NewBaseEvent(EventTypeRunFailed, tenantID),
		RunID:     runID,
		Error:     runErr.Error(),
	}

	return e.publish(ctx, EventTypeRunFailed, tenantID, runID, event)
}
