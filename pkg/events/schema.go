package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	// Run lifecycle events
	EventTypeRunStarted   EventType = "run.started"
	EventTypeRunProgress  EventType = "run.progress"
	EventTypeRunCompleted EventType = "run.completed"
	EventTypeRunFailed    EventType = "run.failed"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	TenantID      string    `json:"tenant_id"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// RunStartedEvent is emitted when a linkage run begins processing
type RunStartedEvent struct {
	BaseEvent
	RunID       string `json:"run_id"`
	SourceCount int    `json:"source_count"`
	TargetCount int    `json:"target_count"`
}

// RunProgressEvent is emitted after each processed batch
type RunProgressEvent struct {
	BaseEvent
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Matched   int    `json:"matched"`
}

// RunCompletedEvent is emitted when a run finishes, carrying the report
// summary. The full match list is persisted, not broadcast.
type RunCompletedEvent struct {
	BaseEvent
	RunID                string `json:"run_id"`
	MatchCount           int    `json:"match_count"`
	UnmatchedSourceCount int    `json:"unmatched_source_count"`
	UnmatchedTargetCount int    `json:"unmatched_target_count"`
	WarningCount         int    `json:"warning_count"`
	Partial              bool   `json:"partial,omitempty"`
}

// RunFailedEvent is emitted when a run cannot complete
type RunFailedEvent struct {
	BaseEvent
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType, tenantID string) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		TenantID:      tenantID,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}
