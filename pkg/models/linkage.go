package models

import "time"

// FieldWeights are the relative contributions of each field to the composite
// score. They must sum to 1.0; the engine validates this at construction.
type FieldWeights struct {
	Name  float64 `json:"name" validate:"gte=0"`
	Email float64 `json:"email" validate:"gte=0"`
	DOB   float64 `json:"dob" validate:"gte=0"`
	Phone float64 `json:"phone" validate:"gte=0"`
}

// Sum returns the total of all weights.
func (w FieldWeights) Sum() float64 {
	return w.Name + w.Email + w.DOB + w.Phone
}

// FieldThresholds are per-field minimum similarities. A sub-score below its
// threshold contributes 0 to the composite. Zero thresholds disable gating.
type FieldThresholds struct {
	Name  float64 `json:"name" validate:"gte=0,lte=100"`
	Email float64 `json:"email" validate:"gte=0,lte=100"`
	Phone float64 `json:"phone" validate:"gte=0,lte=100"`
}

// FieldScores holds the per-field similarity scores for one compared pair,
// each on the 0..100 scale.
type FieldScores struct {
	Name  float64 `json:"name"`
	Email float64 `json:"email"`
	DOB   float64 `json:"dob"`
	Phone float64 `json:"phone"`
}

// CandidatePair is the scored comparison of one source record against one
// target candidate. Pairs are ephemeral; they exist only while the resolver
// decides the source record's assignment.
type CandidatePair struct {
	SourceID  string      `json:"source_id"`
	TargetID  string      `json:"target_id"`
	Fields    FieldScores `json:"field_scores"`
	Composite float64     `json:"composite_score"`
}

// MatchedPair is a resolved assignment of a source record to a target record.
type MatchedPair struct {
	SourceID string      `json:"source_id"`
	TargetID string      `json:"target_id"`
	Score    float64     `json:"composite_score"`
	Fields   FieldScores `json:"field_scores"`
}

// UnmatchedRecord is a record from either side that was never part of an
// accepted match.
type UnmatchedRecord struct {
	RecordID string      `json:"record_id"`
	Side     DatasetSide `json:"side"`
}

// Run warning codes.
const (
	WarningBlockOverflow     = "block_overflow"
	WarningFallbackTruncated = "fallback_truncated"
	WarningDuplicateRecord   = "duplicate_record_id"
)

// RunWarning records a recovered anomaly during a run. Warnings never abort
// a batch; they surface in the final report.
type RunWarning struct {
	Code     string `json:"code"`
	RecordID string `json:"record_id,omitempty"`
	Message  string `json:"message"`
}

// Progress is the incremental signal emitted after each processed batch.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Matched   int `json:"matched"`
}

// Report is the final output of a linkage run: matched pairs plus the two
// residual sets. The three collections are disjoint by construction.
type Report struct {
	RunID           string            `json:"run_id,omitempty"`
	Matches         []MatchedPair     `json:"matches"`
	UnmatchedSource []UnmatchedRecord `json:"unmatched_source"`
	UnmatchedTarget []UnmatchedRecord `json:"unmatched_target"`
	Warnings        []RunWarning      `json:"warnings,omitempty"`
	SourceCount     int               `json:"source_count"`
	TargetCount     int               `json:"target_count"`
	// Partial is true when the run was cancelled before every source batch
	// was resolved.
	Partial bool `json:"partial,omitempty"`
}

// Run statuses for persisted linkage runs.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// LinkageRun is the persisted summary of one run. Raw records are never
// stored; only counts, outcome and warnings survive the run.
type LinkageRun struct {
	ID                   string     `json:"id" db:"id"`
	TenantID             string     `json:"tenant_id" db:"tenant_id"`
	RequestFingerprint   string     `json:"request_fingerprint" db:"request_fingerprint"`
	Status               string     `json:"status" db:"status"`
	SourceCount          int        `json:"source_count" db:"source_count"`
	TargetCount          int        `json:"target_count" db:"target_count"`
	MatchCount           int        `json:"match_count" db:"match_count"`
	UnmatchedSourceCount int        `json:"unmatched_source_count" db:"unmatched_source_count"`
	UnmatchedTargetCount int        `json:"unmatched_target_count" db:"unmatched_target_count"`
	WarningCount         int        `json:"warning_count" db:"warning_count"`
	Error                *string    `json:"error,omitempty" db:"error"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// LinkageMatch is one persisted matched pair of a run.
type LinkageMatch struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	RunID      string    `json:"run_id" db:"run_id"`
	SourceID   string    `json:"source_record_id" db:"source_record_id"`
	TargetID   string    `json:"target_record_id" db:"target_record_id"`
	MatchScore float64   `json:"match_score" db:"match_score"`
	NameScore  float64   `json:"name_score" db:"name_score"`
	EmailScore float64   `json:"email_score" db:"email_score"`
	DOBScore   float64   `json:"dob_score" db:"dob_score"`
	PhoneScore float64   `json:"phone_score" db:"phone_score"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
