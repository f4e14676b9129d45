package models

// RunOptions are the per-request overrides a caller may attach to a linkage
// request. Nil fields fall back to the service defaults. Overridden values go
// through the same validation as the defaults when the engine is built.
type RunOptions struct {
	CompositeThreshold *float64         `json:"composite_threshold,omitempty"`
	Weights            *FieldWeights    `json:"weights,omitempty"`
	Thresholds         *FieldThresholds `json:"thresholds,omitempty"`
	DOBWindowDays      *int             `json:"dob_window_days,omitempty"`
	BatchSize          *int             `json:"batch_size,omitempty"`
	MinPhoneDigits     *int             `json:"min_phone_digits,omitempty"`
	MaxFallbackScan    *int             `json:"max_fallback_scan,omitempty"`
}

// LinkageRequest asks fern to resolve one source collection against one
// target collection. It arrives either on the linkage-requests topic or as
// the body of POST /runs.
type LinkageRequest struct {
	TenantID      string      `json:"tenant_id"`
	RequestID     string      `json:"request_id,omitempty"`
	SourceRecords []Record    `json:"source_records"`
	TargetRecords []Record    `json:"target_records"`
	Options       *RunOptions `json:"options,omitempty"`
}
