package models

import "time"

// DatasetSide identifies which of the two input collections a record belongs to.
type DatasetSide string

const (
	SideSource DatasetSide = "source"
	SideTarget DatasetSide = "target"
)

// Record is one person row as extracted by the upstream adapter.
// fern never parses files itself; the adapter hands it already-shaped records.
// A Record is immutable once constructed.
type Record struct {
	RecordID     string      `json:"record_id" validate:"required"`
	Side         DatasetSide `json:"side,omitempty"`
	Name         *string     `json:"name,omitempty"`
	Email        *string     `json:"email,omitempty"`
	DateOfBirth  *string     `json:"date_of_birth,omitempty"`
	PhoneNumbers []string    `json:"phone_numbers,omitempty"`
}

// NormalizedRecord is the canonical comparable form of a Record. It is computed
// once per run and never mutated afterwards.
//
// Absence is modeled with zero values: an empty Name/Email means the raw field
// was missing or blank, a zero BirthDate means the raw date was missing or did
// not parse. Phones holds digit-only numbers that met the minimum length,
// deduplicated and sorted.
type NormalizedRecord struct {
	RecordID  string
	Name      string
	Email     string
	BirthDate time.Time
	Phones    []string
}

// HasName reports whether the record carries a usable name.
func (r NormalizedRecord) HasName() bool {
	return r.Name != ""
}

// HasBirthDate reports whether the record carries a parsed date of birth.
func (r NormalizedRecord) HasBirthDate() bool {
	return !r.BirthDate.IsZero()
}
