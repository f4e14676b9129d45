// Package normalizers provides field normalization functions for record comparison
package normalizers

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("nphone", NormalizePhone)
	Register("nemail", NormalizeEmail)
	Register("remove_whitespace", RemoveWhitespace)
	Register("nname", NormalizeName)
	Register("digits_only", DigitsOnly)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizePhone removes all non-digit characters from a phone number
func NormalizePhone(s string) string {
	return DigitsOnly(s)
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizeName normalizes a person's name for matching
// - Lowercase
// - Collapse runs of whitespace to a single space
// - Trim
func NormalizeName(s string) string {
	s = strings.ToLower(s)

	var result strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
			continue
		}
		result.WriteRune(r)
		prevSpace = false
	}

	return strings.TrimSpace(result.String())
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// dateLayouts are the formats ParseDate accepts, tried in order. Day-first
// layouts come before month-first because the upstream institutions emit
// day-first.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC3339,
}

// ParseDate parses a date of birth with a tolerant set of layouts. It returns
// false when the value is empty or matches no layout; a bad date is an absent
// date, not an error.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeRecord canonicalizes a record's comparable fields. Phone numbers
// shorter than minPhoneDigits after digit extraction are discarded so
// near-empty values cannot drive a match. Phones are deduplicated and sorted.
// Deterministic and idempotent.
func NormalizeRecord(rec models.Record, minPhoneDigits int) models.NormalizedRecord {
	norm := models.NormalizedRecord{RecordID: rec.RecordID}

	if rec.Name != nil {
		norm.Name = NormalizeName(*rec.Name)
	}
	if rec.Email != nil {
		norm.Email = NormalizeEmail(*rec.Email)
	}
	if rec.DateOfBirth != nil {
		if t, ok := ParseDate(*rec.DateOfBirth); ok {
			norm.BirthDate = t
		}
	}

	seen := make(map[string]struct{}, len(rec.PhoneNumbers))
	for _, raw := range rec.PhoneNumbers {
		digits := NormalizePhone(raw)
		if len(digits) < minPhoneDigits {
			continue
		}
		if _, ok := seen[digits]; ok {
			continue
		}
		seen[digits] = struct{}{}
		norm.Phones = append(norm.Phones, digits)
	}
	sort.Strings(norm.Phones)

	return norm
}
