// Package blocking builds the candidate index that keeps linkage runs from
// comparing every source record against every target record.
package blocking

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Index is an inverted index over the normalized target collection. It is
// built once per run and read-only afterwards, so lookups need no locking.
type Index struct {
	targets         []models.NormalizedRecord
	postings        map[string][]int
	maxFallbackScan int
}

// Build indexes the targets under their blocking keys. maxFallbackScan caps
// both the exhaustive fallback and the candidate set for any single source.
func Build(targets []models.NormalizedRecord, maxFallbackScan int) *Index {
	idx := &Index{
		targets:         targets,
		postings:        make(map[string][]int),
		maxFallbackScan: maxFallbackScan,
	}

	for i, tgt := range targets {
		for _, key := range Keys(tgt) {
			idx.postings[key] = append(idx.postings[key], i)
		}
	}

	return idx
}

// Keys derives the blocking keys for a normalized record: one composite key
// from the name prefix and birth year, plus one key per phone number. A
// record with no name, no birth date and no phones produces no keys.
func Keys(rec models.NormalizedRecord) []string {
	var keys []string

	prefix := namePrefix(rec.Name)
	year := ""
	if rec.HasBirthDate() {
		year = strconv.Itoa(rec.BirthDate.Year())
	}
	if prefix != "" || year != "" {
		keys = append(keys, "n|"+prefix+"|"+year)
	}

	for _, phone := range rec.Phones {
		keys = append(keys, "p|"+phone)
	}

	return keys
}

func namePrefix(name string) string {
	runes := []rune(name)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return string(runes)
}

// Candidates returns the targets sharing at least one blocking key with the
// source, ordered by target id. A source with no keys falls back to scanning
// the whole target pool. Both paths are capped at the configured scan limit;
// truncation is reported as a warning, never silently.
func (idx *Index) Candidates(src models.NormalizedRecord) ([]models.NormalizedRecord, []models.RunWarning) {
	keys := Keys(src)
	if len(keys) == 0 {
		return idx.fallback(src)
	}

	seen := make(map[int]struct{})
	for _, key := range keys {
		for _, i := range idx.postings[key] {
			seen[i] = struct{}{}
		}
	}

	positions := make([]int, 0, len(seen))
	for i := range seen {
		positions = append(positions, i)
	}
	sort.Slice(positions, func(a, b int) bool {
		return idx.targets[positions[a]].RecordID < idx.targets[positions[b]].RecordID
	})

	var warnings []models.RunWarning
	if idx.maxFallbackScan > 0 && len(positions) > idx.maxFallbackScan {
		warnings = append(warnings, models.RunWarning{
			Code:     models.WarningBlockOverflow,
			RecordID: src.RecordID,
			Message:  fmt.Sprintf("candidate block of %d targets truncated to %d", len(positions), idx.maxFallbackScan),
		})
		positions = positions[:idx.maxFallbackScan]
	}

	candidates := make([]models.NormalizedRecord, 0, len(positions))
	for _, i := range positions {
		candidates = append(candidates, idx.targets[i])
	}

	return candidates, warnings
}

// fallback scans the full target pool for a source that produced no blocking
// keys, capped at the scan limit in target id order.
func (idx *Index) fallback(src models.NormalizedRecord) ([]models.NormalizedRecord, []models.RunWarning) {
	candidates := make([]models.NormalizedRecord, len(idx.targets))
	copy(candidates, idx.targets)
	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].RecordID < candidates[b].RecordID
	})

	var warnings []models.RunWarning
	if idx.maxFallbackScan > 0 && len(candidates) > idx.maxFallbackScan {
		warnings = append(warnings, models.RunWarning{
			Code:     models.WarningFallbackTruncated,
			RecordID: src.RecordID,
			Message:  fmt.Sprintf("fallback scan of %d targets truncated to %d", len(candidates), idx.maxFallbackScan),
		})
		candidates = candidates[:idx.maxFallbackScan]
	}

	return candidates, warnings
}

// Size returns the number of indexed targets.
func (idx *Index) Size() int {
	return len(idx.targets)
}
