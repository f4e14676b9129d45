package blocking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func rec(id, name string, year int, phones ...string) models.NormalizedRecord {
	r := models.NormalizedRecord{RecordID: id, Name: name, Phones: phones}
	if year > 0 {
		r.BirthDate = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return r
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name     string
		record   models.NormalizedRecord
		expected []string
	}{
		{
			name:     "name and birth year",
			record:   rec("r1", "john smith", 1990),
			expected: []string{"n|joh|1990"},
		},
		{
			name:     "name only",
			record:   rec("r1", "john smith", 0),
			expected: []string{"n|joh|"},
		},
		{
			name:     "birth year only",
			record:   rec("r1", "", 1990),
			expected: []string{"n||1990"},
		},
		{
			name:     "short name keeps whole prefix",
			record:   rec("r1", "al", 1990),
			expected: []string{"n|al|1990"},
		},
		{
			name:     "phones add one key each",
			record:   rec("r1", "john smith", 1990, "5551234567", "5559876543"),
			expected: []string{"n|joh|1990", "p|5551234567", "p|5559876543"},
		},
		{
			name:     "nothing usable produces no keys",
			record:   rec("r1", "", 0),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Keys(tt.record))
		})
	}
}

func TestCandidatesSharedPhone(t *testing.T) {
	// targets with unrelated names are still candidates when a phone matches
	targets := []models.NormalizedRecord{
		rec("t1", "alice jones", 1970, "5551234567"),
		rec("t2", "bob brown", 1980),
		rec("t3", "carol white", 1990, "5551234567"),
	}
	idx := Build(targets, 100)

	src := rec("s1", "zelda king", 2000, "5551234567")
	candidates, warnings := idx.Candidates(src)

	require.Empty(t, warnings)
	require.Len(t, candidates, 2)
	assert.Equal(t, "t1", candidates[0].RecordID)
	assert.Equal(t, "t3", candidates[1].RecordID)
}

func TestCandidatesNameYearBlock(t *testing.T) {
	targets := []models.NormalizedRecord{
		rec("t1", "john smith", 1990),
		rec("t2", "johnny cash", 1990),
		rec("t3", "john smith", 1991),
		rec("t4", "mary major", 1990),
	}
	idx := Build(targets, 100)

	candidates, warnings := idx.Candidates(rec("s1", "john doe", 1990))

	require.Empty(t, warnings)
	require.Len(t, candidates, 2)
	assert.Equal(t, "t1", candidates[0].RecordID)
	assert.Equal(t, "t2", candidates[1].RecordID)
}

func TestCandidatesFallback(t *testing.T) {
	targets := []models.NormalizedRecord{
		rec("t2", "bob brown", 1980),
		rec("t1", "alice jones", 1970),
	}
	idx := Build(targets, 100)

	// no name, no dob, no phones: scan everything
	candidates, warnings := idx.Candidates(rec("s1", "", 0))

	require.Empty(t, warnings)
	require.Len(t, candidates, 2)
	assert.Equal(t, "t1", candidates[0].RecordID)
	assert.Equal(t, "t2", candidates[1].RecordID)
}

func TestCandidatesFallbackTruncated(t *testing.T) {
	targets := make([]models.NormalizedRecord, 10)
	for i := range targets {
		targets[i] = rec(fmt.Sprintf("t%02d", i), fmt.Sprintf("person %d", i), 1990)
	}
	idx := Build(targets, 4)

	candidates, warnings := idx.Candidates(rec("s1", "", 0))

	assert.Len(t, candidates, 4)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarningFallbackTruncated, warnings[0].Code)
	assert.Equal(t, "s1", warnings[0].RecordID)
}

func TestCandidatesBlockOverflow(t *testing.T) {
	targets := make([]models.NormalizedRecord, 10)
	for i := range targets {
		// all land in the same name+year block
		targets[i] = rec(fmt.Sprintf("t%02d", i), "john smith", 1990)
	}
	idx := Build(targets, 4)

	candidates, warnings := idx.Candidates(rec("s1", "john smith", 1990))

	assert.Len(t, candidates, 4)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarningBlockOverflow, warnings[0].Code)

	// deterministic truncation keeps the lowest target ids
	assert.Equal(t, "t00", candidates[0].RecordID)
	assert.Equal(t, "t03", candidates[3].RecordID)
}

func TestCandidatesEmptyIndex(t *testing.T) {
	idx := Build(nil, 100)

	candidates, warnings := idx.Candidates(rec("s1", "john smith", 1990))
	assert.Empty(t, candidates)
	assert.Empty(t, warnings)

	candidates, warnings = idx.Candidates(rec("s2", "", 0))
	assert.Empty(t, candidates)
	assert.Empty(t, warnings)
	assert.Equal(t, 0, idx.Size())
}
