package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func defaultWeights() models.FieldWeights {
	return models.FieldWeights{Name: 0.4, Email: 0.2, DOB: 0.2, Phone: 0.2}
}

func newTestScorer() *Scorer {
	return NewScorer(defaultWeights(), models.FieldThresholds{}, 30)
}

func TestRatio(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{
			name:     "identical",
			a:        "john smith",
			b:        "john smith",
			expected: 100,
		},
		{
			name:     "completely different",
			a:        "aaaa",
			b:        "zzzz",
			expected: 0,
		},
		{
			name:     "one edit in four",
			a:        "abcd",
			b:        "abce",
			expected: 75,
		},
		{
			name:     "either empty",
			a:        "",
			b:        "john",
			expected: 0,
		},
		{
			name:     "both empty",
			a:        "",
			b:        "",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Ratio(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 0.001)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func TestTokenSortRatio(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{
			name:     "reordered tokens score exact",
			a:        "smith john",
			b:        "john smith",
			expected: 100,
		},
		{
			name:     "identical",
			a:        "john smith",
			b:        "john smith",
			expected: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, s.TokenSortRatio(tt.a, tt.b), 0.001)
		})
	}
}

func TestDateProximity(t *testing.T) {
	s := newTestScorer()
	base := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)

	rec := func(t time.Time) models.NormalizedRecord {
		return models.NormalizedRecord{BirthDate: t}
	}

	tests := []struct {
		name     string
		a        models.NormalizedRecord
		b        models.NormalizedRecord
		expected float64
	}{
		{
			name:     "same day",
			a:        rec(base),
			b:        rec(base),
			expected: 100,
		},
		{
			name:     "fifteen days of thirty",
			a:        rec(base),
			b:        rec(base.AddDate(0, 0, 15)),
			expected: 50,
		},
		{
			name:     "symmetric",
			a:        rec(base.AddDate(0, 0, 15)),
			b:        rec(base),
			expected: 50,
		},
		{
			name:     "at window",
			a:        rec(base),
			b:        rec(base.AddDate(0, 0, 30)),
			expected: 0,
		},
		{
			name:     "beyond window",
			a:        rec(base),
			b:        rec(base.AddDate(0, 0, 400)),
			expected: 0,
		},
		{
			name:     "missing side scores zero",
			a:        models.NormalizedRecord{},
			b:        rec(base),
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, s.DateProximity(tt.a, tt.b), 0.001)
		})
	}
}

func TestPhoneOverlap(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name     string
		a        []string
		b        []string
		expected float64
	}{
		{
			name:     "identical sets",
			a:        []string{"5551234567"},
			b:        []string{"5551234567"},
			expected: 100,
		},
		{
			name:     "half overlap",
			a:        []string{"5551234567", "5559876543"},
			b:        []string{"5551234567", "5550000000"},
			expected: 100.0 / 3.0,
		},
		{
			name:     "disjoint",
			a:        []string{"5551234567"},
			b:        []string{"5559876543"},
			expected: 0,
		},
		{
			name:     "both empty is no evidence",
			a:        nil,
			b:        nil,
			expected: 0,
		},
		{
			name:     "one empty",
			a:        []string{"5551234567"},
			b:        nil,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, s.PhoneOverlap(tt.a, tt.b), 0.001)
		})
	}
}

func TestScore(t *testing.T) {
	s := newTestScorer()
	dob := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)

	src := models.NormalizedRecord{
		RecordID:  "s1",
		Name:      "john smith",
		Email:     "john@example.com",
		BirthDate: dob,
		Phones:    []string{"5551234567"},
	}

	t.Run("identical records composite 100", func(t *testing.T) {
		tgt := src
		tgt.RecordID = "t1"

		pair := s.Score(src, tgt)
		assert.Equal(t, "s1", pair.SourceID)
		assert.Equal(t, "t1", pair.TargetID)
		assert.InDelta(t, 100, pair.Composite, 0.001)
		assert.InDelta(t, 100, pair.Fields.Name, 0.001)
	})

	t.Run("reordered name tokens still composite 100", func(t *testing.T) {
		tgt := src
		tgt.RecordID = "t1"
		tgt.Name = "smith john"

		pair := s.Score(src, tgt)
		assert.InDelta(t, 100, pair.Composite, 0.001)
	})

	t.Run("absent name forces composite zero", func(t *testing.T) {
		tgt := src
		tgt.RecordID = "t1"
		tgt.Name = ""

		pair := s.Score(src, tgt)
		assert.Zero(t, pair.Composite)
		// field evidence survives for reporting
		assert.InDelta(t, 100, pair.Fields.Phone, 0.001)
	})

	t.Run("composite stays within bounds", func(t *testing.T) {
		tgt := models.NormalizedRecord{RecordID: "t1", Name: "jon smyth"}

		pair := s.Score(src, tgt)
		assert.GreaterOrEqual(t, pair.Composite, 0.0)
		assert.LessOrEqual(t, pair.Composite, 100.0)
	})
}

func TestScoreTokenSortIsForNameOnly(t *testing.T) {
	s := newTestScorer()

	src := models.NormalizedRecord{RecordID: "s1", Name: "john smith", Email: "smith john"}
	tgt := models.NormalizedRecord{RecordID: "t1", Name: "smith john", Email: "john smith"}

	pair := s.Score(src, tgt)

	assert.InDelta(t, 100, pair.Fields.Name, 0.001)
	assert.Less(t, pair.Fields.Email, 100.0, "email comparison is whole string")
}

func TestScoreFieldGating(t *testing.T) {
	weights := defaultWeights()
	gated := NewScorer(weights, models.FieldThresholds{Email: 90}, 30)

	src := models.NormalizedRecord{RecordID: "s1", Name: "john smith", Email: "john@example.com"}
	tgt := models.NormalizedRecord{RecordID: "t1", Name: "john smith", Email: "johm@example.net"}

	pair := gated.Score(src, tgt)

	// email similarity is below the gate so only name contributes
	assert.InDelta(t, weights.Name*100, pair.Composite, 0.001)
	assert.Greater(t, pair.Fields.Email, 0.0)
}
