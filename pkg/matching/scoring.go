package matching

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Scorer compares normalized records field by field. All similarity scores are
// on the 0..100 scale; 100 is an exact match. Absent values score 0, never an
// error.
type Scorer struct {
	weights       models.FieldWeights
	thresholds    models.FieldThresholds
	dobWindowDays int
}

// NewScorer creates a new Scorer. Weights are assumed validated by the caller.
func NewScorer(weights models.FieldWeights, thresholds models.FieldThresholds, dobWindowDays int) *Scorer {
	return &Scorer{
		weights:       weights,
		thresholds:    thresholds,
		dobWindowDays: dobWindowDays,
	}
}

// Ratio calculates an edit-distance similarity between two strings.
// Returns 100 for identical strings, 0 when either is empty.
func (s *Scorer) Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	distance := levenshtein.ComputeDistance(a, b)
	maxLen := len([]rune(a))
	if lb := len([]rune(b)); lb > maxLen {
		maxLen = lb
	}

	return 100 * (1 - float64(distance)/float64(maxLen))
}

// TokenSortRatio calculates the edit-distance similarity of two strings after
// sorting their whitespace-separated tokens, so "smith john" and "john smith"
// score 100.
func (s *Scorer) TokenSortRatio(a, b string) float64 {
	return s.Ratio(tokenSort(a), tokenSort(b))
}

func tokenSort(str string) string {
	tokens := strings.Fields(str)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// DateProximity calculates a proximity score for two birth dates. Returns 100
// for the same day, decaying linearly to 0 at windowDays apart. A missing
// date on either side scores 0.
func (s *Scorer) DateProximity(a, b models.NormalizedRecord) float64 {
	if !a.HasBirthDate() || !b.HasBirthDate() || s.dobWindowDays <= 0 {
		return 0
	}

	days := a.BirthDate.Sub(b.BirthDate).Hours() / 24
	if days < 0 {
		days = -days
	}
	if days >= float64(s.dobWindowDays) {
		return 0
	}

	return 100 * (1 - days/float64(s.dobWindowDays))
}

// PhoneOverlap calculates the Jaccard overlap of two phone sets, scaled to
// 0..100. Two empty sets score 0; shared absence is no evidence of identity.
func (s *Scorer) PhoneOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, p := range a {
		set[p] = struct{}{}
	}

	intersection := 0
	for _, p := range b {
		if _, ok := set[p]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return 100 * float64(intersection) / float64(union)
}

// Score compares a source record against one target candidate and returns the
// scored pair. Name similarity uses the token-sort ratio so token order never
// penalizes a match. A record without a usable name on either side keeps its
// field scores but composites to 0; name is the mandatory field.
func (s *Scorer) Score(src, tgt models.NormalizedRecord) models.CandidatePair {
	fields := models.FieldScores{
		Name:  s.TokenSortRatio(src.Name, tgt.Name),
		Email: s.Ratio(src.Email, tgt.Email),
		DOB:   s.DateProximity(src, tgt),
		Phone: s.PhoneOverlap(src.Phones, tgt.Phones),
	}

	pair := models.CandidatePair{
		SourceID: src.RecordID,
		TargetID: tgt.RecordID,
		Fields:   fields,
	}

	if !src.HasName() || !tgt.HasName() {
		return pair
	}

	pair.Composite = s.weights.Name*gate(fields.Name, s.thresholds.Name) +
		s.weights.Email*gate(fields.Email, s.thresholds.Email) +
		s.weights.DOB*fields.DOB +
		s.weights.Phone*gate(fields.Phone, s.thresholds.Phone)

	return pair
}

// gate zeroes a sub-score below its per-field threshold. A zero threshold
// disables gating.
func gate(score, threshold float64) float64 {
	if threshold > 0 && score < threshold {
		return 0
	}
	return score
}
