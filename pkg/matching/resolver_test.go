package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestClaimSet(t *testing.T) {
	claims := NewClaimSet()

	assert.True(t, claims.Claim("t1", "s1"))
	assert.False(t, claims.Claim("t1", "s2"), "second claim on same target must fail")
	assert.True(t, claims.Contains("t1"))
	assert.False(t, claims.Contains("t2"))
	assert.Equal(t, 1, claims.Len())
}

func TestScoreCandidatesOrdering(t *testing.T) {
	r := NewResolver(newTestScorer(), 85)

	src := models.NormalizedRecord{RecordID: "s1", Name: "john smith"}
	candidates := []models.NormalizedRecord{
		{RecordID: "t-far", Name: "completely different"},
		{RecordID: "t-exact-b", Name: "john smith"},
		{RecordID: "t-exact-a", Name: "john smith"},
		{RecordID: "t-close", Name: "jon smith"},
	}

	pairs := r.ScoreCandidates(src, candidates)
	require.Len(t, pairs, 4)

	// best first, equal scores ordered by target id
	assert.Equal(t, "t-exact-a", pairs[0].TargetID)
	assert.Equal(t, "t-exact-b", pairs[1].TargetID)
	assert.Equal(t, "t-close", pairs[2].TargetID)
	assert.Equal(t, "t-far", pairs[3].TargetID)

	for _, p := range pairs {
		assert.GreaterOrEqual(t, p.Composite, 0.0)
		assert.LessOrEqual(t, p.Composite, 100.0)
	}
}

func TestResolve(t *testing.T) {
	// name-only records composite to 0.4*100 at best; the threshold sits
	// exactly on that boundary, and a score equal to it is accepted
	r := NewResolver(newTestScorer(), 40)
	src := models.NormalizedRecord{RecordID: "s1", Name: "john smith"}
	targets := []models.NormalizedRecord{
		{RecordID: "t1", Name: "john smith"},
		{RecordID: "t2", Name: "john smith"},
	}

	t.Run("claims best unclaimed target", func(t *testing.T) {
		claims := NewClaimSet()

		match := r.Resolve(r.ScoreCandidates(src, targets), claims)
		require.NotNil(t, match)
		assert.Equal(t, "t1", match.TargetID)
		assert.True(t, claims.Contains("t1"))
	})

	t.Run("falls through to next target when best is claimed", func(t *testing.T) {
		claims := NewClaimSet()
		claims.Claim("t1", "other")

		match := r.Resolve(r.ScoreCandidates(src, targets), claims)
		require.NotNil(t, match)
		assert.Equal(t, "t2", match.TargetID)
	})

	t.Run("unmatched when all acceptable targets claimed", func(t *testing.T) {
		claims := NewClaimSet()
		claims.Claim("t1", "a")
		claims.Claim("t2", "b")

		match := r.Resolve(r.ScoreCandidates(src, targets), claims)
		assert.Nil(t, match)
	})

	t.Run("unmatched below threshold", func(t *testing.T) {
		claims := NewClaimSet()
		weak := []models.NormalizedRecord{{RecordID: "t1", Name: "someone else entirely"}}

		match := r.Resolve(r.ScoreCandidates(src, weak), claims)
		assert.Nil(t, match)
		assert.False(t, claims.Contains("t1"))
	})

	t.Run("no candidates", func(t *testing.T) {
		match := r.Resolve(nil, NewClaimSet())
		assert.Nil(t, match)
	})
}

func TestResolveEarlierSourceKeepsTarget(t *testing.T) {
	// "jhn smith" scores 90 on name, so 0.4*90 = 36 must clear the threshold
	r := NewResolver(newTestScorer(), 35)
	claims := NewClaimSet()

	target := models.NormalizedRecord{RecordID: "t1", Name: "john smith"}

	first := models.NormalizedRecord{RecordID: "s1", Name: "jhn smith"}
	second := models.NormalizedRecord{RecordID: "s2", Name: "john smith"}

	m1 := r.Resolve(r.ScoreCandidates(first, []models.NormalizedRecord{target}), claims)
	require.NotNil(t, m1)
	assert.Equal(t, "s1", m1.SourceID)

	// the later, better-scoring source cannot steal the claim
	m2 := r.Resolve(r.ScoreCandidates(second, []models.NormalizedRecord{target}), claims)
	assert.Nil(t, m2)
}
