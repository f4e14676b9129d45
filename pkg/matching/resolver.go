package matching

import (
	"sort"
	"sync"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ClaimSet tracks which target records have been claimed by a source record.
// Safe for concurrent use; a target can be claimed exactly once.
type ClaimSet struct {
	mu      sync.Mutex
	claimed map[string]string // target id -> source id
}

// NewClaimSet creates an empty ClaimSet.
func NewClaimSet() *ClaimSet {
	return &ClaimSet{claimed: make(map[string]string)}
}

// Claim attempts to claim a target for a source. Returns false when the
// target is already held by another source.
func (c *ClaimSet) Claim(targetID, sourceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.claimed[targetID]; ok {
		return false
	}
	c.claimed[targetID] = sourceID
	return true
}

// Contains reports whether a target has been claimed.
func (c *ClaimSet) Contains(targetID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.claimed[targetID]
	return ok
}

// Len returns the number of claimed targets.
func (c *ClaimSet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.claimed)
}

// Resolver assigns each source record to at most one target record. Targets
// are claimed greedily in descending score order, so an earlier source keeps
// a target even if a later source would have scored it higher.
type Resolver struct {
	scorer    *Scorer
	threshold float64
}

// NewResolver creates a Resolver accepting pairs at or above threshold.
func NewResolver(scorer *Scorer, threshold float64) *Resolver {
	return &Resolver{scorer: scorer, threshold: threshold}
}

// ScoreCandidates scores a source against every candidate target and returns
// the pairs ordered best first. Ties on composite break on ascending target
// id so the ordering is deterministic regardless of candidate order.
func (r *Resolver) ScoreCandidates(src models.NormalizedRecord, candidates []models.NormalizedRecord) []models.CandidatePair {
	pairs := make([]models.CandidatePair, 0, len(candidates))
	for _, tgt := range candidates {
		pairs = append(pairs, r.scorer.Score(src, tgt))
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Composite != pairs[j].Composite {
			return pairs[i].Composite > pairs[j].Composite
		}
		return pairs[i].TargetID < pairs[j].TargetID
	})

	return pairs
}

// Resolve picks the best unclaimed pair at or above the threshold and claims
// its target. Returns nil when every acceptable target is already taken or no
// pair clears the threshold; the source is then unmatched.
func (r *Resolver) Resolve(pairs []models.CandidatePair, claims *ClaimSet) *models.MatchedPair {
	for _, pair := range pairs {
		if pair.Composite < r.threshold {
			// pairs are sorted best first so nothing further qualifies
			return nil
		}
		if !claims.Claim(pair.TargetID, pair.SourceID) {
			continue
		}
		return &models.MatchedPair{
			SourceID: pair.SourceID,
			TargetID: pair.TargetID,
			Score:    pair.Composite,
			Fields:   pair.Fields,
		}
	}
	return nil
}
