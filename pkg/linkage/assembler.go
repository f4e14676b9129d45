package linkage

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Finalize assembles the run's report and seals the run; any later Submit
// fails with ErrRunFinalized. The matched, unmatched-source and
// unmatched-target collections are disjoint by construction: a record id
// appears in exactly one of them. Finalize is idempotent.
func (r *Run) Finalize() *models.Report {
	if r.finalized && r.report != nil {
		return r.report
	}
	r.finalized = true

	report := &models.Report{
		Matches:         r.matches,
		UnmatchedSource: r.unmatchedSource,
		UnmatchedTarget: r.unmatchedTargets(),
		Warnings:        r.warnings,
		SourceCount:     r.sourceCount,
		TargetCount:     len(r.targetIDs),
	}
	if report.Matches == nil {
		report.Matches = []models.MatchedPair{}
	}
	if report.UnmatchedSource == nil {
		report.UnmatchedSource = []models.UnmatchedRecord{}
	}

	r.report = report
	return report
}

// unmatchedTargets returns every target id never claimed by a source, in id
// order.
func (r *Run) unmatchedTargets() []models.UnmatchedRecord {
	unmatched := make([]models.UnmatchedRecord, 0, len(r.targetIDs)-r.claims.Len())
	for _, id := range r.targetIDs {
		if r.claims.Contains(id) {
			continue
		}
		unmatched = append(unmatched, models.UnmatchedRecord{
			RecordID: id,
			Side:     models.SideTarget,
		})
	}

	sort.Slice(unmatched, func(i, j int) bool {
		return unmatched[i].RecordID < unmatched[j].RecordID
	})

	return unmatched
}
