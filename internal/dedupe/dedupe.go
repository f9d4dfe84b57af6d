// Package dedupe removes duplicate review records within one restaurant's
// record set. Matching is exact on the normalized text, deliberately not
// similarity-based: reviews differing by a single character are distinct.
package dedupe

import (
	"sort"

	"github.com/tablescout/review-pipeline/internal/model"
)

// Dedupe keeps the earliest occurrence of each normalized text and marks
// later identical occurrences removed. Records are processed in ascending
// ExtractedAt order; the input is sorted defensively (stable, so equal
// timestamps keep their input order). Re-running on the survivor set is a
// no-op.
func Dedupe(records []model.ReviewRecord) (survivors, removed []model.ReviewRecord) {
	if len(records) == 0 {
		return nil, nil
	}

	ordered := make([]model.ReviewRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExtractedAt.Before(ordered[j].ExtractedAt)
	})

	seen := make(map[string]struct{}, len(ordered))
	for _, rec := range ordered {
		if _, dup := seen[rec.RawText]; dup {
			removed = append(removed, rec)
			continue
		}
		seen[rec.RawText] = struct{}{}
		survivors = append(survivors, rec)
	}
	return survivors, removed
}
