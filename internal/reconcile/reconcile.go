// Package reconcile implements the export/edit/re-apply loop for externally
// sourced reviews. Reviews are exported to a transfer artifact, rewritten out
// of band, then applied back by id with compare-and-update semantics.
package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablescout/review-pipeline/internal/model"
	"github.com/tablescout/review-pipeline/internal/store"
)

// Export lists externally sourced reviews newest-first and shapes them into
// rewrite records. RewrittenText starts empty; the editor fills it in.
func Export(ctx context.Context, st store.Store, limit int) ([]model.RewriteRecord, error) {
	reviews, err := st.ListExternalReviews(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: export")
	}
	out := make([]model.RewriteRecord, 0, len(reviews))
	for i, r := range reviews {
		out = append(out, model.RewriteRecord{
			Index:          i + 1,
			ReviewID:       r.ID,
			RestaurantName: r.RestaurantName,
			OriginalText:   r.ReviewText,
		})
	}
	return out, nil
}

// ApplySummary tallies one apply pass over a transfer artifact.
type ApplySummary struct {
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Empty     int `json:"empty"`
	Stale     int `json:"stale"`
	Conflict  int `json:"conflict"`
	NotFound  int `json:"not_found"`
}

// Apply writes rewritten texts back to the store. Only the id field of each
// record is trusted; index, restaurant name and original text are display
// metadata that may have been edited. Records with an empty rewrite are
// skipped, records whose review already carries the rewritten text count as
// unchanged, and a stored text that matches neither the original nor the
// rewrite is stale and left alone. A rewrite that collides with another
// review's natural key is counted as a conflict and skipped; no per-record
// issue ever aborts the batch. Applying the same artifact twice yields the
// same store state.
func Apply(ctx context.Context, st store.Store, records []model.RewriteRecord) (ApplySummary, error) {
	var sum ApplySummary
	log := zap.L()

	for _, rec := range records {
		if rec.RewrittenText == "" {
			sum.Empty++
			continue
		}

		current, err := st.GetReview(ctx, rec.ReviewID)
		if eris.Is(err, store.ErrNotFound) {
			sum.NotFound++
			log.Warn("rewrite target missing", zap.String("review_id", rec.ReviewID))
			continue
		}
		if err != nil {
			return sum, eris.Wrapf(err, "reconcile: load review %s", rec.ReviewID)
		}

		if current.ReviewText == rec.RewrittenText {
			sum.Unchanged++
			continue
		}

		applied, err := st.UpdateReviewText(ctx, rec.ReviewID, current.ReviewText, rec.RewrittenText)
		if eris.Is(err, store.ErrConflict) {
			sum.Conflict++
			log.Warn("rewrite collides with an existing review",
				zap.String("review_id", rec.ReviewID),
				zap.String("restaurant_id", current.RestaurantID),
			)
			continue
		}
		if err != nil {
			return sum, eris.Wrapf(err, "reconcile: apply rewrite %s", rec.ReviewID)
		}
		if !applied {
			sum.Stale++
			log.Warn("rewrite not applied",
				zap.String("review_id", rec.ReviewID),
				zap.Bool("external", current.ExternallySourced()),
			)
			continue
		}
		sum.Updated++
	}

	log.Info("applied rewrite artifact",
		zap.Int("records", len(records)),
		zap.Int("updated", sum.Updated),
		zap.Int("unchanged", sum.Unchanged),
		zap.Int("empty", sum.Empty),
		zap.Int("stale", sum.Stale),
		zap.Int("conflict", sum.Conflict),
		zap.Int("not_found", sum.NotFound),
	)
	return sum, nil
}
