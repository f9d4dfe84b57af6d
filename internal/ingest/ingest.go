// Package ingest moves extracted review records into the store: classify,
// dedupe, then insert against the natural key.
package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablescout/review-pipeline/internal/classify"
	"github.com/tablescout/review-pipeline/internal/dedupe"
	"github.com/tablescout/review-pipeline/internal/model"
	"github.com/tablescout/review-pipeline/internal/store"
)

// Result tallies one ingestion batch. Deduped counts records dropped before
// the store was consulted; Skipped counts natural-key conflicts in the store.
type Result struct {
	Extracted int `json:"extracted"`
	Deduped   int `json:"deduped"`
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
}

// Ingestor runs extracted records through classification and dedup before
// persisting them.
type Ingestor struct {
	store      store.Store
	classifier *classify.Classifier
}

func New(st store.Store, cl *classify.Classifier) *Ingestor {
	if cl == nil {
		cl = classify.New(nil)
	}
	return &Ingestor{store: st, classifier: cl}
}

// Ingest classifies and dedupes records, then inserts each survivor. Records
// already present under (restaurant_id, review_text) are skipped, so running
// the same batch twice changes nothing. The input slice is not modified. A
// store error aborts the batch and returns the partial result.
func (i *Ingestor) Ingest(ctx context.Context, records []model.ReviewRecord) (Result, error) {
	res := Result{Extracted: len(records)}
	if len(records) == 0 {
		return res, nil
	}

	recs := make([]model.ReviewRecord, len(records))
	copy(recs, records)
	for idx := range recs {
		cl := i.classifier.Classify(recs[idx].RawText)
		recs[idx].DateTagged = cl.Tagged
		recs[idx].DateScore = cl.Score
	}

	survivors, removed := dedupe.Dedupe(recs)
	res.Deduped = len(removed)

	for _, rec := range survivors {
		inserted, err := i.store.InsertReviewIfAbsent(ctx, rec)
		if err != nil {
			return res, eris.Wrapf(err, "ingest: insert review for %s", rec.RestaurantID)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}

	zap.L().Debug("ingested batch",
		zap.Int("extracted", res.Extracted),
		zap.Int("deduped", res.Deduped),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}
