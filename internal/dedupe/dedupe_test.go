package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/review-pipeline/internal/model"
)

func rec(text string, at time.Time) model.ReviewRecord {
	return model.ReviewRecord{
		RestaurantID: "rst-1",
		RawText:      text,
		ExtractedAt:  at,
	}
}

func TestDedupe_KeepsEarliest(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	early := rec("デートに最適なお店でした", t0)
	late := rec("デートに最適なお店でした", t0.Add(time.Hour))
	late.SourceURL = "https://example.com/page2"

	survivors, removed := Dedupe([]model.ReviewRecord{late, early})
	require.Len(t, survivors, 1)
	require.Len(t, removed, 1)
	assert.Equal(t, t0, survivors[0].ExtractedAt, "earliest extraction survives")
	assert.Equal(t, "https://example.com/page2", removed[0].SourceURL)
}

func TestDedupe_DistinctTextsAllSurvive(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	records := []model.ReviewRecord{
		rec("雰囲気が良いお店", t0),
		rec("雰囲気が良いお店。", t0.Add(time.Minute)), // one char off: distinct
		rec("コスパ最高", t0.Add(2*time.Minute)),
	}
	survivors, removed := Dedupe(records)
	assert.Len(t, survivors, 3)
	assert.Empty(t, removed)
}

func TestDedupe_Idempotent(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	records := []model.ReviewRecord{
		rec("a review about the atmosphere", t0),
		rec("a review about the atmosphere", t0.Add(time.Hour)),
		rec("another review entirely here", t0.Add(2*time.Hour)),
	}
	survivors, removed := Dedupe(records)
	require.Len(t, survivors, 2)
	require.Len(t, removed, 1)

	again, removedAgain := Dedupe(survivors)
	assert.Equal(t, survivors, again)
	assert.Empty(t, removedAgain)
}

func TestDedupe_Empty(t *testing.T) {
	survivors, removed := Dedupe(nil)
	assert.Nil(t, survivors)
	assert.Nil(t, removed)
}
