package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/review-pipeline/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetReview_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, restaurant_id, review_text, rating, date_appropriate, author_ref, created_at, updated_at`).
		WithArgs("nonexistent-review").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetReview(context.Background(), "nonexistent-review")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertReviewIfAbsent_New(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO reviews .+ ON CONFLICT \(restaurant_id, review_text\) DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), "rst-1", "素敵な雰囲気でデートに最適", pgxmock.AnyArg(), true, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := s.InsertReviewIfAbsent(context.Background(), model.ReviewRecord{
		RestaurantID: "rst-1",
		RawText:      "素敵な雰囲気でデートに最適",
		DateTagged:   true,
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertReviewIfAbsent_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO reviews .+ ON CONFLICT \(restaurant_id, review_text\) DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), "rst-1", "素敵な雰囲気でデートに最適", pgxmock.AnyArg(), true, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.InsertReviewIfAbsent(context.Background(), model.ReviewRecord{
		RestaurantID: "rst-1",
		RawText:      "素敵な雰囲気でデートに最適",
		DateTagged:   true,
	})
	require.NoError(t, err)
	assert.False(t, inserted, "conflict on the natural key is not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateReviewText_Applied(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE reviews SET review_text = \$1, updated_at = \$2`).
		WithArgs("新しいテキスト", pgxmock.AnyArg(), "rev-1", "古いテキスト").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := s.UpdateReviewText(context.Background(), "rev-1", "古いテキスト", "新しいテキスト")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateReviewText_StaleText(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE reviews SET review_text = \$1, updated_at = \$2`).
		WithArgs("新しいテキスト", pgxmock.AnyArg(), "rev-1", "もう一致しない").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	applied, err := s.UpdateReviewText(context.Background(), "rev-1", "もう一致しない", "新しいテキスト")
	require.NoError(t, err)
	assert.False(t, applied, "stale previous text must not update")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateReviewText_ConflictOnNaturalKey(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE reviews SET review_text = \$1, updated_at = \$2`).
		WithArgs("二番目のレビューです", pgxmock.AnyArg(), "rev-1", "最初のレビューです").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "reviews_restaurant_id_review_text_key"})

	applied, err := s.UpdateReviewText(context.Background(), "rev-1", "最初のレビューです", "二番目のレビューです")
	assert.False(t, applied)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListExternalReviews(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "restaurant_id", "review_text", "rating", "date_appropriate",
		"author_ref", "created_at", "updated_at", "name",
	}).AddRow("rev-2", "rst-1", "雰囲気が良くデートにおすすめ", nil, true, nil, now, now, "Bistro Kanda").
		AddRow("rev-1", "rst-1", "コスパ最高のランチでした", nil, false, nil, now.Add(-time.Hour), now.Add(-time.Hour), "Bistro Kanda")

	mock.ExpectQuery(`FROM reviews r JOIN restaurants rst ON rst\.id = r\.restaurant_id`).
		WillReturnRows(rows)

	out, err := s.ListExternalReviews(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "rev-2", out[0].ID)
	assert.Equal(t, "Bistro Kanda", out[0].RestaurantName)
	assert.Nil(t, out[0].AuthorRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListReviews(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	author := "user-42"
	rows := pgxmock.NewRows([]string{
		"id", "restaurant_id", "review_text", "rating", "date_appropriate",
		"author_ref", "created_at", "updated_at",
	}).AddRow("rev-2", "rst-1", "ユーザー投稿のレビュー", nil, false, &author, now, now).
		AddRow("rev-1", "rst-1", "外部サイトのレビューです", nil, true, nil, now.Add(-time.Hour), now.Add(-time.Hour))

	mock.ExpectQuery(`FROM reviews WHERE restaurant_id = \$1 ORDER BY created_at DESC`).
		WithArgs("rst-1").
		WillReturnRows(rows)

	out, err := s.ListReviews(context.Background(), "rst-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.False(t, out[0].ExternallySourced())
	assert.True(t, out[1].ExternallySourced())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountReviews(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE`).
		WithArgs("rst-1").
		WillReturnRows(pgxmock.NewRows([]string{"count", "external"}).AddRow(5, 3))

	counts, err := s.CountReviews(context.Background(), "rst-1")
	require.NoError(t, err)
	assert.Equal(t, ReviewCounts{Total: 5, External: 3}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordTaskResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO scrape_results`).
		WithArgs(pgxmock.AnyArg(), "rst-1", "tabelog", "https://tabelog.example/rst-1",
			"failed", 3, 0, 0, 0, 2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordTaskResult(context.Background(), model.TaskResult{
		Task: model.ScrapeTask{
			RestaurantID: "rst-1",
			SiteKind:     "tabelog",
			TargetURL:    "https://tabelog.example/rst-1",
			Attempt:      3,
			Status:       model.TaskStatusFailed,
		},
		Retries: 2,
		Error:   "navigate: timeout",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
