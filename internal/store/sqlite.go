package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tablescout/review-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS restaurants (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	area    TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS reviews (
	id               TEXT PRIMARY KEY,
	restaurant_id    TEXT NOT NULL REFERENCES restaurants(id),
	review_text      TEXT NOT NULL CHECK (review_text <> ''),
	rating           INTEGER,
	date_appropriate INTEGER NOT NULL DEFAULT 0,
	author_ref       TEXT,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	UNIQUE (restaurant_id, review_text)
);

CREATE TABLE IF NOT EXISTS scrape_results (
	id            TEXT PRIMARY KEY,
	restaurant_id TEXT NOT NULL,
	site_kind     TEXT NOT NULL,
	target_url    TEXT NOT NULL,
	status        TEXT NOT NULL,
	attempt       INTEGER NOT NULL DEFAULT 0,
	extracted     INTEGER NOT NULL DEFAULT 0,
	inserted      INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	retries       INTEGER NOT NULL DEFAULT 0,
	error         TEXT,
	recorded_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_restaurants_name ON restaurants(name);
CREATE INDEX IF NOT EXISTS idx_reviews_restaurant ON reviews(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_reviews_external ON reviews(created_at) WHERE author_ref IS NULL;
CREATE INDEX IF NOT EXISTS idx_scrape_results_restaurant ON scrape_results(restaurant_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertRestaurant(ctx context.Context, r model.Restaurant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO restaurants (id, name, area, address) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, area = excluded.area, address = excluded.address`,
		r.ID, r.Name, r.Area, r.Address,
	)
	return eris.Wrapf(err, "sqlite: upsert restaurant %s", r.ID)
}

func (s *SQLiteStore) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	var r model.Restaurant
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, area, address FROM restaurants WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.Area, &r.Address)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get restaurant %s", id)
	}
	return &r, nil
}

func (s *SQLiteStore) FindRestaurants(ctx context.Context, filter RestaurantFilter) ([]model.Restaurant, error) {
	query := `SELECT id, name, area, address FROM restaurants WHERE 1=1`
	var args []any

	if filter.Name != "" {
		query += ` AND (name = ? OR name LIKE ?)`
		args = append(args, filter.Name, "%"+filter.Name+"%")
	}
	if filter.Area != "" {
		query += ` AND area LIKE ?`
		args = append(args, "%"+filter.Area+"%")
	}
	query += ` ORDER BY name`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find restaurants")
	}
	defer rows.Close()

	var out []model.Restaurant
	for rows.Next() {
		var r model.Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Area, &r.Address); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan restaurant")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: find restaurants rows")
}

// InsertReviewIfAbsent inserts a pipeline review with a nil author reference.
// A natural-key conflict (restaurant_id, review_text) is not an error; it
// reports inserted=false so repeated runs over the same source page are safe.
func (s *SQLiteStore) InsertReviewIfAbsent(ctx context.Context, rec model.ReviewRecord) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, restaurant_id, review_text, rating, date_appropriate, author_ref, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, NULL, ?, ?)
		 ON CONFLICT(restaurant_id, review_text) DO NOTHING`,
		uuid.New().String(), rec.RestaurantID, rec.RawText, nullInt(rec.Rating), rec.DateTagged, now, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert review for %s", rec.RestaurantID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetReview(ctx context.Context, id string) (*model.Review, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, restaurant_id, review_text, rating, date_appropriate, author_ref, created_at, updated_at
		 FROM reviews WHERE id = ?`, id,
	)
	return scanReview(row)
}

// UpdateReviewText is a compare-and-update: it succeeds only when the stored
// text still matches previousText and the review is externally sourced.
// Only review_text and updated_at change.
func (s *SQLiteStore) UpdateReviewText(ctx context.Context, id, previousText, newText string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET review_text = ?, updated_at = ?
		 WHERE id = ? AND review_text = ? AND author_ref IS NULL`,
		newText, time.Now().UTC(), id, previousText,
	)
	if isUniqueViolation(err) {
		return false, eris.Wrapf(ErrConflict, "sqlite: update review text %s", id)
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update review text %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

// ListReviews returns all of a restaurant's reviews, authored and external
// alike, newest first.
func (s *SQLiteStore) ListReviews(ctx context.Context, restaurantID string) ([]model.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, restaurant_id, review_text, rating, date_appropriate, author_ref, created_at, updated_at
		 FROM reviews WHERE restaurant_id = ? ORDER BY created_at DESC`, restaurantID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list reviews %s", restaurantID)
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list reviews rows")
}

func (s *SQLiteStore) ListExternalReviews(ctx context.Context, limit int) ([]ExternalReview, error) {
	query := `SELECT r.id, r.restaurant_id, r.review_text, r.rating, r.date_appropriate, r.author_ref, r.created_at, r.updated_at, rst.name
		 FROM reviews r JOIN restaurants rst ON rst.id = r.restaurant_id
		 WHERE r.author_ref IS NULL
		 ORDER BY r.created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list external reviews")
	}
	defer rows.Close()

	var out []ExternalReview
	for rows.Next() {
		var er ExternalReview
		var rating sql.NullInt64
		var author sql.NullString
		if err := rows.Scan(&er.ID, &er.RestaurantID, &er.ReviewText, &rating, &er.DateAppropriate,
			&author, &er.CreatedAt, &er.UpdatedAt, &er.RestaurantName); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan external review")
		}
		er.Rating = intFromNull(rating)
		er.AuthorRef = strFromNull(author)
		out = append(out, er)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: external review rows")
}

func (s *SQLiteStore) CountReviews(ctx context.Context, restaurantID string) (ReviewCounts, error) {
	var c ReviewCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN author_ref IS NULL THEN 1 ELSE 0 END), 0)
		 FROM reviews WHERE restaurant_id = ?`, restaurantID,
	).Scan(&c.Total, &c.External)
	return c, eris.Wrapf(err, "sqlite: count reviews %s", restaurantID)
}

func (s *SQLiteStore) RecordTaskResult(ctx context.Context, res model.TaskResult) error {
	var errText sql.NullString
	if res.Error != "" {
		errText = sql.NullString{String: res.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_results (id, restaurant_id, site_kind, target_url, status, attempt, extracted, inserted, skipped, retries, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), res.Task.RestaurantID, res.Task.SiteKind, res.Task.TargetURL,
		string(res.Task.Status), res.Task.Attempt, res.Extracted, res.Inserted, res.Skipped,
		res.Retries, errText, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: record task result")
}

// helpers

// isUniqueViolation reports whether err is a UNIQUE constraint failure, so
// the natural key on (restaurant_id, review_text) surfaces as ErrConflict
// instead of a generic driver error.
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReview(row scannable) (*model.Review, error) {
	var r model.Review
	var rating sql.NullInt64
	var author sql.NullString

	err := row.Scan(&r.ID, &r.RestaurantID, &r.ReviewText, &rating, &r.DateAppropriate,
		&author, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan review")
	}
	r.Rating = intFromNull(rating)
	r.AuthorRef = strFromNull(author)
	return &r, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func strFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
