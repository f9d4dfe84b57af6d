package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tablescout/review-pipeline/internal/db"
	"github.com/tablescout/review-pipeline/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn}
}

const postgresMigration = `
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
	date_appropriate BOOLEAN NOT NULL DEFAULT FALSE,
	author_ref       TEXT,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
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
	recorded_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_restaurants_name ON restaurants(name);
CREATE INDEX IF NOT EXISTS idx_reviews_restaurant ON reviews(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_reviews_external ON reviews(created_at) WHERE author_ref IS NULL;
CREATE INDEX IF NOT EXISTS idx_scrape_results_restaurant ON scrape_results(restaurant_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertRestaurant(ctx context.Context, r model.Restaurant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO restaurants (id, name, area, address) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, area = excluded.area, address = excluded.address`,
		r.ID, r.Name, r.Area, r.Address,
	)
	return eris.Wrapf(err, "postgres: upsert restaurant %s", r.ID)
}

func (s *PostgresStore) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	var r model.Restaurant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, area, address FROM restaurants WHERE id = $1`, id,
	).Scan(&r.ID, &r.Name, &r.Area, &r.Address)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get restaurant %s", id)
	}
	return &r, nil
}

func (s *PostgresStore) FindRestaurants(ctx context.Context, filter RestaurantFilter) ([]model.Restaurant, error) {
	query := `SELECT id, name, area, address FROM restaurants WHERE 1=1`
	var args []any

	if filter.Name != "" {
		args = append(args, filter.Name, "%"+filter.Name+"%")
		query += ` AND (name = $1 OR name LIKE $2)`
	}
	if filter.Area != "" {
		args = append(args, "%"+filter.Area+"%")
		query += ` AND area LIKE $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY name`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find restaurants")
	}
	defer rows.Close()

	var out []model.Restaurant
	for rows.Next() {
		var r model.Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Area, &r.Address); err != nil {
			return nil, eris.Wrap(err, "postgres: scan restaurant")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: find restaurants rows")
}

func (s *PostgresStore) InsertReviewIfAbsent(ctx context.Context, rec model.ReviewRecord) (bool, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO reviews (id, restaurant_id, review_text, rating, date_appropriate, author_ref, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)
		 ON CONFLICT (restaurant_id, review_text) DO NOTHING`,
		uuid.New().String(), rec.RestaurantID, rec.RawText, rec.Rating, rec.DateTagged, now, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert review for %s", rec.RestaurantID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetReview(ctx context.Context, id string) (*model.Review, error) {
	var r model.Review
	err := s.pool.QueryRow(ctx,
		`SELECT id, restaurant_id, review_text, rating, date_appropriate, author_ref, created_at, updated_at
		 FROM reviews WHERE id = $1`, id,
	).Scan(&r.ID, &r.RestaurantID, &r.ReviewText, &r.Rating, &r.DateAppropriate,
		&r.AuthorRef, &r.CreatedAt, &r.UpdatedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get review %s", id)
	}
	return &r, nil
}

func (s *PostgresStore) UpdateReviewText(ctx context.Context, id, previousText, newText string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reviews SET review_text = $1, updated_at = $2
		 WHERE id = $3 AND review_text = $4 AND author_ref IS NULL`,
		newText, time.Now().UTC(), id, previousText,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return false, eris.Wrapf(ErrConflict, "postgres: update review text %s", id)
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: update review text %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListReviews(ctx context.Context, restaurantID string) ([]model.Review, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, restaurant_id, review_text, rating, date_appropriate, author_ref, created_at, updated_at
		 FROM reviews WHERE restaurant_id = $1 ORDER BY created_at DESC`, restaurantID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list reviews %s", restaurantID)
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.RestaurantID, &r.ReviewText, &r.Rating, &r.DateAppropriate,
			&r.AuthorRef, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list reviews rows")
}

func (s *PostgresStore) ListExternalReviews(ctx context.Context, limit int) ([]ExternalReview, error) {
	query := `SELECT r.id, r.restaurant_id, r.review_text, r.rating, r.date_appropriate, r.author_ref, r.created_at, r.updated_at, rst.name
		 FROM reviews r JOIN restaurants rst ON rst.id = r.restaurant_id
		 WHERE r.author_ref IS NULL
		 ORDER BY r.created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list external reviews")
	}
	defer rows.Close()

	var out []ExternalReview
	for rows.Next() {
		var er ExternalReview
		if err := rows.Scan(&er.ID, &er.RestaurantID, &er.ReviewText, &er.Rating, &er.DateAppropriate,
			&er.AuthorRef, &er.CreatedAt, &er.UpdatedAt, &er.RestaurantName); err != nil {
			return nil, eris.Wrap(err, "postgres: scan external review")
		}
		out = append(out, er)
	}
	return out, eris.Wrap(rows.Err(), "postgres: external review rows")
}

func (s *PostgresStore) CountReviews(ctx context.Context, restaurantID string) (ReviewCounts, error) {
	var c ReviewCounts
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN author_ref IS NULL THEN 1 ELSE 0 END), 0)
		 FROM reviews WHERE restaurant_id = $1`, restaurantID,
	).Scan(&c.Total, &c.External)
	return c, eris.Wrapf(err, "postgres: count reviews %s", restaurantID)
}

func (s *PostgresStore) RecordTaskResult(ctx context.Context, res model.TaskResult) error {
	var errText *string
	if res.Error != "" {
		errText = &res.Error
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_results (id, restaurant_id, site_kind, target_url, status, attempt, extracted, inserted, skipped, retries, error, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.New().String(), res.Task.RestaurantID, res.Task.SiteKind, res.Task.TargetURL,
		string(res.Task.Status), res.Task.Attempt, res.Extracted, res.Inserted, res.Skipped,
		res.Retries, errText, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: record task result")
}
