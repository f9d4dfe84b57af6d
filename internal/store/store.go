package store

import (
	"context"
	"errors"

	"github.com/tablescout/review-pipeline/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a text update would collide with another
// review's (restaurant_id, review_text) natural key. The caller decides
// whether that is a skip or a failure; the store never treats it as fatal.
var ErrConflict = errors.New("store: natural key conflict")

// RestaurantFilter selects catalog entries by name and area. Name matches
// exactly or as a substring; empty fields match everything.
type RestaurantFilter struct {
	Name  string `json:"name,omitempty"`
	Area  string `json:"area,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ExternalReview pairs an externally-sourced review with its restaurant's
// display name for the rewrite transfer artifact.
type ExternalReview struct {
	model.Review
	RestaurantName string `json:"restaurant_name"`
}

// ReviewCounts splits a restaurant's review count by origin.
type ReviewCounts struct {
	Total    int `json:"total"`
	External int `json:"external"`
}

// Store is the persistence boundary for the pipeline. The restaurant catalog
// is read-mostly (UpsertRestaurant exists only for catalog sync); reviews
// created here always carry a nil author reference, and the natural key
// (restaurant_id, review_text) is enforced by the schema, not by in-process
// locking.
type Store interface {
	// Restaurant catalog
	UpsertRestaurant(ctx context.Context, r model.Restaurant) error
	GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error)
	FindRestaurants(ctx context.Context, filter RestaurantFilter) ([]model.Restaurant, error)

	// Reviews
	InsertReviewIfAbsent(ctx context.Context, rec model.ReviewRecord) (bool, error)
	GetReview(ctx context.Context, id string) (*model.Review, error)
	UpdateReviewText(ctx context.Context, id, previousText, newText string) (bool, error)
	ListReviews(ctx context.Context, restaurantID string) ([]model.Review, error)
	ListExternalReviews(ctx context.Context, limit int) ([]ExternalReview, error)
	CountReviews(ctx context.Context, restaurantID string) (ReviewCounts, error)

	// Scrape bookkeeping
	RecordTaskResult(ctx context.Context, res model.TaskResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
