package model

import "time"

// Restaurant is a catalog entry. The pipeline reads it, never mutates it.
type Restaurant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Area    string `json:"area"`
	Address string `json:"address,omitempty"`
}

// ReviewRecord is a candidate review produced by extraction. It is transient:
// once ingested it becomes a persisted Review and the record is discarded.
type ReviewRecord struct {
	RestaurantID string    `json:"restaurant_id"`
	RawText      string    `json:"raw_text"`
	Rating       *int      `json:"rating,omitempty"` // 1-5; nil when the source had none
	DateTagged   bool      `json:"date_tagged"`
	DateScore    int       `json:"date_score"`
	SourceURL    string    `json:"source_url"`
	ExtractedAt  time.Time `json:"extracted_at"`
}

// Review is a persisted review. AuthorRef is nil for reviews this pipeline
// created; a non-nil value marks a user-submitted review the pipeline must
// never touch.
type Review struct {
	ID              string    `json:"id"`
	RestaurantID    string    `json:"restaurant_id"`
	ReviewText      string    `json:"review_text"`
	Rating          *int      `json:"rating,omitempty"`
	DateAppropriate bool      `json:"date_appropriate"`
	AuthorRef       *string   `json:"author_ref,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ExternallySourced reports whether the review was created by the pipeline
// rather than submitted by a platform user.
func (r Review) ExternallySourced() bool {
	return r.AuthorRef == nil
}
