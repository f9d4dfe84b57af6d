package model

// RewriteRecord is the transfer artifact for the export-edit-reapply cycle.
// An external editor (human or AI) fills in RewrittenText; every other field
// except ReviewID is informational and ignored on apply.
type RewriteRecord struct {
	Index          int    `json:"index"`
	ReviewID       string `json:"id"`
	RestaurantName string `json:"restaurant_name"`
	OriginalText   string `json:"original_text"`
	RewrittenText  string `json:"rewritten_text"`
}
