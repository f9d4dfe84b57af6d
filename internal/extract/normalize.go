package extract

import (
	"strings"

	"golang.org/x/text/width"
)

// Normalize produces the canonical form of review text: width-folded (so
// half-width katakana and full-width latin collapse to their standard forms),
// whitespace runs reduced to single spaces, trimmed. Deduplication and the
// store's natural key both operate on this form.
func Normalize(s string) string {
	s = width.Fold.String(s)
	return strings.Join(strings.Fields(s), " ")
}
