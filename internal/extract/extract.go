// Package extract turns raw HTML snapshots into structured review records
// using ordered, per-field selector fallback chains. Target markup changes
// without notice and differs between listing and detail pages, so every field
// is resolved independently and misses are tolerated.
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/tablescout/review-pipeline/internal/model"
	"github.com/tablescout/review-pipeline/internal/site"
)

// DefaultMinTextLen guards against capturing layout boilerplate as review
// text. Counted in runes, not bytes, since most review text is Japanese.
const DefaultMinTextLen = 10

// Target identifies what a snapshot was taken for.
type Target struct {
	RestaurantID string
	SourceURL    string
	ExtractedAt  time.Time
}

// Extractor extracts review records from HTML documents.
type Extractor struct {
	minTextLen int
}

// New creates an Extractor. minTextLen <= 0 selects DefaultMinTextLen.
func New(minTextLen int) *Extractor {
	if minTextLen <= 0 {
		minTextLen = DefaultMinTextLen
	}
	return &Extractor{minTextLen: minTextLen}
}

// Extract returns zero or more review records from the snapshot. A miss is
// not an error: unparseable HTML, no matching container, or no candidate
// surviving normalization all yield an empty slice. No record is ever
// produced with empty text.
func (e *Extractor) Extract(html string, contract site.Contract, target Target) []model.ReviewRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	containers := findContainers(doc, contract.ContainerSelectors)
	if containers == nil {
		return nil
	}

	var records []model.ReviewRecord
	containers.Each(func(_ int, node *goquery.Selection) {
		text := firstMatch(node, contract.TextSelectors)
		if text == "" || utf8.RuneCountInString(text) < e.minTextLen {
			return
		}

		// Rating resolves independently of text: a record may carry text
		// with no rating when every rating selector misses.
		rating := parseRating(firstMatch(node, contract.RatingSelectors))

		records = append(records, model.ReviewRecord{
			RestaurantID: target.RestaurantID,
			RawText:      text,
			Rating:       rating,
			SourceURL:    target.SourceURL,
			ExtractedAt:  target.ExtractedAt,
		})
	})

	return records
}

// findContainers returns the matches for the first container selector that
// hits at all. Without a review-specific container, generic tags like
// article/section would produce false positives, so no container means no
// records.
func findContainers(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

// firstMatch walks the fallback chain and returns the first non-empty
// normalized text.
func firstMatch(node *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if text := Normalize(node.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

var ratingNumRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// parseRating coerces selector text like "3.5", "★4" or "４" to the 1-5
// scale. Out-of-range or unparseable values are absent, never zero.
func parseRating(raw string) *int {
	m := ratingNumRe.FindString(Normalize(raw))
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return nil
	}
	if v < 1 || v > 5 {
		return nil
	}
	n := int(math.Round(v))
	return &n
}
