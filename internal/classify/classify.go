// Package classify tags review text for date suitability against a
// configurable keyword set.
package classify

import "strings"

// DefaultKeywords is the canonical date-vocabulary set. The source scripts
// carried slightly divergent copies of this list; they are consolidated here
// and overridable through configuration.
func DefaultKeywords() []string {
	return []string{
		"デート",
		"カップル",
		"記念日",
		"誕生日",
		"彼女",
		"彼氏",
		"夜景",
		"個室",
		"雰囲気",
		"ロマンチック",
		"二人で",
		"ふたりで",
	}
}

// Result holds the classification outcome for one text.
type Result struct {
	Tagged bool `json:"tagged"`
	Score  int  `json:"score"`
}

// Classifier scores text by counting distinct keyword hits. It is a pure
// function of (text, keyword set): substring matching, case-sensitive, no
// stemming or tokenization.
type Classifier struct {
	keywords []string
}

// New builds a Classifier from the given keyword set. Empty and duplicate
// keywords are dropped. A nil or empty set falls back to DefaultKeywords.
func New(keywords []string) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultKeywords()
	}
	seen := make(map[string]struct{}, len(keywords))
	distinct := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		distinct = append(distinct, kw)
	}
	return &Classifier{keywords: distinct}
}

// Classify counts distinct keywords appearing as substrings of text.
func (c *Classifier) Classify(text string) Result {
	score := 0
	for _, kw := range c.keywords {
		if strings.Contains(text, kw) {
			score++
		}
	}
	return Result{Tagged: score > 0, Score: score}
}
