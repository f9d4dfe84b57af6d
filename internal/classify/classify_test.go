package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_DateKeywordHit(t *testing.T) {
	c := New([]string{"デート"})
	res := c.Classify("彼女とデートで伺いました")
	assert.True(t, res.Tagged)
	assert.GreaterOrEqual(t, res.Score, 1)
}

func TestClassify_NoHit(t *testing.T) {
	c := New([]string{"デート"})
	res := c.Classify("普通のランチでした")
	assert.False(t, res.Tagged)
	assert.Equal(t, 0, res.Score)
}

func TestClassify_DistinctKeywordsCounted(t *testing.T) {
	c := New([]string{"デート", "夜景", "個室"})
	res := c.Classify("夜景の見える個室でデートしました。夜景が最高。")
	assert.Equal(t, 3, res.Score, "repeated keyword counts once")
}

func TestClassify_CaseSensitive(t *testing.T) {
	c := New([]string{"Date"})
	assert.False(t, c.Classify("a date night").Tagged)
	assert.True(t, c.Classify("a Date night").Tagged)
}

func TestNew_DropsEmptyAndDuplicates(t *testing.T) {
	c := New([]string{"デート", "", "デート", "  "})
	res := c.Classify("デート")
	assert.Equal(t, 1, res.Score)
}

func TestNew_EmptySetUsesDefaults(t *testing.T) {
	c := New(nil)
	res := c.Classify("記念日のディナーにおすすめ")
	assert.True(t, res.Tagged)
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(DefaultKeywords())
	text := "雰囲気が良くデートにおすすめ"
	first := c.Classify(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(text))
	}
}
