package site

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_AllKinds(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	for _, kind := range []Kind{KindTabelog, KindGnavi, KindRetty} {
		c, err := reg.Get(kind)
		require.NoError(t, err, "missing contract for %s", kind)
		assert.NotEmpty(t, c.URLTemplate)
		assert.NotEmpty(t, c.ContainerSelectors)
		assert.NotEmpty(t, c.TextSelectors)
	}
}

func TestRegistry_UnknownKind(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	_, err = reg.Get(Kind("yelp"))
	assert.Error(t, err)
}

func TestContract_TargetURLEscapesQuery(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	c, err := reg.Get(KindTabelog)
	require.NoError(t, err)

	u := c.TargetURL("焼肉 渋谷")
	assert.Contains(t, u, "tabelog.com")
	assert.NotContains(t, u, " ")
}

func TestLoadRegistry_FileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sites.yaml")
	contents := `sites:
  - kind: tabelog
    url_template: "https://example.com/?q=%s"
    container_selectors: ["div.r"]
    text_selectors: ["p.t"]
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	c, err := reg.Get(KindTabelog)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/?q=%s", c.URLTemplate)

	_, err = reg.Get(KindGnavi)
	assert.Error(t, err, "file override replaces the embedded set")
}

func TestLoadRegistry_EmptyPathUsesDefaults(t *testing.T) {
	reg, err := LoadRegistry("")
	require.NoError(t, err)
	assert.Len(t, reg.Kinds(), 3)
}

func TestParse_RejectsMissingSelectors(t *testing.T) {
	_, err := parse([]byte(`sites:
  - kind: tabelog
    url_template: "https://example.com/?q=%s"
`))
	assert.Error(t, err)
}
