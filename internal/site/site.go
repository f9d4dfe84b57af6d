// Package site holds the per-site scrape contracts: URL templates, ordered
// selector fallback chains, and interstitial markers. Contracts are data, not
// code, so new markup variants are additive.
package site

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Kind identifies which target-site contract applies to a task.
type Kind string

const (
	KindTabelog Kind = "tabelog"
	KindGnavi   Kind = "gnavi"
	KindRetty   Kind = "retty"
)

// Contract describes how to reach and read one review site.
type Contract struct {
	Kind        Kind   `yaml:"kind"`
	URLTemplate string `yaml:"url_template"`
	Locale      string `yaml:"locale"`
	Timezone    string `yaml:"timezone"`

	// Ordered fallback chains. For each field the first selector yielding
	// non-empty trimmed text wins, independently per field.
	ContainerSelectors []string `yaml:"container_selectors"`
	TextSelectors      []string `yaml:"text_selectors"`
	RatingSelectors    []string `yaml:"rating_selectors"`

	// Consent dialogs are auto-dismissed once via these selectors. Block
	// markers still present afterwards mean the session is blocked.
	ConsentSelectors []string `yaml:"consent_selectors"`
	BlockSelectors   []string `yaml:"block_selectors"`
}

// TargetURL substitutes the search query into the contract's URL template.
func (c Contract) TargetURL(query string) string {
	return fmt.Sprintf(c.URLTemplate, url.QueryEscape(query))
}

// Registry maps site kinds to their contracts.
type Registry struct {
	contracts map[Kind]Contract
}

//go:embed sites.yaml
var defaultSitesYAML []byte

type contractsFile struct {
	Sites []Contract `yaml:"sites"`
}

// DefaultRegistry returns the registry built from the embedded contracts.
func DefaultRegistry() (*Registry, error) {
	return parse(defaultSitesYAML)
}

// LoadRegistry reads contracts from a yaml file. An empty path falls back to
// the embedded defaults.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "site: read contracts %s", path)
	}
	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var f contractsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "site: parse contracts")
	}

	contracts := make(map[Kind]Contract, len(f.Sites))
	for _, c := range f.Sites {
		if c.Kind == "" {
			return nil, eris.New("site: contract missing kind")
		}
		if len(c.ContainerSelectors) == 0 || len(c.TextSelectors) == 0 {
			return nil, eris.Errorf("site: contract %s missing selector chains", c.Kind)
		}
		contracts[c.Kind] = c
	}
	if len(contracts) == 0 {
		return nil, eris.New("site: no contracts defined")
	}
	return &Registry{contracts: contracts}, nil
}

// Get returns the contract for the given kind.
func (r *Registry) Get(kind Kind) (Contract, error) {
	c, ok := r.contracts[kind]
	if !ok {
		return Contract{}, eris.Errorf("site: unknown site kind %q", kind)
	}
	return c, nil
}

// Kinds returns all registered kinds.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.contracts))
	for k := range r.contracts {
		kinds = append(kinds, k)
	}
	return kinds
}
