package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/neurally/internal/domain/analysis"
)

//go:embed catalog.yaml
var catalogYAML []byte

const dimensionless = "dimensionless"

// Entry describes one feature for display.
type Entry struct {
	Key         string `yaml:"key" json:"key"`
	Title       string `yaml:"title" json:"title"`
	Units       string `yaml:"units" json:"units"`
	Description string `yaml:"description" json:"description"`
}

// TitleWithUnits is the title with a unit suffix unless dimensionless.
func (e Entry) TitleWithUnits() string {
	if e.Units == "" || e.Units == dimensionless {
		return e.Title
	}
	return fmt.Sprintf("%s (%s)", e.Title, e.Units)
}

// Catalog is read-only once loaded.
type Catalog struct {
	order  map[analysis.TestType][]Entry
	lookup map[analysis.TestType]map[string]Entry
}

// Parse builds a Catalog from yaml keyed by test type code.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string][]Entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse feature catalog: %w", err)
	}
	c := &Catalog{
		order:  make(map[analysis.TestType][]Entry, len(raw)),
		lookup: make(map[analysis.TestType]map[string]Entry, len(raw)),
	}
	for code, entries := range raw {
		tt := analysis.TestType(strings.ToUpper(code))
		if !tt.Valid() {
			return nil, fmt.Errorf("feature catalog: unknown test type %q", code)
		}
		m := make(map[string]Entry, len(entries))
		for _, e := range entries {
			if e.Key == "" {
				return nil, fmt.Errorf("feature catalog: %s entry without key", code)
			}
			m[e.Key] = e
		}
		c.order[tt] = entries
		c.lookup[tt] = m
	}
	return c, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog, parsed once per process.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}

// unknown codes fall back to the sustained vowel table
func resolve(tt analysis.TestType) analysis.TestType {
	if tt.Valid() {
		return tt
	}
	return analysis.TestSustainedVowel
}

// Lookup finds the entry for key under the test type.
func (c *Catalog) Lookup(tt analysis.TestType, key string) (Entry, bool) {
	e, ok := c.lookup[resolve(tt)][key]
	return e, ok
}

// Features lists the catalog entries of a test type in display order.
func (c *Catalog) Features(tt analysis.TestType) []Entry {
	entries := c.order[resolve(tt)]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// DisplayName is the column title for key: catalog title with units, or the
// raw key with underscores turned into spaces.
func (c *Catalog) DisplayName(tt analysis.TestType, key string) string {
	if e, ok := c.Lookup(tt, key); ok {
		return e.TitleWithUnits()
	}
	return strings.ReplaceAll(key, "_", " ")
}
