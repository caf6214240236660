// Package scenes provides the read-only catalog of scene presets.
package scenes

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/lehigh-university-libraries/chronobooth/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed scenes.yaml
var defaultCatalog []byte

// Catalog is an ordered, immutable set of scene presets
type Catalog struct {
	presets []models.ScenePreset
	byID    map[string]models.ScenePreset
}

var (
	loadOnce sync.Once
	builtin  *Catalog
	loadErr  error
)

// Default returns the embedded catalog, parsed once per process.
func Default() (*Catalog, error) {
	loadOnce.Do(func() {
		builtin, loadErr = Parse(defaultCatalog)
	})
	return builtin, loadErr
}

// MustDefault is Default for callers that cannot proceed without presets.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from a YAML list of presets.
func Parse(data []byte) (*Catalog, error) {
	var presets []models.ScenePreset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("failed to parse scene catalog: %w", err)
	}
	return New(presets)
}

// New validates presets and indexes them by ID.
func New(presets []models.ScenePreset) (*Catalog, error) {
	if len(presets) == 0 {
		return nil, fmt.Errorf("scene catalog is empty")
	}

	c := &Catalog{
		presets: make([]models.ScenePreset, 0, len(presets)),
		byID:    make(map[string]models.ScenePreset, len(presets)),
	}
	for i, p := range presets {
		if p.ID == "" {
			return nil, fmt.Errorf("scene %d has no id", i)
		}
		if p.PromptTemplate == "" {
			return nil, fmt.Errorf("scene %q has no prompt", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate scene id %q", p.ID)
		}
		c.presets = append(c.presets, p)
		c.byID[p.ID] = p
	}
	return c, nil
}

// List returns the presets in catalog order.
func (c *Catalog) List() []models.ScenePreset {
	out := make([]models.ScenePreset, len(c.presets))
	copy(out, c.presets)
	return out
}

// Get looks a preset up by ID.
func (c *Catalog) Get(id string) (models.ScenePreset, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Marshal renders the catalog back to YAML.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(c.presets)
}
