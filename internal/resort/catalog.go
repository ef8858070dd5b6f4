// Package resort holds the static resort reference catalog posts may point at.
package resort

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed resorts.yml
var defaultCatalog []byte

// Resort is a ski area entry in the catalog.
type Resort struct {
	ID              string `yaml:"id" json:"id"`
	Name            string `yaml:"name" json:"name"`
	Region          string `yaml:"region" json:"region"`
	Country         string `yaml:"country" json:"country"`
	SummitElevation int    `yaml:"summit_elevation_m" json:"summit_elevation_m"`
	BaseElevation   int    `yaml:"base_elevation_m" json:"base_elevation_m"`
	Lifts           int    `yaml:"lifts" json:"lifts"`
}

// Vertical returns the vertical drop in meters.
func (r Resort) Vertical() int {
	return r.SummitElevation - r.BaseElevation
}

type catalogFile struct {
	Resorts []Resort `yaml:"resorts"`
}

// Catalog is an immutable, id-indexed set of resorts.
type Catalog struct {
	byID  map[string]Resort
	order []string
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode resort catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]Resort, len(doc.Resorts))}
	for i, r := range doc.Resorts {
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			return nil, fmt.Errorf("resort at index %d has no id", i)
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate resort id %q", r.ID)
		}
		c.byID[r.ID] = r
		c.order = append(c.order, r.ID)
	}
	return c, nil
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Has reports whether id is a known resort.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Get looks a resort up by id.
func (c *Catalog) Get(id string) (Resort, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// All returns resorts sorted by name.
func (c *Catalog) All() []Resort {
	out := make([]Resort, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IDs returns resort ids in catalog order.
func (c *Catalog) IDs() []string {
	return append([]string{}, c.order...)
}

// Len returns the number of resorts.
func (c *Catalog) Len() int {
	return len(c.order)
}
