package world

import (
	"fmt"
	"os"

	"otmarket/internal/domain"

	"gopkg.in/yaml.v3"
)

// Catalog holds the item definitions known to the server.
type Catalog struct {
	types map[uint16]domain.ItemType
}

// NewCatalog builds a catalog from a list of definitions. Id 0 is reserved
// and ignored.
func NewCatalog(types []domain.ItemType) *Catalog {
	c := &Catalog{types: make(map[uint16]domain.ItemType, len(types))}
	for _, t := range types {
		if t.ID == 0 {
			continue
		}
		c.types[t.ID] = t
	}
	return c
}

// LoadCatalog reads item definitions from a YAML file:
//
//	items:
//	  - id: 2160
//	    name: crystal coin
//	    stackable: true
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Items []domain.ItemType `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse item catalog: %w", err)
	}

	return NewCatalog(file.Items), nil
}

// Get returns the definition of id.
func (c *Catalog) Get(id uint16) (domain.ItemType, bool) {
	t, ok := c.types[id]
	return t, ok
}

// Len returns the number of known item types.
func (c *Catalog) Len() int {
	return len(c.types)
}
