// apps/go-server/internal/catalog/catalog.go
//
// Catalog provider for the guess engine.
//
// Responsibilities:
//   - Hold the read-only item list of each category (tanks, maps).
//   - Validate items on load (unique ids, non-empty names, at least one image).
//   - Supply lookups by id, "next unfinished" iteration order, and the ordered
//     autocomplete source (Names).
//
// Initialization behavior (Load):
//  1. If CATALOG_TANKS_FILE / CATALOG_MAPS_FILE point to a file, that file
//     replaces the embedded catalog for its category.
//  2. Otherwise the embedded defaults from assets/ are used.
//
// Catalogs are loaded once at startup and never mutated afterwards.

package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
)

// ErrCategoryMismatch is returned for a file declaring another category.
var ErrCategoryMismatch = errors.New("catalog category mismatch")

// Catalog is the ordered item list of one category.
type Catalog struct {
	category game.Category
	items    []game.Item
	byID     map[string]int
	names    []string
}

// New validates items and builds a catalog. Item order is preserved.
func New(category game.Category, items []game.Item) (*Catalog, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("catalog %s: no items", category)
	}
	c := &Catalog{
		category: category,
		items:    make([]game.Item, 0, len(items)),
		byID:     make(map[string]int, len(items)),
	}
	seenName := map[string]struct{}{}
	for i, it := range items {
		it.ID = strings.TrimSpace(it.ID)
		switch {
		case it.ID == "":
			return nil, fmt.Errorf("catalog %s: item %d has no id", category, i)
		case it.Name == "":
			return nil, fmt.Errorf("catalog %s: item %s has no name", category, it.ID)
		case len(it.Images) == 0:
			return nil, fmt.Errorf("catalog %s: item %s has no images", category, it.ID)
		}
		if _, dup := c.byID[it.ID]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate item id %s", category, it.ID)
		}
		for j, img := range it.Images {
			if strings.TrimSpace(img) == "" {
				return nil, fmt.Errorf("catalog %s: item %s image %d is empty", category, it.ID, j)
			}
		}
		it.Images = append([]string(nil), it.Images...)
		c.byID[it.ID] = len(c.items)
		c.items = append(c.items, it)
		if _, ok := seenName[it.Name]; !ok {
			seenName[it.Name] = struct{}{}
			c.names = append(c.names, it.Name)
		}
	}
	return c, nil
}

// Category returns the catalog's category.
func (c *Catalog) Category() game.Category { return c.category }

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Items returns a copy of the item list in catalog order.
func (c *Catalog) Items() []game.Item {
	return append([]game.Item(nil), c.items...)
}

// At returns the item at position i (0 <= i < Len()).
func (c *Catalog) At(i int) game.Item { return c.items[i] }

// Item looks up an item by id.
func (c *Catalog) Item(id string) (game.Item, error) {
	i, ok := c.byID[id]
	if !ok {
		return game.Item{}, fmt.Errorf("%w: %s/%s", game.ErrUnknownItem, c.category, id)
	}
	return c.items[i], nil
}

// Names is the autocomplete source: every distinct answer in catalog order.
// The engine never validates guesses against it.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Provider supplies catalogs by category.
type Provider interface {
	Catalog(category game.Category) (*Catalog, error)
}

// Set is the Provider holding every loaded category.
type Set struct {
	catalogs map[game.Category]*Catalog
}

// NewSet builds a Set from already-validated catalogs.
func NewSet(cs ...*Catalog) *Set {
	s := &Set{catalogs: make(map[game.Category]*Catalog, len(cs))}
	for _, c := range cs {
		s.catalogs[c.category] = c
	}
	return s
}

// Catalog implements Provider.
func (s *Set) Catalog(category game.Category) (*Catalog, error) {
	c, ok := s.catalogs[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", game.ErrUnknownCategory, category)
	}
	return c, nil
}

// Stats returns item counts per category.
func (s *Set) Stats() map[game.Category]int {
	out := make(map[game.Category]int, len(s.catalogs))
	for k, c := range s.catalogs {
		out[k] = c.Len()
	}
	return out
}
