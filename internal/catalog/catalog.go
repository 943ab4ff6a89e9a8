// Package catalog loads and serves the static insurance product catalog.
package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/smartcover/heron/internal/domain"
)

// Store is the in-memory, read-only product catalog. It is populated
// once before the server starts accepting requests and never mutated
// afterward, so it is safe for concurrent reads without locking.
type Store struct {
	products []domain.Product
	byID     map[string]domain.Product
}

// New creates a store from an already-loaded product list.
func New(products []domain.Product) *Store {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Store{products: products, byID: byID}
}

// Load reads the catalog from cfg.Path, falling back to
// cfg.FallbackPath. Loading fails soft: if neither file can be read or
// parsed the store is empty and the service keeps running, reporting
// zero products rather than refusing to start.
func Load(cfg domain.CatalogConfig) *Store {
	for _, path := range []string{cfg.Path, cfg.FallbackPath} {
		if path == "" {
			continue
		}

		products, err := readFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Warn("failed to load catalog file", "path", path, "error", err)
			}
			continue
		}

		slog.Info("catalog loaded", "path", path, "products", len(products))
		return New(products)
	}

	slog.Warn("no catalog file found, serving empty catalog")
	return New(nil)
}

func readFile(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// All returns the full catalog in load order. Callers must not mutate
// the returned slice.
func (s *Store) All() []domain.Product {
	return s.products
}

// Get returns a product by ID.
func (s *Store) Get(id string) (domain.Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Count returns the number of loaded products.
func (s *Store) Count() int {
	return len(s.products)
}
