// Package extractor turns raw page content into product records.
// Everything site-specific lives behind the Extractor interface so
// the scheduling, retry and cache core stays site-agnostic.
package extractor

import (
	"errors"
	"sync"

	"github.com/pricewatch/product-scraper/internal/models"
)

var ErrUnknownSite = errors.New("no extractor registered for site")

// Extractor adapts one site. Extract never fails: internal parse
// errors yield a record with default field values instead.
type Extractor interface {
	// Site is the identifier callers pass to select this adapter.
	Site() string

	// Extract parses rendered markup into a product record.
	Extract(content string) models.ProductRecord

	// DeriveKey maps a URL to the canonical product identifier. It is
	// deterministic and stable across URL variants of one product.
	DeriveKey(rawURL string) string

	// ResolveURL turns caller input (full URL, bare path, or numeric
	// product id) into a fetchable URL.
	ResolveURL(input string) (string, error)
}

// Registry maps site identifiers to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]Extractor)}
}

func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.Site()] = e
}

func (r *Registry) Lookup(site string) (Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.extractors[site]
	if !ok {
		return nil, ErrUnknownSite
	}
	return e, nil
}
