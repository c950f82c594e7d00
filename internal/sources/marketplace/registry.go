// Package marketplace knows which marketplaces are supported and turns a
// (marketplace, product id, observed attributes) triple into a Product.
package marketplace

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/MrSnakeDoc/pause/internal/domain"
)

type entry struct {
	Marketplace
	pattern *regexp.Regexp
}

// Registry is the immutable set of supported marketplaces.
type Registry struct {
	entries map[string]entry
	now     func() time.Time
}

// NewRegistry validates the marketplaces and indexes them by id.
func NewRegistry(marketplaces []Marketplace) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]entry, len(marketplaces)),
		now:     time.Now,
	}

	for _, m := range marketplaces {
		m.ID = strings.ToLower(strings.TrimSpace(m.ID))
		switch {
		case m.ID == "":
			return nil, fmt.Errorf("marketplace without id")
		case strings.Contains(m.ID, "-"):
			return nil, fmt.Errorf("marketplace id %q must not contain '-'", m.ID)
		case !strings.Contains(m.ProductURL, "{id}"):
			return nil, fmt.Errorf("marketplace %s: product_url must contain {id}", m.ID)
		}
		if _, dup := r.entries[m.ID]; dup {
			return nil, fmt.Errorf("duplicate marketplace %s", m.ID)
		}

		e := entry{Marketplace: m}
		if m.IDPattern != "" {
			re, err := regexp.Compile(m.IDPattern)
			if err != nil {
				return nil, fmt.Errorf("marketplace %s: invalid id_pattern: %w", m.ID, err)
			}
			e.pattern = re
		}
		r.entries[m.ID] = e
	}

	return r, nil
}

// Load builds a registry from path, or from Defaults when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(Defaults)
	}
	marketplaces, err := NewLoader(path).Load()
	if err != nil {
		return nil, err
	}
	return NewRegistry(marketplaces)
}

// WithClock overrides the capture timestamp source (tests).
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Lookup returns a supported marketplace.
func (r *Registry) Lookup(id string) (Marketplace, bool) {
	e, ok := r.entries[strings.ToLower(id)]
	return e.Marketplace, ok
}

// IDs returns the supported marketplace ids.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Extract builds the product seen on a page. Display attributes come from
// observed; identity, canonical URL (when not observed) and capture time
// are filled here. Any State on observed is dropped.
func (r *Registry) Extract(marketplace, productID string, observed domain.Product) (domain.Product, error) {
	e, ok := r.entries[strings.ToLower(marketplace)]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedMarketplace, marketplace)
	}

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, fmt.Errorf("%w: missing product id", domain.ErrInvalidProduct)
	}
	if e.pattern != nil && !e.pattern.MatchString(productID) {
		return domain.Product{}, fmt.Errorf("%w: %q is not a %s product id", domain.ErrInvalidProduct, productID, e.Name)
	}

	p := domain.Product{
		Key:                  domain.ProductKey(e.ID, productID),
		Marketplace:          e.ID,
		MarketplaceProductID: productID,
		URL:                  strings.ReplaceAll(e.ProductURL, "{id}", productID),
		CapturedAt:           r.now().UnixMilli(),
	}
	p.Overlay(observed)
	return p, nil
}
