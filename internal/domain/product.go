package domain

import (
	"fmt"
	"strings"
)

// ProductState is the decision a user has recorded for a product.
// The zero value means no decision (neutral, eligible for prompts).
type ProductState string

const (
	StateNone         ProductState = ""
	StateSleepingOnIt ProductState = "sleepingOnIt"
	StateINeedThis    ProductState = "iNeedThis"
	StateDontNeedIt   ProductState = "dontNeedIt"
)

// Valid reports whether s is one of the known states.
func (s ProductState) Valid() bool {
	switch s {
	case StateNone, StateSleepingOnIt, StateINeedThis, StateDontNeedIt:
		return true
	}
	return false
}

// Terminal reports whether no prompt may ever be shown again for a product
// in this state (until the user explicitly changes their mind).
func (s ProductState) Terminal() bool {
	return s == StateINeedThis || s == StateDontNeedIt
}

// Product is a watched marketplace item.
//
// It is created on the first user action on a page, mutated in place by
// state transitions and never deleted by the normal flow.
type Product struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// Key is the composite identifier "{marketplace}-{marketplaceProductId}".
	Key string `json:"key"`

	// Marketplace is the source marketplace id. Example: amazon
	Marketplace string `json:"marketplace"`

	// MarketplaceProductID is the id of the item within its marketplace.
	MarketplaceProductID string `json:"marketplaceProductId"`

	// ─────────────────────────────
	// Display attributes
	// (refreshed from the page on every visit)
	// ─────────────────────────────

	Name  string `json:"name"`
	Price string `json:"price"` // opaque display string, ex: "$129.99"
	Image string `json:"image"`
	URL   string `json:"url"`

	// CapturedAt is when the attributes were observed (epoch millis).
	CapturedAt int64 `json:"capturedAt"`

	// ─────────────────────────────
	// Decision
	// ─────────────────────────────

	State ProductState `json:"state,omitempty"`
}

// ProductKey builds the composite key of a product.
func ProductKey(marketplace, marketplaceProductID string) string {
	return marketplace + "-" + marketplaceProductID
}

// SplitProductKey is the inverse of ProductKey. Marketplace ids never
// contain a dash, product ids may.
func SplitProductKey(key string) (marketplace, marketplaceProductID string, ok bool) {
	marketplace, marketplaceProductID, ok = strings.Cut(key, "-")
	if !ok || marketplace == "" || marketplaceProductID == "" {
		return "", "", false
	}
	return marketplace, marketplaceProductID, true
}

// Validate checks the identity fields and fills Key when it is missing.
func (p *Product) Validate() error {
	if p.Key == "" && p.Marketplace != "" && p.MarketplaceProductID != "" {
		p.Key = ProductKey(p.Marketplace, p.MarketplaceProductID)
	}
	if p.Key == "" {
		return fmt.Errorf("%w: missing product key", ErrInvalidProduct)
	}
	if p.Marketplace == "" || p.MarketplaceProductID == "" {
		m, id, ok := SplitProductKey(p.Key)
		if !ok {
			return fmt.Errorf("%w: malformed product key %q", ErrInvalidProduct, p.Key)
		}
		p.Marketplace, p.MarketplaceProductID = m, id
	}
	if !p.State.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidProduct, p.State)
	}
	return nil
}

// Overlay copies the non-empty display attributes of fresh onto p.
// Identity and State are left untouched.
func (p *Product) Overlay(fresh Product) {
	if fresh.Name != "" {
		p.Name = fresh.Name
	}
	if fresh.Price != "" {
		p.Price = fresh.Price
	}
	if fresh.Image != "" {
		p.Image = fresh.Image
	}
	if fresh.URL != "" {
		p.URL = fresh.URL
	}
	if fresh.CapturedAt != 0 {
		p.CapturedAt = fresh.CapturedAt
	}
}
