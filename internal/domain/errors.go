package domain

import "errors"

var (
	// ErrStoreUnavailable means the persistence substrate cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSchedulingUnavailable means a wake-up could not be armed.
	ErrSchedulingUnavailable = errors.New("scheduling unavailable")

	// ErrUnsupportedMarketplace is returned for unknown marketplace ids.
	ErrUnsupportedMarketplace = errors.New("unsupported marketplace")

	// ErrNotFound is returned when a lookup by key or id finds nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidProduct is returned for products missing their identity.
	ErrInvalidProduct = errors.New("invalid product")

	// ErrInvalidDuration is returned for non-positive sleep durations.
	ErrInvalidDuration = errors.New("invalid duration")
)
