package granule

import "errors"

// Error kinds for the search and layer workflow. Components wrap these with
// context via fmt.Errorf and %w so callers can classify failures with errors.Is.
var (
	// ErrValidation is returned when search or layer parameters are malformed.
	ErrValidation = errors.New("validation error")

	// ErrAuth is returned when Earthdata credentials are missing or rejected.
	ErrAuth = errors.New("authentication error")

	// ErrNetwork is returned when the catalog or update endpoint is unreachable.
	ErrNetwork = errors.New("network error")

	// ErrFetch is returned when a granule asset is unreachable or unreadable.
	ErrFetch = errors.New("fetch error")

	// ErrNotFound is returned when a requested granule or product does not exist.
	ErrNotFound = errors.New("not found")
)
