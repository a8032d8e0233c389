// Package search implements granule search over the CMR catalog with query
// validation and an in-memory result cache.
package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/opengeos/opera-layer-service/internal/cmr"
	"github.com/opengeos/opera-layer-service/internal/granule"
)

// Query describes a granule search request. BBox is [west, south, east, north]
// in EPSG:4326. A zero MaxResults takes the configured default.
type Query struct {
	Product    string    `json:"product"`
	BBox       []float64 `json:"bbox"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	MaxResults int       `json:"max_results,omitempty"`
}

// Normalize applies defaults to unset fields. It does not validate.
func (q *Query) Normalize(defaultMaxResults int) {
	if q.MaxResults == 0 {
		q.MaxResults = defaultMaxResults
	}
}

// Validate checks the query ranges. Product membership is checked separately
// by the service against the product registry.
func (q *Query) Validate(maxResultsCap int) error {
	if q.Product == "" {
		return fmt.Errorf("%w: product is required", granule.ErrValidation)
	}

	if len(q.BBox) != 4 {
		return fmt.Errorf("%w: bbox must have 4 values [west, south, east, north], got %d",
			granule.ErrValidation, len(q.BBox))
	}

	west, south, east, north := q.BBox[0], q.BBox[1], q.BBox[2], q.BBox[3]

	if west < -180 || west > 180 || east < -180 || east > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", granule.ErrValidation)
	}
	if south < -90 || south > 90 || north < -90 || north > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", granule.ErrValidation)
	}
	if west > east {
		return fmt.Errorf("%w: bbox west (%v) must not exceed east (%v)", granule.ErrValidation, west, east)
	}
	if south > north {
		return fmt.Errorf("%w: bbox south (%v) must not exceed north (%v)", granule.ErrValidation, south, north)
	}

	if q.Start.IsZero() || q.End.IsZero() {
		return fmt.Errorf("%w: start and end times are required", granule.ErrValidation)
	}
	if q.Start.After(q.End) {
		return fmt.Errorf("%w: start time %s is after end time %s",
			granule.ErrValidation, q.Start.Format(time.RFC3339), q.End.Format(time.RFC3339))
	}

	if q.MaxResults < 1 {
		return fmt.Errorf("%w: max results must be at least 1, got %d", granule.ErrValidation, q.MaxResults)
	}
	if q.MaxResults > maxResultsCap {
		return fmt.Errorf("%w: max results must not exceed %d, got %d",
			granule.ErrValidation, maxResultsCap, q.MaxResults)
	}

	return nil
}

// CMRParams converts the query to CMR search parameters.
func (q *Query) CMRParams() *cmr.SearchParams {
	return &cmr.SearchParams{
		ShortName:   []string{q.Product},
		BoundingBox: formatBBox(q.BBox),
		Temporal: q.Start.UTC().Format(time.RFC3339) + "," +
			q.End.UTC().Format(time.RFC3339),
		PageSize: q.MaxResults,
		SortKey:  "-start_date",
	}
}

// CacheKey returns a stable hash of the query for result memoization.
func (q *Query) CacheKey() uint64 {
	var b strings.Builder
	b.WriteString(q.Product)
	b.WriteByte('|')
	for _, v := range q.BBox {
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		b.WriteByte(',')
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(q.Start.UTC().Unix(), 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(q.End.UTC().Unix(), 10))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(q.MaxResults))
	return xxhash.Sum64String(b.String())
}

// formatBBox renders a bbox as the "west,south,east,north" string CMR expects.
func formatBBox(bbox []float64) string {
	parts := make([]string, len(bbox))
	for i, v := range bbox {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
