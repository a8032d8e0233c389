package cmr

import (
	"fmt"
	"time"

	"github.com/opengeos/opera-layer-service/pkg/geojson"
)

// UMMSearchResponse represents a CMR UMM-G search response.
type UMMSearchResponse struct {
	Hits  int             `json:"hits"`
	Took  int             `json:"took"`
	Items []UMMResultItem `json:"items"`
}

// UMMResultItem wraps a UMM granule with catalog metadata.
type UMMResultItem struct {
	Meta UMMMeta    `json:"meta"`
	UMM  UMMGranule `json:"umm"`
}

// UMMMeta contains metadata about a CMR result item.
type UMMMeta struct {
	ConceptID    string    `json:"concept-id"`
	RevisionID   int       `json:"revision-id"`
	NativeID     string    `json:"native-id"`
	ProviderID   string    `json:"provider-id"`
	FormatString string    `json:"format"`
	RevisionDate time.Time `json:"revision-date"`
}

// UMMGranule represents a UMM-G (Unified Metadata Model for Granules) record.
type UMMGranule struct {
	GranuleUR           string              `json:"GranuleUR"`
	CollectionReference CollectionReference `json:"CollectionReference"`
	RelatedUrls         []RelatedURL        `json:"RelatedUrls,omitempty"`
	DataGranule         *DataGranule        `json:"DataGranule,omitempty"`
	TemporalExtent      *TemporalExtent     `json:"TemporalExtent,omitempty"`
	SpatialExtent       *SpatialExtent      `json:"SpatialExtent,omitempty"`
	CloudCover          *float64            `json:"CloudCover,omitempty"`
}

// CollectionReference identifies the parent collection.
type CollectionReference struct {
	ShortName string `json:"ShortName"`
	Version   string `json:"Version"`
}

// RelatedURL represents a URL related to the granule.
type RelatedURL struct {
	URL         string   `json:"URL"`
	Type        string   `json:"Type"` // e.g., "GET DATA", "GET RELATED VISUALIZATION"
	Subtype     string   `json:"Subtype,omitempty"`
	Description string   `json:"Description,omitempty"`
	Format      string   `json:"Format,omitempty"`
	MimeType    string   `json:"MimeType,omitempty"`
	Size        *float64 `json:"Size,omitempty"`
	SizeUnit    string   `json:"SizeUnit,omitempty"`
}

// DataGranule contains data granule information.
type DataGranule struct {
	DayNightFlag       string       `json:"DayNightFlag,omitempty"`
	ProductionDateTime string       `json:"ProductionDateTime,omitempty"`
	Identifiers        []Identifier `json:"Identifiers,omitempty"`
}

// Identifier contains identifier information.
type Identifier struct {
	Identifier     string `json:"Identifier"`
	IdentifierType string `json:"IdentifierType"` // e.g., "ProducerGranuleId"
}

// TemporalExtent contains temporal information.
type TemporalExtent struct {
	RangeDateTime  *RangeDateTime `json:"RangeDateTime,omitempty"`
	SingleDateTime string         `json:"SingleDateTime,omitempty"`
}

// RangeDateTime represents a time range.
type RangeDateTime struct {
	BeginningDateTime string `json:"BeginningDateTime"`
	EndingDateTime    string `json:"EndingDateTime"`
}

// SpatialExtent contains spatial information.
type SpatialExtent struct {
	HorizontalSpatialDomain *HorizontalSpatialDomain `json:"HorizontalSpatialDomain,omitempty"`
}

// HorizontalSpatialDomain contains horizontal spatial domain information.
type HorizontalSpatialDomain struct {
	Geometry *Geometry `json:"Geometry,omitempty"`
}

// Geometry contains geometry information.
type Geometry struct {
	GPolygons          []GPolygon          `json:"GPolygons,omitempty"`
	BoundingRectangles []BoundingRectangle `json:"BoundingRectangles,omitempty"`
	Points             []Point             `json:"Points,omitempty"`
}

// GPolygon represents a polygon geometry.
type GPolygon struct {
	Boundary Boundary `json:"Boundary"`
}

// Boundary contains boundary points.
type Boundary struct {
	Points []Point `json:"Points"`
}

// Point represents a geographic point.
type Point struct {
	Longitude float64 `json:"Longitude"`
	Latitude  float64 `json:"Latitude"`
}

// BoundingRectangle represents a bounding box.
type BoundingRectangle struct {
	WestBoundingCoordinate  float64 `json:"WestBoundingCoordinate"`
	NorthBoundingCoordinate float64 `json:"NorthBoundingCoordinate"`
	EastBoundingCoordinate  float64 `json:"EastBoundingCoordinate"`
	SouthBoundingCoordinate float64 `json:"SouthBoundingCoordinate"`
}

// ProducerGranuleID returns the producer granule identifier, if present.
func (g *UMMGranule) ProducerGranuleID() string {
	if g.DataGranule == nil {
		return ""
	}
	for _, id := range g.DataGranule.Identifiers {
		if id.IdentifierType == "ProducerGranuleId" {
			return id.Identifier
		}
	}
	return ""
}

// GetStartTime returns the start time of the granule.
func (g *UMMGranule) GetStartTime() (time.Time, error) {
	if g.TemporalExtent == nil {
		return time.Time{}, nil
	}

	if g.TemporalExtent.RangeDateTime != nil && g.TemporalExtent.RangeDateTime.BeginningDateTime != "" {
		return parseTime(g.TemporalExtent.RangeDateTime.BeginningDateTime)
	}

	if g.TemporalExtent.SingleDateTime != "" {
		return parseTime(g.TemporalExtent.SingleDateTime)
	}

	return time.Time{}, nil
}

// GetEndTime returns the end time of the granule.
func (g *UMMGranule) GetEndTime() (time.Time, error) {
	if g.TemporalExtent == nil {
		return time.Time{}, nil
	}

	if g.TemporalExtent.RangeDateTime != nil && g.TemporalExtent.RangeDateTime.EndingDateTime != "" {
		return parseTime(g.TemporalExtent.RangeDateTime.EndingDateTime)
	}

	if g.TemporalExtent.SingleDateTime != "" {
		return parseTime(g.TemporalExtent.SingleDateTime)
	}

	return time.Time{}, nil
}

// GetFootprint returns the granule footprint as a GeoJSON geometry.
// Exact polygon boundaries are preferred; bounding rectangles and points are
// used as fallbacks. The second return value is true when the footprint is an
// approximation derived from a bounding rectangle or a single point.
func (g *UMMGranule) GetFootprint() (*geojson.Geometry, bool, error) {
	if g.SpatialExtent == nil || g.SpatialExtent.HorizontalSpatialDomain == nil {
		return nil, false, nil
	}

	geom := g.SpatialExtent.HorizontalSpatialDomain.Geometry
	if geom == nil {
		return nil, false, nil
	}

	if len(geom.GPolygons) > 0 {
		points := geom.GPolygons[0].Boundary.Points
		if len(points) >= 3 {
			ring := make([][]float64, len(points))
			for i, pt := range points {
				ring[i] = []float64{pt.Longitude, pt.Latitude}
			}
			poly, err := geojson.NewPolygonFromRing(ring)
			if err != nil {
				return nil, false, fmt.Errorf("invalid granule polygon: %w", err)
			}
			return poly, false, nil
		}
	}

	if len(geom.BoundingRectangles) > 0 {
		rect := geom.BoundingRectangles[0]
		poly, err := geojson.NewPolygonFromBBox([]float64{
			rect.WestBoundingCoordinate,
			rect.SouthBoundingCoordinate,
			rect.EastBoundingCoordinate,
			rect.NorthBoundingCoordinate,
		})
		if err != nil {
			return nil, false, fmt.Errorf("invalid granule bounding rectangle: %w", err)
		}
		return poly, true, nil
	}

	if len(geom.Points) > 0 {
		pt := geom.Points[0]
		point, err := geojson.NewPoint(pt.Longitude, pt.Latitude)
		if err != nil {
			return nil, false, fmt.Errorf("invalid granule point: %w", err)
		}
		return point, true, nil
	}

	return nil, false, nil
}

// parseTime parses a CMR timestamp string.
func parseTime(s string) (time.Time, error) {
	// CMR uses ISO 8601 format
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05.000Z",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %s", s)
}
