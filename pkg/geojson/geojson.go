// Package geojson provides GeoJSON geometry and feature types used for
// granule footprints and vector layers.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
)

// Geometry represents a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Point returns the coordinates as a Point [lon, lat].
// Returns error if geometry is not a Point.
func (g *Geometry) Point() ([]float64, error) {
	if g.Type != "Point" {
		return nil, fmt.Errorf("geometry is not a Point, got %s", g.Type)
	}
	var coords []float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Point coordinates: %w", err)
	}
	if len(coords) < 2 {
		return nil, fmt.Errorf("invalid Point coordinates: expected at least 2 values, got %d", len(coords))
	}
	return coords, nil
}

// Polygon returns the coordinates as a Polygon [][][lon, lat].
// Returns error if geometry is not a Polygon.
func (g *Geometry) Polygon() ([][][]float64, error) {
	if g.Type != "Polygon" {
		return nil, fmt.Errorf("geometry is not a Polygon, got %s", g.Type)
	}
	var coords [][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Polygon coordinates: %w", err)
	}
	return coords, nil
}

// MultiPolygon returns the coordinates as a MultiPolygon [][][][lon, lat].
// Returns error if geometry is not a MultiPolygon.
func (g *Geometry) MultiPolygon() ([][][][]float64, error) {
	if g.Type != "MultiPolygon" {
		return nil, fmt.Errorf("geometry is not a MultiPolygon, got %s", g.Type)
	}
	var coords [][][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal MultiPolygon coordinates: %w", err)
	}
	return coords, nil
}

// BBox computes the bounding box of the geometry.
// Returns [west, south, east, north].
func (g *Geometry) BBox() ([]float64, error) {
	return ComputeBBox(g)
}

// ComputeBBox computes the bounding box of a geometry.
// Returns [west, south, east, north].
func ComputeBBox(g *Geometry) ([]float64, error) {
	if g == nil {
		return nil, fmt.Errorf("geometry is nil")
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)

	extend := func(point []float64) {
		if len(point) < 2 {
			return
		}
		minLon = math.Min(minLon, point[0])
		maxLon = math.Max(maxLon, point[0])
		minLat = math.Min(minLat, point[1])
		maxLat = math.Max(maxLat, point[1])
	}

	switch g.Type {
	case "Point":
		coords, err := g.Point()
		if err != nil {
			return nil, err
		}
		return []float64{coords[0], coords[1], coords[0], coords[1]}, nil

	case "Polygon":
		coords, err := g.Polygon()
		if err != nil {
			return nil, err
		}
		for _, ring := range coords {
			for _, point := range ring {
				extend(point)
			}
		}

	case "MultiPolygon":
		coords, err := g.MultiPolygon()
		if err != nil {
			return nil, err
		}
		for _, polygon := range coords {
			for _, ring := range polygon {
				for _, point := range ring {
					extend(point)
				}
			}
		}

	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}

	if math.IsInf(minLon, 0) || math.IsInf(minLat, 0) {
		return nil, fmt.Errorf("failed to compute bounding box: no valid coordinates found")
	}

	return []float64{minLon, minLat, maxLon, maxLat}, nil
}

// NewPoint creates a point geometry from a [lon, lat] position.
func NewPoint(lon, lat float64) (*Geometry, error) {
	coordsJSON, err := json.Marshal([]float64{lon, lat})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal point coordinates: %w", err)
	}

	return &Geometry{
		Type:        "Point",
		Coordinates: coordsJSON,
	}, nil
}

// NewPolygonFromBBox creates a polygon geometry from a bounding box.
// bbox should be [west, south, east, north].
func NewPolygonFromBBox(bbox []float64) (*Geometry, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values [west, south, east, north], got %d", len(bbox))
	}

	west, south, east, north := bbox[0], bbox[1], bbox[2], bbox[3]

	coords := [][][]float64{
		{
			{west, south},
			{east, south},
			{east, north},
			{west, north},
			{west, south}, // Close the ring
		},
	}

	coordsJSON, err := json.Marshal(coords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon coordinates: %w", err)
	}

	return &Geometry{
		Type:        "Polygon",
		Coordinates: coordsJSON,
	}, nil
}

// NewPolygonFromRing creates a polygon geometry from a single exterior ring
// of [lon, lat] points. The ring is closed if the first and last points differ.
func NewPolygonFromRing(ring [][]float64) (*Geometry, error) {
	if len(ring) < 3 {
		return nil, fmt.Errorf("polygon ring must have at least 3 points, got %d", len(ring))
	}

	first := ring[0]
	last := ring[len(ring)-1]
	if len(first) < 2 || len(last) < 2 {
		return nil, fmt.Errorf("polygon ring contains invalid points")
	}
	if first[0] != last[0] || first[1] != last[1] {
		closed := make([][]float64, 0, len(ring)+1)
		closed = append(closed, ring...)
		closed = append(closed, first)
		ring = closed
	}

	coordsJSON, err := json.Marshal([][][]float64{ring})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon coordinates: %w", err)
	}

	return &Geometry{
		Type:        "Polygon",
		Coordinates: coordsJSON,
	}, nil
}

// Feature represents a GeoJSON feature with arbitrary properties.
type Feature struct {
	Type       string         `json:"type"` // "Feature"
	ID         string         `json:"id,omitempty"`
	Geometry   *Geometry      `json:"geometry"`
	BBox       []float64      `json:"bbox,omitempty"`
	Properties map[string]any `json:"properties"`
}

// NewFeature creates a feature with the given ID and geometry.
func NewFeature(id string, geom *Geometry) *Feature {
	return &Feature{
		Type:       "Feature",
		ID:         id,
		Geometry:   geom,
		Properties: make(map[string]any),
	}
}

// FeatureCollection represents a GeoJSON feature collection.
// Foreign members (name, style) are allowed by RFC 7946 section 6.1 and
// are used to carry layer-level metadata.
type FeatureCollection struct {
	Type     string         `json:"type"` // "FeatureCollection"
	Name     string         `json:"name,omitempty"`
	BBox     []float64      `json:"bbox,omitempty"`
	Style    map[string]any `json:"style,omitempty"`
	Features []*Feature     `json:"features"`
}

// NewFeatureCollection creates an empty feature collection with the given name.
func NewFeatureCollection(name string) *FeatureCollection {
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Name:     name,
		Features: make([]*Feature, 0),
	}
}

// Add appends a feature to the collection.
func (fc *FeatureCollection) Add(f *Feature) {
	fc.Features = append(fc.Features, f)
}

// ComputeCollectionBBox computes the combined bounding box of all features
// in the collection. Features without a computable bbox are skipped.
func (fc *FeatureCollection) ComputeCollectionBBox() []float64 {
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)

	found := false
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		bbox, err := ComputeBBox(f.Geometry)
		if err != nil {
			continue
		}
		minLon = math.Min(minLon, bbox[0])
		minLat = math.Min(minLat, bbox[1])
		maxLon = math.Max(maxLon, bbox[2])
		maxLat = math.Max(maxLat, bbox[3])
		found = true
	}

	if !found {
		return nil
	}
	return []float64{minLon, minLat, maxLon, maxLat}
}
