package geojson

import (
	"encoding/json"
	"testing"
)

func TestComputeBBox_Polygon(t *testing.T) {
	geom, err := NewPolygonFromRing([][]float64{
		{-122.5, 37.5},
		{-122.0, 37.5},
		{-122.0, 38.0},
		{-122.5, 38.0},
	})
	if err != nil {
		t.Fatalf("NewPolygonFromRing() error = %v", err)
	}

	bbox, err := geom.BBox()
	if err != nil {
		t.Fatalf("BBox() error = %v", err)
	}

	want := []float64{-122.5, 37.5, -122.0, 38.0}
	for i := range want {
		if bbox[i] != want[i] {
			t.Errorf("bbox[%d] = %v, want %v", i, bbox[i], want[i])
		}
	}
}

func TestComputeBBox_Point(t *testing.T) {
	geom := &Geometry{
		Type:        "Point",
		Coordinates: json.RawMessage(`[-122.25, 37.75]`),
	}

	bbox, err := geom.BBox()
	if err != nil {
		t.Fatalf("BBox() error = %v", err)
	}

	want := []float64{-122.25, 37.75, -122.25, 37.75}
	for i := range want {
		if bbox[i] != want[i] {
			t.Errorf("bbox[%d] = %v, want %v", i, bbox[i], want[i])
		}
	}
}

func TestComputeBBox_Unsupported(t *testing.T) {
	geom := &Geometry{
		Type:        "LineString",
		Coordinates: json.RawMessage(`[[0,0],[1,1]]`),
	}

	if _, err := geom.BBox(); err == nil {
		t.Error("BBox() expected error for LineString")
	}
}

func TestNewPolygonFromRing_ClosesRing(t *testing.T) {
	geom, err := NewPolygonFromRing([][]float64{
		{0, 0},
		{1, 0},
		{1, 1},
	})
	if err != nil {
		t.Fatalf("NewPolygonFromRing() error = %v", err)
	}

	coords, err := geom.Polygon()
	if err != nil {
		t.Fatalf("Polygon() error = %v", err)
	}

	ring := coords[0]
	if len(ring) != 4 {
		t.Fatalf("ring length = %d, want 4 (closed)", len(ring))
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] {
		t.Error("ring is not closed")
	}
}

func TestNewPolygonFromRing_TooFewPoints(t *testing.T) {
	if _, err := NewPolygonFromRing([][]float64{{0, 0}, {1, 1}}); err == nil {
		t.Error("NewPolygonFromRing() expected error for 2 points")
	}
}

func TestNewPolygonFromBBox(t *testing.T) {
	geom, err := NewPolygonFromBBox([]float64{-10, -5, 10, 5})
	if err != nil {
		t.Fatalf("NewPolygonFromBBox() error = %v", err)
	}

	if geom.Type != "Polygon" {
		t.Errorf("type = %s, want Polygon", geom.Type)
	}

	bbox, err := geom.BBox()
	if err != nil {
		t.Fatalf("BBox() error = %v", err)
	}
	want := []float64{-10, -5, 10, 5}
	for i := range want {
		if bbox[i] != want[i] {
			t.Errorf("bbox[%d] = %v, want %v", i, bbox[i], want[i])
		}
	}
}

func TestNewPolygonFromBBox_Invalid(t *testing.T) {
	if _, err := NewPolygonFromBBox([]float64{0, 0, 1}); err == nil {
		t.Error("NewPolygonFromBBox() expected error for 3 values")
	}
}

func TestFeatureCollection(t *testing.T) {
	fc := NewFeatureCollection("footprints")

	a, _ := NewPolygonFromBBox([]float64{0, 0, 1, 1})
	b, _ := NewPolygonFromBBox([]float64{2, 2, 3, 3})

	fc.Add(NewFeature("granule-a", a))
	fc.Add(NewFeature("granule-b", b))

	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}

	bbox := fc.ComputeCollectionBBox()
	want := []float64{0, 0, 3, 3}
	for i := range want {
		if bbox[i] != want[i] {
			t.Errorf("bbox[%d] = %v, want %v", i, bbox[i], want[i])
		}
	}
}

func TestFeatureCollection_EmptyBBox(t *testing.T) {
	fc := NewFeatureCollection("empty")
	if bbox := fc.ComputeCollectionBBox(); bbox != nil {
		t.Errorf("ComputeCollectionBBox() = %v, want nil", bbox)
	}
}

func TestFeatureCollection_MarshalRoundTrip(t *testing.T) {
	fc := NewFeatureCollection("footprints")
	fc.Style = map[string]any{"fill_color": "#4169e1", "fill_opacity": 0.2}

	geom, _ := NewPolygonFromBBox([]float64{-1, -1, 1, 1})
	f := NewFeature("g1", geom)
	f.Properties["product"] = "OPERA_L3_DSWX-HLS_V1"
	fc.Add(f)

	data, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded FeatureCollection
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded.Type != "FeatureCollection" {
		t.Errorf("type = %s", decoded.Type)
	}
	if decoded.Name != "footprints" {
		t.Errorf("name = %s", decoded.Name)
	}
	if len(decoded.Features) != 1 {
		t.Fatalf("features = %d, want 1", len(decoded.Features))
	}
	if decoded.Features[0].ID != "g1" {
		t.Errorf("feature id = %s", decoded.Features[0].ID)
	}
	if decoded.Style["fill_color"] != "#4169e1" {
		t.Errorf("style fill_color = %v", decoded.Style["fill_color"])
	}
}
