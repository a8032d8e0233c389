// Package stac renders granules as SpatioTemporal Asset Catalog items so
// STAC-aware clients can consume search results directly.
package stac

import (
	"encoding/json"
	"fmt"
	"time"

	gostac "github.com/planetlabs/go-stac"

	"github.com/opengeos/opera-layer-service/internal/granule"
)

// Version is the STAC spec version stamped on items.
const Version = "1.0.0"

// ItemCollection is a GeoJSON FeatureCollection of STAC items, the shape
// STAC API search endpoints return.
type ItemCollection struct {
	Type           string         `json:"type"` // "FeatureCollection"
	Features       []*gostac.Item `json:"features"`
	Links          []*gostac.Link `json:"links"`
	NumberReturned int            `json:"numberReturned"`
}

// NewItemCollection wraps items in a collection envelope.
func NewItemCollection(items []*gostac.Item) *ItemCollection {
	return &ItemCollection{
		Type:           "FeatureCollection",
		Features:       items,
		Links:          make([]*gostac.Link, 0),
		NumberReturned: len(items),
	}
}

// AddLink adds a link to the ItemCollection.
func (ic *ItemCollection) AddLink(rel, href, mediaType string) {
	ic.Links = append(ic.Links, &gostac.Link{
		Rel:  rel,
		Href: href,
		Type: mediaType,
	})
}

// ItemFromGranule converts a granule to a STAC Item. The item ID is the
// granule's native ID, its collection the product short name.
func ItemFromGranule(g *granule.Granule, baseURL string) (*gostac.Item, error) {
	if g.Footprint == nil {
		return nil, fmt.Errorf("granule %s has no footprint", g.NativeID)
	}

	geomJSON, err := json.Marshal(g.Footprint)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal footprint: %w", err)
	}

	bbox, err := g.Footprint.BBox()
	if err != nil {
		return nil, fmt.Errorf("failed to compute bbox: %w", err)
	}

	item := &gostac.Item{
		Version:    Version,
		Id:         g.NativeID,
		Collection: g.Product,
		Geometry:   json.RawMessage(geomJSON),
		Bbox:       bbox,
		Properties: make(map[string]any),
		Assets:     make(map[string]*gostac.Asset),
		Links:      make([]*gostac.Link, 0),
	}

	// datetime is required on every item, as an explicit null when the
	// interval properties stand in for it.
	item.Properties["datetime"] = nil
	if !g.BeginTime.IsZero() {
		item.Properties["start_datetime"] = g.BeginTime.Format(time.RFC3339)
		end := g.EndTime
		if end.IsZero() {
			end = g.BeginTime
		}
		item.Properties["end_datetime"] = end.Format(time.RFC3339)
	}
	if g.ConceptID != "" {
		item.Properties["opera:concept_id"] = g.ConceptID
	}
	if g.ProducerGranuleID != "" {
		item.Properties["opera:producer_granule_id"] = g.ProducerGranuleID
	}

	for _, a := range g.Assets {
		key := a.Name
		asset := &gostac.Asset{
			Href:  a.URL,
			Title: a.Name,
			Type:  a.MimeType,
		}
		switch a.Kind {
		case granule.AssetData:
			asset.Roles = []string{"data"}
		case granule.AssetBrowse:
			key = "thumbnail"
			asset.Roles = []string{"thumbnail"}
		case granule.AssetMetadata:
			asset.Roles = []string{"metadata"}
		}
		if _, exists := item.Assets[key]; exists {
			continue
		}
		item.Assets[key] = asset
	}

	if baseURL != "" {
		item.Links = append(item.Links,
			&gostac.Link{
				Rel:  "self",
				Href: fmt.Sprintf("%s/granules/%s/stac", baseURL, g.NativeID),
				Type: "application/geo+json",
			},
			&gostac.Link{
				Rel:  "root",
				Href: baseURL + "/",
				Type: "application/json",
			},
		)
	}

	return item, nil
}

// CollectionFromGranules converts granules to a STAC ItemCollection.
// Granules that cannot be converted are skipped.
func CollectionFromGranules(granules []*granule.Granule, baseURL string) *ItemCollection {
	items := make([]*gostac.Item, 0, len(granules))
	for _, g := range granules {
		item, err := ItemFromGranule(g, baseURL)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return NewItemCollection(items)
}
