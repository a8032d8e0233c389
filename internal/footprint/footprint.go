// Package footprint renders granule footprints as a styled GeoJSON layer.
package footprint

import (
	"fmt"
	"time"

	"github.com/opengeos/opera-layer-service/internal/granule"
	"github.com/opengeos/opera-layer-service/internal/settings"
	"github.com/opengeos/opera-layer-service/pkg/geojson"
)

// Royal blue, the footprint layer color.
const outlineColor = "#4169e1"

// Render builds a feature collection with one feature per granule, carrying
// a layer-level style block derived from the current settings. The feature
// count always equals the granule count.
func Render(name string, granules []*granule.Granule, prefs settings.Settings) (*geojson.FeatureCollection, error) {
	if name == "" {
		name = "OPERA footprints"
	}

	fc := geojson.NewFeatureCollection(name)
	fc.Style = map[string]any{
		"outline_color": outlineColor,
		"outline_width": prefs.OutlineWidth,
		"fill_color":    outlineColor,
		"fill_opacity":  float64(prefs.FillOpacity) / 100,
	}

	for _, g := range granules {
		if g.Footprint == nil {
			return nil, fmt.Errorf("granule %s has no footprint", g.NativeID)
		}

		f := geojson.NewFeature(g.NativeID, g.Footprint)
		f.Properties["native_id"] = g.NativeID
		f.Properties["product"] = g.Product
		if !g.BeginTime.IsZero() {
			f.Properties["begin_time"] = g.BeginTime.Format(time.RFC3339)
		}
		if !g.EndTime.IsZero() {
			f.Properties["end_time"] = g.EndTime.Format(time.RFC3339)
		}
		if g.FootprintApprox {
			f.Properties["footprint_approx"] = true
		}
		f.Properties["asset_count"] = len(g.Assets)
		for _, a := range g.Assets {
			if a.Kind == granule.AssetBrowse {
				f.Properties["browse_url"] = a.URL
				break
			}
		}

		fc.Add(f)
	}

	fc.BBox = fc.ComputeCollectionBBox()
	return fc, nil
}
