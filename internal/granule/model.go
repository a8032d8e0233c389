// Package granule defines the domain model for OPERA granules returned by
// catalog searches.
package granule

import (
	"strings"
	"time"

	"github.com/opengeos/opera-layer-service/pkg/geojson"
)

// AssetKind classifies a granule asset by its role.
type AssetKind string

const (
	// AssetData is a downloadable data file (GeoTIFF, HDF5, ...).
	AssetData AssetKind = "data"
	// AssetBrowse is a browse/thumbnail image.
	AssetBrowse AssetKind = "browse"
	// AssetMetadata is an auxiliary metadata file.
	AssetMetadata AssetKind = "metadata"
)

// Asset is a single downloadable file belonging to a granule.
type Asset struct {
	// Name is the file name portion of the URL (e.g.
	// OPERA_L3_DSWx-HLS_T12STF_..._v1.0_B01_WTR.tif).
	Name string `json:"name"`

	URL      string    `json:"url"`
	Kind     AssetKind `json:"kind"`
	MimeType string    `json:"mime_type,omitempty"`

	// SizeBytes is the reported size, 0 when unknown.
	SizeBytes int64 `json:"size_bytes,omitempty"`
}

// IsRaster reports whether the asset looks like a loadable raster file.
func (a Asset) IsRaster() bool {
	name := strings.ToLower(a.Name)
	return strings.HasSuffix(name, ".tif") ||
		strings.HasSuffix(name, ".tiff") ||
		strings.HasSuffix(name, ".h5")
}

// Granule is a single catalog record for an OPERA product.
// Every granule returned by the search service carries a non-nil footprint
// and at least one asset.
type Granule struct {
	// NativeID is the provider's granule identifier and serves as the
	// primary key for granules throughout the service.
	NativeID string `json:"native_id"`

	ConceptID         string `json:"concept_id,omitempty"`
	ProducerGranuleID string `json:"producer_granule_id,omitempty"`

	// Product is the OPERA product short name (e.g. OPERA_L3_DSWX-HLS_V1).
	Product string `json:"product"`

	BeginTime time.Time `json:"begin_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`

	// Footprint is the granule's spatial extent in EPSG:4326.
	Footprint *geojson.Geometry `json:"footprint"`

	// FootprintApprox is true when the footprint was synthesized from a
	// bounding rectangle rather than taken from an exact boundary.
	FootprintApprox bool `json:"footprint_approx,omitempty"`

	Assets []Asset `json:"assets"`
}

// Asset returns the asset with the given file name, or nil.
func (g *Granule) Asset(name string) *Asset {
	for i := range g.Assets {
		if g.Assets[i].Name == name {
			return &g.Assets[i]
		}
	}
	return nil
}

// RasterAssets returns the granule's raster data assets.
func (g *Granule) RasterAssets() []Asset {
	var out []Asset
	for _, a := range g.Assets {
		if a.Kind == AssetData && a.IsRaster() {
			out = append(out, a)
		}
	}
	return out
}

// BandAsset returns the raster asset matching a band identifier such as
// "B01_WTR". OPERA file names end with the band identifier before the
// extension, so matching is a case-insensitive suffix check.
func (g *Granule) BandAsset(band string) *Asset {
	if band == "" {
		return nil
	}
	suffix := "_" + strings.ToLower(band) + ".tif"
	for i := range g.Assets {
		name := strings.ToLower(g.Assets[i].Name)
		if strings.HasSuffix(name, suffix) || strings.HasSuffix(name, strings.ToLower(band)+".tif") {
			return &g.Assets[i]
		}
	}
	return nil
}

// DataURLs returns the URLs of all data assets in order.
func (g *Granule) DataURLs() []string {
	urls := make([]string, 0, len(g.Assets))
	for _, a := range g.Assets {
		if a.Kind == AssetData {
			urls = append(urls, a.URL)
		}
	}
	return urls
}
