package cmr

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/opengeos/opera-layer-service/internal/granule"
)

// TranslateItem converts a CMR UMM-G result item to a domain granule.
// Granules without any usable asset URL translate to a granule with an empty
// asset list; callers decide whether to keep or drop them.
func TranslateItem(item *UMMResultItem) (*granule.Granule, error) {
	nativeID := item.Meta.NativeID
	if nativeID == "" {
		nativeID = item.UMM.GranuleUR
	}
	if nativeID == "" {
		return nil, fmt.Errorf("granule has no native-id or GranuleUR")
	}

	g := &granule.Granule{
		NativeID:          nativeID,
		ConceptID:         item.Meta.ConceptID,
		ProducerGranuleID: item.UMM.ProducerGranuleID(),
		Product:           item.UMM.CollectionReference.ShortName,
	}

	if start, err := item.UMM.GetStartTime(); err == nil {
		g.BeginTime = start
	}
	if end, err := item.UMM.GetEndTime(); err == nil {
		g.EndTime = end
	}

	footprint, approx, err := item.UMM.GetFootprint()
	if err != nil {
		return nil, fmt.Errorf("failed to get footprint: %w", err)
	}
	g.Footprint = footprint
	g.FootprintApprox = approx

	g.Assets = translateAssets(item.UMM.RelatedUrls)

	return g, nil
}

// translateAssets converts related URLs to granule assets. S3 URLs are kept,
// duplicate file names collapse to the first occurrence.
func translateAssets(relatedURLs []RelatedURL) []granule.Asset {
	var assets []granule.Asset
	seen := make(map[string]bool)

	for _, rel := range relatedURLs {
		kind, ok := assetKind(rel.Type)
		if !ok {
			continue
		}

		name := assetName(rel.URL)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		assets = append(assets, granule.Asset{
			Name:      name,
			URL:       rel.URL,
			Kind:      kind,
			MimeType:  rel.MimeType,
			SizeBytes: assetSize(rel),
		})
	}

	return assets
}

// assetKind maps a CMR related-URL type to an asset kind.
func assetKind(urlType string) (granule.AssetKind, bool) {
	switch urlType {
	case "GET DATA", "GET DATA VIA DIRECT ACCESS":
		return granule.AssetData, true
	case "GET RELATED VISUALIZATION":
		return granule.AssetBrowse, true
	case "EXTENDED METADATA", "VIEW RELATED INFORMATION":
		return granule.AssetMetadata, true
	default:
		return "", false
	}
}

// assetName extracts the file name from an asset URL.
func assetName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// assetSize converts the reported size to bytes.
func assetSize(rel RelatedURL) int64 {
	if rel.Size == nil {
		return 0
	}
	size := *rel.Size
	switch strings.ToUpper(rel.SizeUnit) {
	case "KB":
		size *= 1 << 10
	case "MB":
		size *= 1 << 20
	case "GB":
		size *= 1 << 30
	}
	return int64(size)
}
