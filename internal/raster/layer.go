// Package raster builds displayable layer descriptors for granule assets,
// including VSI paths for remote access and per-CRS mosaic groupings.
package raster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/opengeos/opera-layer-service/internal/fetch"
	"github.com/opengeos/opera-layer-service/internal/granule"
	"github.com/opengeos/opera-layer-service/internal/settings"
)

// Layer describes a raster layer ready for display by a GIS client.
type Layer struct {
	// ID is a unique identifier for this layer instance.
	ID string `json:"id"`

	// Name is the display name, derived from the asset file name.
	Name string `json:"name"`

	// GranuleID is the native ID of the source granule.
	GranuleID string `json:"granule_id"`

	// Path is the local file path of the cached asset.
	Path string `json:"path"`

	// SourceURL is the asset's remote URL.
	SourceURL string `json:"source_url"`

	// VSIPath is the GDAL virtual filesystem path for streaming access
	// without a local download.
	VSIPath string `json:"vsi_path,omitempty"`

	// Colormap is the colormap to apply to single-band rasters.
	Colormap string `json:"colormap"`

	// AutoZoom tells the client to zoom to the layer on load.
	AutoZoom bool `json:"auto_zoom"`

	// Cached is true when the asset was already in the local cache.
	Cached bool `json:"cached"`
}

// Request asks for a layer built from one asset of a granule. Band selects
// an asset by band identifier (e.g. "B01_WTR"); Asset selects by exact file
// name. Exactly one should be set; Band wins when both are. Colormap
// overrides the configured default for this layer only.
type Request struct {
	GranuleID string `json:"granule_id"`
	Band      string `json:"band,omitempty"`
	Asset     string `json:"asset,omitempty"`
	Colormap  string `json:"colormap,omitempty"`
}

// Builder turns granule assets into display layers, downloading them into
// the shared cache.
type Builder struct {
	downloader *fetch.Downloader
	store      *settings.Store
	logger     *slog.Logger
}

// NewBuilder creates a layer builder.
func NewBuilder(downloader *fetch.Downloader, store *settings.Store) *Builder {
	return &Builder{
		downloader: downloader,
		store:      store,
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger for the builder.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build fetches the requested asset and returns a layer descriptor styled
// from the current settings.
func (b *Builder) Build(ctx context.Context, g *granule.Granule, req Request) (*Layer, error) {
	asset, err := selectAsset(g, req)
	if err != nil {
		return nil, err
	}

	colormap, err := resolveColormap(req.Colormap, b.store.Get().Colormap)
	if err != nil {
		return nil, err
	}

	path, cached, err := b.downloader.Fetch(ctx, *asset)
	if err != nil {
		return nil, err
	}

	prefs := b.store.Get()
	layer := &Layer{
		ID:        uuid.NewString(),
		Name:      layerName(asset.Name),
		GranuleID: g.NativeID,
		Path:      path,
		SourceURL: asset.URL,
		VSIPath:   VSIPath(asset.URL),
		Colormap:  colormap,
		AutoZoom:  prefs.AutoZoom,
		Cached:    cached,
	}

	b.logger.InfoContext(ctx, "layer built",
		slog.String("layer_id", layer.ID),
		slog.String("granule_id", g.NativeID),
		slog.String("asset", asset.Name),
		slog.Bool("cached", cached),
	)
	return layer, nil
}

// selectAsset resolves the request to a single raster asset of the granule.
func selectAsset(g *granule.Granule, req Request) (*granule.Asset, error) {
	if req.Band != "" {
		asset := g.BandAsset(req.Band)
		if asset == nil {
			return nil, fmt.Errorf("%w: granule %s has no band %q", granule.ErrNotFound, g.NativeID, req.Band)
		}
		return asset, nil
	}

	if req.Asset != "" {
		asset := g.Asset(req.Asset)
		if asset == nil {
			return nil, fmt.Errorf("%w: granule %s has no asset %q", granule.ErrNotFound, g.NativeID, req.Asset)
		}
		return asset, nil
	}

	// Default to the first raster asset.
	rasters := g.RasterAssets()
	if len(rasters) == 0 {
		return nil, fmt.Errorf("%w: granule %s has no raster assets", granule.ErrNotFound, g.NativeID)
	}
	return &rasters[0], nil
}

// resolveColormap picks the request override when present, validated against
// the known colormap names, and the configured default otherwise.
func resolveColormap(requested, configured string) (string, error) {
	if requested == "" {
		return configured, nil
	}
	for _, name := range settings.Colormaps {
		if name == requested {
			return requested, nil
		}
	}
	return "", fmt.Errorf("%w: unknown colormap %q", granule.ErrValidation, requested)
}

// layerName derives a display name from an asset file name by dropping the
// extension.
func layerName(fileName string) string {
	if idx := strings.LastIndex(fileName, "."); idx > 0 {
		return fileName[:idx]
	}
	return fileName
}

// VSIPath converts a remote URL to a GDAL virtual filesystem path.
// s3:// URLs map to /vsis3/, http(s):// to /vsicurl/. Other schemes
// return the URL unchanged.
func VSIPath(rawURL string) string {
	switch {
	case strings.HasPrefix(rawURL, "s3://"):
		return "/vsis3/" + strings.TrimPrefix(rawURL, "s3://")
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		return "/vsicurl/" + rawURL
	default:
		return rawURL
	}
}
