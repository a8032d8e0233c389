// Package settings persists user preferences and Earthdata credentials.
// Preferences live in a JSON file; credentials are written to a netrc file
// so command-line tools and GDAL pick them up too.
package settings

import (
	"fmt"
	"slices"

	"github.com/opengeos/opera-layer-service/internal/granule"
)

// Colormaps lists the supported raster colormap names.
var Colormaps = []string{
	"viridis", "plasma", "inferno", "magma", "cividis",
	"Greys", "Blues", "Greens", "Oranges", "Reds",
	"YlOrBr", "YlGn", "BuGn", "PuBu", "RdPu",
	"terrain", "ocean", "gist_earth",
}

// Settings holds user preferences for search defaults and layer styling.
type Settings struct {
	// FillOpacity is the footprint fill opacity in percent (0-100).
	FillOpacity int `json:"fill_opacity"`

	// OutlineWidth is the footprint outline width in pixels.
	OutlineWidth int `json:"outline_width"`

	// Colormap is the default colormap for single-band rasters.
	Colormap string `json:"colormap"`

	// AutoZoom controls whether new layers should be zoomed to.
	AutoZoom bool `json:"auto_zoom"`

	// DefaultMaxResults is the default search result limit.
	DefaultMaxResults int `json:"default_max_results"`

	// DefaultMonths is the default temporal window in months, counted
	// back from now.
	DefaultMonths int `json:"default_months"`

	// CacheDir overrides the raster download cache directory when set.
	// Applied at startup; a running server keeps its current cache.
	CacheDir string `json:"cache_dir,omitempty"`

	// Debug enables verbose client-side logging.
	Debug bool `json:"debug"`
}

// Defaults returns the default settings.
func Defaults() Settings {
	return Settings{
		FillOpacity:       20,
		OutlineWidth:      2,
		Colormap:          "viridis",
		AutoZoom:          true,
		DefaultMaxResults: 50,
		DefaultMonths:     1,
	}
}

// Validate checks that the settings values are in range.
func (s *Settings) Validate() error {
	if s.FillOpacity < 0 || s.FillOpacity > 100 {
		return fmt.Errorf("%w: fill opacity must be between 0 and 100, got %d",
			granule.ErrValidation, s.FillOpacity)
	}
	if s.OutlineWidth < 0 || s.OutlineWidth > 10 {
		return fmt.Errorf("%w: outline width must be between 0 and 10, got %d",
			granule.ErrValidation, s.OutlineWidth)
	}
	if !slices.Contains(Colormaps, s.Colormap) {
		return fmt.Errorf("%w: unknown colormap %q", granule.ErrValidation, s.Colormap)
	}
	if s.DefaultMaxResults < 1 {
		return fmt.Errorf("%w: default max results must be at least 1, got %d",
			granule.ErrValidation, s.DefaultMaxResults)
	}
	if s.DefaultMonths < 1 {
		return fmt.Errorf("%w: default months must be at least 1, got %d",
			granule.ErrValidation, s.DefaultMonths)
	}
	return nil
}
