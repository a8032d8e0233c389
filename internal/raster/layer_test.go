package raster_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengeos/opera-layer-service/internal/fetch"
	"github.com/opengeos/opera-layer-service/internal/granule"
	"github.com/opengeos/opera-layer-service/internal/raster"
	"github.com/opengeos/opera-layer-service/internal/settings"
)

func testBuilder(t *testing.T) (*raster.Builder, *fetch.Downloader) {
	t.Helper()

	downloader, err := fetch.NewDownloader(fetch.Config{
		CacheDir:        t.TempDir(),
		Timeout:         5 * time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
	require.NoError(t, err)

	store, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)

	return raster.NewBuilder(downloader, store), downloader
}

func layerGranule(serverURL string) *granule.Granule {
	return &granule.Granule{
		NativeID: "OPERA_L3_DSWx-HLS_T10SEG_20240115T185931Z_v1.0",
		Product:  "OPERA_L3_DSWX-HLS_V1",
		Assets: []granule.Asset{
			{Name: "scene_B01_WTR.tif", URL: serverURL + "/scene_B01_WTR.tif", Kind: granule.AssetData},
			{Name: "scene_B02_BWTR.tif", URL: serverURL + "/scene_B02_BWTR.tif", Kind: granule.AssetData},
			{Name: "scene.png", URL: serverURL + "/scene.png", Kind: granule.AssetBrowse},
		},
	}
}

func TestBuilder_Build(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("raster bytes"))
	}))
	defer server.Close()

	builder, downloader := testBuilder(t)
	g := layerGranule(server.URL)

	layer, err := builder.Build(context.Background(), g, raster.Request{Band: "B02_BWTR"})
	require.NoError(t, err)

	assert.NotEmpty(t, layer.ID)
	assert.Equal(t, "scene_B02_BWTR", layer.Name)
	assert.Equal(t, g.NativeID, layer.GranuleID)
	assert.Equal(t, filepath.Join(downloader.CacheDir(), "scene_B02_BWTR.tif"), layer.Path)
	assert.Equal(t, "/vsicurl/"+server.URL+"/scene_B02_BWTR.tif", layer.VSIPath)
	assert.Equal(t, "viridis", layer.Colormap)
	assert.True(t, layer.AutoZoom)
	assert.False(t, layer.Cached)
}

func TestBuilder_Build_DefaultsToFirstRaster(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("raster bytes"))
	}))
	defer server.Close()

	builder, _ := testBuilder(t)

	layer, err := builder.Build(context.Background(), layerGranule(server.URL), raster.Request{})
	require.NoError(t, err)
	assert.Equal(t, "scene_B01_WTR", layer.Name)
}

func TestBuilder_Build_CachedReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("raster bytes"))
	}))
	defer server.Close()

	builder, _ := testBuilder(t)
	g := layerGranule(server.URL)

	first, err := builder.Build(context.Background(), g, raster.Request{Band: "B01_WTR"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := builder.Build(context.Background(), g, raster.Request{Band: "B01_WTR"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Path, second.Path)
	assert.NotEqual(t, first.ID, second.ID, "each layer instance gets its own ID")
}

func TestBuilder_Build_ColormapOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("raster bytes"))
	}))
	defer server.Close()

	builder, _ := testBuilder(t)
	g := layerGranule(server.URL)

	layer, err := builder.Build(context.Background(), g, raster.Request{Band: "B01_WTR", Colormap: "magma"})
	require.NoError(t, err)
	assert.Equal(t, "magma", layer.Colormap)

	_, err = builder.Build(context.Background(), g, raster.Request{Band: "B01_WTR", Colormap: "rainbow"})
	assert.ErrorIs(t, err, granule.ErrValidation)
}

func TestBuilder_Build_UnknownBand(t *testing.T) {
	builder, _ := testBuilder(t)

	_, err := builder.Build(context.Background(), layerGranule("https://example.com"), raster.Request{Band: "B99_NOPE"})
	assert.ErrorIs(t, err, granule.ErrNotFound)
}

func TestBuilder_Build_FetchFailureLeavesNoFile(t *testing.T) {
	builder, downloader := testBuilder(t)

	g := &granule.Granule{
		NativeID: "g1",
		Assets: []granule.Asset{
			{Name: "gone.tif", URL: "http://127.0.0.1:1/gone.tif", Kind: granule.AssetData},
		},
	}

	_, err := builder.Build(context.Background(), g, raster.Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, granule.ErrFetch)

	stats, err := downloader.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Files)
}
