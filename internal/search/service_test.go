package search_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengeos/opera-layer-service/internal/cmr"
	"github.com/opengeos/opera-layer-service/internal/config"
	"github.com/opengeos/opera-layer-service/internal/granule"
	"github.com/opengeos/opera-layer-service/internal/search"
	"github.com/opengeos/opera-layer-service/internal/settings"
)

type mockCatalog struct {
	searchCalls atomic.Int32
	searchFn    func(ctx context.Context, params *cmr.SearchParams) (*cmr.SearchResult, error)
	getFn       func(ctx context.Context, granuleUR string) (*cmr.UMMResultItem, error)
}

func (m *mockCatalog) Search(ctx context.Context, params *cmr.SearchParams) (*cmr.SearchResult, error) {
	m.searchCalls.Add(1)
	return m.searchFn(ctx, params)
}

func (m *mockCatalog) GetGranule(ctx context.Context, granuleUR string) (*cmr.UMMResultItem, error) {
	if m.getFn == nil {
		return nil, granule.ErrNotFound
	}
	return m.getFn(ctx, granuleUR)
}

func testLimits() config.SearchConfig {
	return config.SearchConfig{
		DefaultMaxResults: 50,
		MaxResultsCap:     500,
		CacheSize:         16,
		CacheTTL:          time.Minute,
	}
}

func testQuery() search.Query {
	return search.Query{
		Product: "OPERA_L3_DSWX-HLS_V1",
		BBox:    []float64{-122.5, 37.5, -122.0, 38.0},
		Start:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func resultItem(nativeID string, withAssets bool) cmr.UMMResultItem {
	item := cmr.UMMResultItem{
		Meta: cmr.UMMMeta{ConceptID: "G1-POCLOUD", NativeID: nativeID},
		UMM: cmr.UMMGranule{
			GranuleUR: nativeID,
			CollectionReference: cmr.CollectionReference{
				ShortName: "OPERA_L3_DSWX-HLS_V1",
			},
			SpatialExtent: &cmr.SpatialExtent{
				HorizontalSpatialDomain: &cmr.HorizontalSpatialDomain{
					Geometry: &cmr.Geometry{
						BoundingRectangles: []cmr.BoundingRectangle{
							{
								WestBoundingCoordinate:  -122.5,
								SouthBoundingCoordinate: 37.5,
								EastBoundingCoordinate:  -122.0,
								NorthBoundingCoordinate: 38.0,
							},
						},
					},
				},
			},
		},
	}
	if withAssets {
		item.UMM.RelatedUrls = []cmr.RelatedURL{
			{URL: "https://example.com/" + nativeID + "_B01_WTR.tif", Type: "GET DATA"},
		}
	}
	return item
}

func TestService_Search(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, params *cmr.SearchParams) (*cmr.SearchResult, error) {
			require.Equal(t, []string{"OPERA_L3_DSWX-HLS_V1"}, params.ShortName)
			assert.Equal(t, "-122.5,37.5,-122,38", params.BoundingBox)
			assert.Contains(t, params.Temporal, "2024-01-01T00:00:00Z")
			assert.Equal(t, 50, params.PageSize)

			return &cmr.SearchResult{
				Hits: 2,
				Items: []cmr.UMMResultItem{
					resultItem("granule-1", true),
					resultItem("granule-2", true),
				},
			}, nil
		},
	}

	svc := search.NewService(catalog, config.DefaultProducts(), testLimits())

	granules, err := svc.Search(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, granules, 2)

	assert.Equal(t, "granule-1", granules[0].NativeID)
	assert.NotNil(t, granules[0].Footprint)
	assert.NotEmpty(t, granules[0].Assets)
}

func TestService_Search_UsesProductProvider(t *testing.T) {
	var got string
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, params *cmr.SearchParams) (*cmr.SearchResult, error) {
			got = params.Provider
			return &cmr.SearchResult{}, nil
		},
	}

	svc := search.NewService(catalog, config.DefaultProducts(), testLimits())

	// RTC-S1 is distributed by ASF, not the POCLOUD default.
	q := testQuery()
	q.Product = "OPERA_L2_RTC-S1_V1"
	_, err := svc.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "ASF", got)

	// DSWx-HLS carries no provider override; the catalog client falls
	// back to its own default.
	_, err = svc.Search(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_Search_SettingsDefaults(t *testing.T) {
	store, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)

	prefs := store.Get()
	prefs.DefaultMaxResults = 7
	prefs.DefaultMonths = 2
	require.NoError(t, store.Save(prefs))

	var got cmr.SearchParams
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, params *cmr.SearchParams) (*cmr.SearchResult, error) {
			got = *params
			return &cmr.SearchResult{}, nil
		},
	}

	svc := search.NewService(catalog, config.DefaultProducts(), testLimits()).
		WithSettings(store)

	// No explicit limit or time range: the stored preferences fill both.
	q := search.Query{
		Product: "OPERA_L3_DSWX-HLS_V1",
		BBox:    []float64{-122.5, 37.5, -122.0, 38.0},
	}
	_, err = svc.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 7, got.PageSize)

	bounds := strings.Split(got.Temporal, ",")
	require.Len(t, bounds, 2)
	start, err := time.Parse(time.RFC3339, bounds[0])
	require.NoError(t, err)
	end, err := time.Parse(time.RFC3339, bounds[1])
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), end, time.Minute)
	assert.WithinDuration(t, end.AddDate(0, -2, 0), start, time.Minute)

	// An explicit limit still wins over the stored default.
	q.MaxResults = 3
	_, err = svc.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 3, got.PageSize)
}

func TestService_Search_DropsAssetlessGranules(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ *cmr.SearchParams) (*cmr.SearchResult, error) {
			return &cmr.SearchResult{
				Hits: 3,
				Items: []cmr.UMMResultItem{
					resultItem("with-assets", true),
					resultItem("no-assets", false),
					resultItem("also-with-assets", true),
				},
			}, nil
		},
	}

	svc := search.NewService(catalog, config.DefaultProducts(), testLimits())

	granules, err := svc.Search(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, granules, 2)
	for _, g := range granules {
		assert.NotEmpty(t, g.Assets)
	}
}

func TestService_Search_CachesResults(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ *cmr.SearchParams) (*cmr.SearchResult, error) {
			return &cmr.SearchResult{
				Hits:  1,
				Items: []cmr.UMMResultItem{resultItem("granule-1", true)},
			}, nil
		},
	}

	svc := search.NewService(catalog, config.DefaultProducts(), testLimits())

	first, err := svc.Search(context.Background(), testQuery())
	require.NoError(t, err)

	second, err := svc.Search(context.Background(), testQuery())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), catalog.searchCalls.Load(), "second search should hit the cache")

	// A different query must bypass the cache.
	other := testQuery()
	other.MaxResults = 10
	_, err = svc.Search(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, int32(2), catalog.searchCalls.Load())

	// Purging drops cached results.
	svc.PurgeCache()
	_, err = svc.Search(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(3), catalog.searchCalls.Load())
}

func TestService_Search_Validation(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ *cmr.SearchParams) (*cmr.SearchResult, error) {
			t.Fatal("catalog must not be called for invalid queries")
			return nil, nil
		},
	}

	svc := search.NewService(catalog, config.DefaultProducts(), testLimits())

	tests := []struct {
		name   string
		mutate func(q *search.Query)
	}{
		{"missing product", func(q *search.Query) { q.Product = "" }},
		{"unknown product", func(q *search.Query) { q.Product = "OPERA_L9_NOPE_V1" }},
		{"short bbox", func(q *search.Query) { q.BBox = []float64{0, 0, 1} }},
		{"longitude out of range", func(q *search.Query) { q.BBox = []float64{-181, 0, 0, 1} }},
		{"latitude out of range", func(q *search.Query) { q.BBox = []float64{0, -91, 1, 0} }},
		{"west past east", func(q *search.Query) { q.BBox = []float64{10, 0, 5, 1} }},
		{"south past north", func(q *search.Query) { q.BBox = []float64{0, 10, 1, 5} }},
		{"start after end", func(q *search.Query) { q.Start, q.End = q.End, q.Start }},
		{"zero times", func(q *search.Query) { q.Start, q.End = time.Time{}, time.Time{} }},
		{"negative max results", func(q *search.Query) { q.MaxResults = -1 }},
		{"max results beyond cap", func(q *search.Query) { q.MaxResults = 501 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := testQuery()
			tt.mutate(&q)

			_, err := svc.Search(context.Background(), q)
			require.Error(t, err)
			assert.ErrorIs(t, err, granule.ErrValidation)
		})
	}

	assert.Equal(t, int32(0), catalog.searchCalls.Load())
}

func TestService_Search_PropagatesCatalogErrors(t *testing.T) {
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ *cmr.SearchParams) (*cmr.SearchResult, error) {
			return nil, granule.ErrNetwork
		},
	}

	svc := search.NewService(catalog, config.DefaultProducts(), testLimits())

	_, err := svc.Search(context.Background(), testQuery())
	require.Error(t, err)
	assert.ErrorIs(t, err, granule.ErrNetwork)
}

func TestService_Search_ErrorsNotCached(t *testing.T) {
	fail := true
	catalog := &mockCatalog{
		searchFn: func(_ context.Context, _ *cmr.SearchParams) (*cmr.SearchResult, error) {
			if fail {
				return nil, granule.ErrNetwork
			}
			return &cmr.SearchResult{
				Hits:  1,
				Items: []cmr.UMMResultItem{resultItem("granule-1", true)},
			}, nil
		},
	}

	svc := search.NewService(catalog, config.DefaultProducts(), testLimits())

	_, err := svc.Search(context.Background(), testQuery())
	require.Error(t, err)

	fail = false
	granules, err := svc.Search(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Len(t, granules, 1)
}

func TestService_Granule(t *testing.T) {
	catalog := &mockCatalog{
		getFn: func(_ context.Context, granuleUR string) (*cmr.UMMResultItem, error) {
			require.Equal(t, "granule-1", granuleUR)
			item := resultItem("granule-1", true)
			return &item, nil
		},
	}

	svc := search.NewService(catalog, config.DefaultProducts(), testLimits())

	g, err := svc.Granule(context.Background(), "granule-1")
	require.NoError(t, err)
	assert.Equal(t, "granule-1", g.NativeID)
}

func TestService_Granule_NotFound(t *testing.T) {
	svc := search.NewService(&mockCatalog{}, config.DefaultProducts(), testLimits())

	_, err := svc.Granule(context.Background(), "missing")
	assert.ErrorIs(t, err, granule.ErrNotFound)
}

func TestService_Granule_EmptyID(t *testing.T) {
	svc := search.NewService(&mockCatalog{}, config.DefaultProducts(), testLimits())

	_, err := svc.Granule(context.Background(), "")
	assert.ErrorIs(t, err, granule.ErrValidation)
}
