package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/opengeos/opera-layer-service/internal/cmr"
	"github.com/opengeos/opera-layer-service/internal/config"
	"github.com/opengeos/opera-layer-service/internal/granule"
	"github.com/opengeos/opera-layer-service/internal/metrics"
	"github.com/opengeos/opera-layer-service/internal/settings"
)

// Catalog is the granule catalog the service searches against. *cmr.Client
// satisfies it; tests substitute a mock.
type Catalog interface {
	Search(ctx context.Context, params *cmr.SearchParams) (*cmr.SearchResult, error)
	GetGranule(ctx context.Context, granuleUR string) (*cmr.UMMResultItem, error)
}

// Service performs validated granule searches with an expiring LRU result
// cache keyed by query hash.
type Service struct {
	catalog  Catalog
	products *config.ProductRegistry
	limits   config.SearchConfig
	cache    *expirable.LRU[uint64, []*granule.Granule]
	store    *settings.Store
	logger   *slog.Logger
}

// NewService creates a search service.
func NewService(catalog Catalog, products *config.ProductRegistry, limits config.SearchConfig) *Service {
	return &Service{
		catalog:  catalog,
		products: products,
		limits:   limits,
		cache:    expirable.NewLRU[uint64, []*granule.Granule](limits.CacheSize, nil, limits.CacheTTL),
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger for the service.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// WithSettings makes the service consult the settings store for per-user
// search defaults (result limit and temporal window) at request time.
func (s *Service) WithSettings(store *settings.Store) *Service {
	s.store = store
	return s
}

// Search validates the query and returns matching granules, most recent
// first. Results are served from the cache when an identical query was run
// within the cache TTL. Granules without a footprint or without any asset
// are dropped.
func (s *Service) Search(ctx context.Context, q Query) ([]*granule.Granule, error) {
	defaultMax := s.limits.DefaultMaxResults
	if s.store != nil {
		prefs := s.store.Get()
		if prefs.DefaultMaxResults > 0 {
			defaultMax = prefs.DefaultMaxResults
		}
		if q.Start.IsZero() && q.End.IsZero() && prefs.DefaultMonths > 0 {
			q.End = time.Now().UTC()
			q.Start = q.End.AddDate(0, -prefs.DefaultMonths, 0)
		}
	}
	q.Normalize(defaultMax)

	if err := q.Validate(s.limits.MaxResultsCap); err != nil {
		return nil, err
	}
	product := s.products.Get(q.Product)
	if product == nil {
		return nil, fmt.Errorf("%w: unknown product %q", granule.ErrValidation, q.Product)
	}

	key := q.CacheKey()
	if cached, ok := s.cache.Get(key); ok {
		metrics.IncSearchCacheHit()
		s.logger.DebugContext(ctx, "search cache hit",
			slog.String("product", q.Product),
			slog.Int("results", len(cached)),
		)
		return cached, nil
	}
	metrics.IncSearchCacheMiss()

	params := q.CMRParams()
	// Some OPERA collections live at a different DAAC than the client
	// default.
	params.Provider = product.Provider

	start := time.Now()
	result, err := s.catalog.Search(ctx, params)
	metrics.ObserveUpstreamLatency("cmr", time.Since(start).Seconds())
	if err != nil {
		metrics.IncSearch(q.Product, "error")
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	granules := make([]*granule.Granule, 0, len(result.Items))
	dropped := 0
	for i := range result.Items {
		g, err := cmr.TranslateItem(&result.Items[i])
		if err != nil {
			s.logger.WarnContext(ctx, "skipping untranslatable granule",
				slog.String("concept_id", result.Items[i].Meta.ConceptID),
				slog.String("error", err.Error()),
			)
			dropped++
			continue
		}
		if g.Footprint == nil || len(g.Assets) == 0 {
			dropped++
			continue
		}
		granules = append(granules, g)
	}

	metrics.IncSearch(q.Product, "ok")
	s.logger.InfoContext(ctx, "catalog search completed",
		slog.String("product", q.Product),
		slog.Int("hits", result.Hits),
		slog.Int("returned", len(granules)),
		slog.Int("dropped", dropped),
	)

	s.cache.Add(key, granules)
	return granules, nil
}

// Granule returns a single granule by its native ID.
func (s *Service) Granule(ctx context.Context, nativeID string) (*granule.Granule, error) {
	if nativeID == "" {
		return nil, fmt.Errorf("%w: granule id is required", granule.ErrValidation)
	}

	item, err := s.catalog.GetGranule(ctx, nativeID)
	if err != nil {
		return nil, err
	}

	g, err := cmr.TranslateItem(item)
	if err != nil {
		return nil, fmt.Errorf("failed to translate granule %s: %w", nativeID, err)
	}
	return g, nil
}

// Products returns the product registry backing this service.
func (s *Service) Products() *config.ProductRegistry {
	return s.products
}

// PurgeCache drops all cached search results.
func (s *Service) PurgeCache() {
	s.cache.Purge()
}
