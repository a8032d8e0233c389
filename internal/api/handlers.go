package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opengeos/opera-layer-service/internal/config"
	"github.com/opengeos/opera-layer-service/internal/earthdata"
	"github.com/opengeos/opera-layer-service/internal/fetch"
	"github.com/opengeos/opera-layer-service/internal/footprint"
	"github.com/opengeos/opera-layer-service/internal/granule"
	"github.com/opengeos/opera-layer-service/internal/raster"
	"github.com/opengeos/opera-layer-service/internal/search"
	"github.com/opengeos/opera-layer-service/internal/settings"
	"github.com/opengeos/opera-layer-service/internal/stac"
	"github.com/opengeos/opera-layer-service/internal/update"
)

// Handlers contains all HTTP handlers for the service.
type Handlers struct {
	cfg        *config.Config
	version    string
	search     *search.Service
	builder    *raster.Builder
	downloader *fetch.Downloader
	store      *settings.Store
	urs        *earthdata.Client
	checker    *update.Checker
	netrcPath  string
	logger     *slog.Logger
}

// NewHandlers creates a Handlers instance with the given dependencies.
func NewHandlers(
	cfg *config.Config,
	version string,
	searchSvc *search.Service,
	builder *raster.Builder,
	downloader *fetch.Downloader,
	store *settings.Store,
	urs *earthdata.Client,
	checker *update.Checker,
	netrcPath string,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		cfg:        cfg,
		version:    version,
		search:     searchSvc,
		builder:    builder,
		downloader: downloader,
		store:      store,
		urs:        urs,
		checker:    checker,
		netrcPath:  netrcPath,
		logger:     logger,
	}
}

// Health returns a simple health check response.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// Root returns service metadata and the available endpoints.
// GET /
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	baseURL := h.cfg.Service.BaseURL

	WriteJSON(w, http.StatusOK, map[string]any{
		"title":       h.cfg.Service.Title,
		"description": h.cfg.Service.Description,
		"version":     h.version,
		"products":    h.search.Products().Count(),
		"links": []map[string]string{
			{"rel": "self", "href": baseURL + "/"},
			{"rel": "products", "href": baseURL + "/products"},
			{"rel": "search", "href": baseURL + "/search"},
			{"rel": "settings", "href": baseURL + "/settings"},
			{"rel": "metrics", "href": baseURL + "/metrics"},
		},
	})
}

// Products lists all known OPERA products.
// GET /products
func (h *Handlers) Products(w http.ResponseWriter, r *http.Request) {
	products := h.search.Products().All()
	WriteJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

// Product returns a single product by short name.
// GET /products/{productId}
func (h *Handlers) Product(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	product := h.search.Products().Get(productID)
	if product == nil {
		WriteNotFound(w, fmt.Sprintf("product %q not found", productID))
		return
	}
	WriteJSON(w, http.StatusOK, product)
}

// Search runs a granule search. GET passes parameters in the query string,
// POST in a JSON body. Append format=stac for a STAC ItemCollection.
// GET /search
// POST /search
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var query search.Query
	var err error

	if r.Method == http.MethodPost {
		query, err = parseSearchBody(r)
	} else {
		query, err = parseSearchParams(r)
	}
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	granules, err := h.search.Search(r.Context(), query)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "stac" {
		ic := stac.CollectionFromGranules(granules, h.cfg.Service.BaseURL)
		ic.AddLink("self", h.cfg.Service.BaseURL+"/search", "application/geo+json")
		WriteGeoJSON(w, http.StatusOK, ic)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"granules": granules,
		"count":    len(granules),
	})
}

// Granule returns a single granule by its native ID.
// GET /granules/{granuleId}
func (h *Handlers) Granule(w http.ResponseWriter, r *http.Request) {
	g, err := h.search.Granule(r.Context(), chi.URLParam(r, "granuleId"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, g)
}

// GranuleSTAC returns a single granule as a STAC item.
// GET /granules/{granuleId}/stac
func (h *Handlers) GranuleSTAC(w http.ResponseWriter, r *http.Request) {
	g, err := h.search.Granule(r.Context(), chi.URLParam(r, "granuleId"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	item, err := stac.ItemFromGranule(g, h.cfg.Service.BaseURL)
	if err != nil {
		WriteInternalError(w, err.Error())
		return
	}
	WriteGeoJSON(w, http.StatusOK, item)
}

// footprintsRequest is the POST /footprints body.
type footprintsRequest struct {
	Name  string       `json:"name,omitempty"`
	Query search.Query `json:"query"`
}

// Footprints searches granules and renders their footprints as a styled
// GeoJSON layer.
// POST /footprints
func (h *Handlers) Footprints(w http.ResponseWriter, r *http.Request) {
	var req footprintsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	granules, err := h.search.Search(r.Context(), req.Query)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	fc, err := footprint.Render(req.Name, granules, h.store.Get())
	if err != nil {
		WriteInternalError(w, err.Error())
		return
	}
	WriteGeoJSON(w, http.StatusOK, fc)
}

// Layer fetches a granule asset into the cache and returns a display layer.
// POST /layers
func (h *Handlers) Layer(w http.ResponseWriter, r *http.Request) {
	var req raster.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.GranuleID == "" {
		WriteInvalidParameter(w, "granule_id is required")
		return
	}

	g, err := h.search.Granule(r.Context(), req.GranuleID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	layer, err := h.builder.Build(r.Context(), g, req)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, layer)
}

// mosaicRequest is the POST /mosaic body.
type mosaicRequest struct {
	Band  string       `json:"band"`
	Query search.Query `json:"query"`
}

// Mosaic searches granules and groups one band's rasters by UTM zone so each
// group can be mosaicked in a single projection.
// POST /mosaic
func (h *Handlers) Mosaic(w http.ResponseWriter, r *http.Request) {
	var req mosaicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	granules, err := h.search.Search(r.Context(), req.Query)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	groups, skipped, err := raster.GroupForMosaic(granules, req.Band)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"groups":  groups,
		"skipped": skipped,
	})
}

// Settings returns the current settings.
// GET /settings
func (h *Handlers) Settings(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.store.Get())
}

// UpdateSettings replaces the settings.
// PUT /settings
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var s settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if err := h.store.Save(s); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

// Colormaps lists the supported colormap names.
// GET /settings/colormaps
func (h *Handlers) Colormaps(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"colormaps": settings.Colormaps,
	})
}

// SaveCredentials stores Earthdata credentials in the netrc file.
// POST /settings/credentials
func (h *Handlers) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	var creds earthdata.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if err := earthdata.WriteNetrc(h.netrcPath, creds); err != nil {
		WriteDomainError(w, err)
		return
	}

	h.logger.Info("Earthdata credentials saved",
		slog.String("username", creds.Username),
	)
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "saved",
		"username": creds.Username,
	})
}

// VerifyCredentials checks credentials against Earthdata Login. A body with
// credentials verifies those; an empty body verifies the stored netrc entry.
// POST /settings/credentials/verify
func (h *Handlers) VerifyCredentials(w http.ResponseWriter, r *http.Request) {
	var creds earthdata.Credentials
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			WriteBadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
	}

	if creds.Username == "" {
		stored, err := earthdata.ReadNetrc(h.netrcPath)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		creds = stored
	}

	if err := h.urs.Verify(r.Context(), creds); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "verified",
		"username": creds.Username,
	})
}

// CacheStats reports the download cache contents.
// GET /cache
func (h *Handlers) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.downloader.Stats()
	if err != nil {
		WriteInternalError(w, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// ClearCache removes all cached assets and purges the search result cache.
// DELETE /cache
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.downloader.Clear()
	if err != nil {
		WriteInternalError(w, err.Error())
		return
	}
	h.search.PurgeCache()

	h.logger.Info("cache cleared", slog.Int("files_removed", removed))
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "cleared",
		"files_removed": removed,
	})
}

// CheckUpdates compares the running version (or ?current=) against the
// newest published release.
// GET /updates/check
func (h *Handlers) CheckUpdates(w http.ResponseWriter, r *http.Request) {
	current := r.URL.Query().Get("current")
	if current == "" {
		current = h.version
	}

	status, err := h.checker.Check(r.Context(), current)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// parseSearchBody decodes a search query from a JSON body.
func parseSearchBody(r *http.Request) (search.Query, error) {
	var q search.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		return q, fmt.Errorf("%w: invalid JSON body: %v", granule.ErrValidation, err)
	}
	return q, nil
}

// parseSearchParams parses a search query from URL query parameters:
// product, bbox=west,south,east,north, start, end (RFC 3339 or date only),
// max_results.
func parseSearchParams(r *http.Request) (search.Query, error) {
	var q search.Query
	params := r.URL.Query()

	q.Product = params.Get("product")

	if bbox := params.Get("bbox"); bbox != "" {
		parts := strings.Split(bbox, ",")
		if len(parts) != 4 {
			return q, fmt.Errorf("%w: bbox must have 4 comma-separated values", granule.ErrValidation)
		}
		q.BBox = make([]float64, 4)
		for i, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return q, fmt.Errorf("%w: invalid bbox value %q", granule.ErrValidation, part)
			}
			q.BBox[i] = v
		}
	}

	var err error
	if q.Start, err = parseTimeParam(params.Get("start")); err != nil {
		return q, err
	}
	if q.End, err = parseTimeParam(params.Get("end")); err != nil {
		return q, err
	}

	if raw := params.Get("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: invalid max_results %q", granule.ErrValidation, raw)
		}
		q.MaxResults = n
	}

	return q, nil
}

// parseTimeParam parses an RFC 3339 timestamp or a plain date.
func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid time %q, want RFC 3339 or YYYY-MM-DD", granule.ErrValidation, raw)
}
