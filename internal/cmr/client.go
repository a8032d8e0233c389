// Package cmr provides a client for NASA's Common Metadata Repository (CMR) API.
package cmr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opengeos/opera-layer-service/internal/granule"
)

const (
	// DefaultBaseURL is the default CMR API base URL.
	DefaultBaseURL = "https://cmr.earthdata.nasa.gov/search"

	// DefaultProvider is the default CMR provider for OPERA data.
	DefaultProvider = "POCLOUD"

	// DefaultPageSize is the default number of results per page.
	DefaultPageSize = 50

	// MaxPageSize is the maximum page size supported by CMR.
	MaxPageSize = 2000
)

// Client handles communication with the CMR API.
type Client struct {
	baseURL    string
	provider   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new CMR API client.
func NewClient(baseURL, provider string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if provider == "" {
		provider = DefaultProvider
	}

	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		provider: provider,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// SearchResult contains the results of a CMR search.
type SearchResult struct {
	Items  []UMMResultItem
	Hits   int
	TookMs int
}

// Search performs a granule search against CMR.
func (c *Client) Search(ctx context.Context, params *SearchParams) (*SearchResult, error) {
	searchURL := c.baseURL + "/granules.umm_json"

	queryParams := params.ToURLValues()
	if queryParams.Get("provider") == "" {
		queryParams.Set("provider", c.provider)
	}

	c.logger.DebugContext(ctx, "executing CMR search",
		slog.String("url", searchURL),
		slog.String("params", queryParams.Encode()),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+queryParams.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.nasa.cmr.umm_results+json")
	req.Header.Set("User-Agent", "opera-layer-service/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "CMR API request failed",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: CMR API request failed: %v", granule.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.ErrorContext(ctx, "CMR API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: CMR API returned status %d", granule.ErrAuth, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: CMR API returned status %d: %s", granule.ErrNetwork, resp.StatusCode, string(body))
	}

	var cmrResp UMMSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&cmrResp); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode CMR response",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: failed to decode CMR response: %v", granule.ErrNetwork, err)
	}

	c.logger.DebugContext(ctx, "CMR search completed",
		slog.Int("hits", cmrResp.Hits),
		slog.Int("returned", len(cmrResp.Items)),
	)

	return &SearchResult{
		Items:  cmrResp.Items,
		Hits:   cmrResp.Hits,
		TookMs: cmrResp.Took,
	}, nil
}

// GetGranule retrieves a single granule by its granule UR (unique reference).
func (c *Client) GetGranule(ctx context.Context, granuleUR string) (*UMMResultItem, error) {
	c.logger.DebugContext(ctx, "fetching granule",
		slog.String("granule_ur", granuleUR),
	)

	params := &SearchParams{
		GranuleUR: []string{granuleUR},
		PageSize:  1,
	}

	result, err := c.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search for granule: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, fmt.Errorf("%w: granule %s", granule.ErrNotFound, granuleUR)
	}

	return &result.Items[0], nil
}

// SearchParams represents parameters for CMR granule searches.
type SearchParams struct {
	// Collection identification
	ShortName []string // Collection short names
	ConceptID []string // Collection or granule concept IDs

	// Granule identification
	GranuleUR []string // Granule unique references

	// Provider overrides the client's provider for this search. OPERA
	// collections are split across DAACs (POCLOUD, ASF).
	Provider string

	// Spatial filter
	BoundingBox string // west,south,east,north

	// Temporal filter
	Temporal string // start,end in ISO 8601 format

	// Pagination
	PageSize int

	// Sorting
	SortKey string // CMR sort key (e.g., "-start_date" for descending)
}

// ToURLValues converts SearchParams to URL query parameters.
func (p *SearchParams) ToURLValues() url.Values {
	values := url.Values{}

	for _, sn := range p.ShortName {
		values.Add("short_name", sn)
	}
	for _, cid := range p.ConceptID {
		values.Add("concept_id", cid)
	}
	for _, gur := range p.GranuleUR {
		values.Add("granule_ur", gur)
	}

	if p.Provider != "" {
		values.Set("provider", p.Provider)
	}

	if p.BoundingBox != "" {
		values.Set("bounding_box", p.BoundingBox)
	}
	if p.Temporal != "" {
		values.Set("temporal", p.Temporal)
	}

	if p.PageSize > 0 {
		values.Set("page_size", fmt.Sprintf("%d", p.PageSize))
	} else {
		values.Set("page_size", fmt.Sprintf("%d", DefaultPageSize))
	}

	if p.SortKey != "" {
		values.Set("sort_key", p.SortKey)
	} else {
		// Most recent acquisitions first
		values.Set("sort_key", "-start_date")
	}

	return values
}
