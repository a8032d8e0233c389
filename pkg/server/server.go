// Package server provides a public API for embedding the OPERA layer service.
package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opengeos/opera-layer-service/internal/api"
	"github.com/opengeos/opera-layer-service/internal/cmr"
	"github.com/opengeos/opera-layer-service/internal/config"
	"github.com/opengeos/opera-layer-service/internal/earthdata"
	"github.com/opengeos/opera-layer-service/internal/fetch"
	"github.com/opengeos/opera-layer-service/internal/raster"
	"github.com/opengeos/opera-layer-service/internal/search"
	"github.com/opengeos/opera-layer-service/internal/settings"
	"github.com/opengeos/opera-layer-service/internal/update"
)

// Options configures the OPERA layer server.
type Options struct {
	// BaseURL is the public-facing URL for self-referential links (required).
	// Example: "https://api.example.com/opera" or "http://localhost:8080"
	BaseURL string

	// Version is the running service version reported by /health and used
	// as the default for update checks.
	// Default: "dev"
	Version string

	// CMRBaseURL is the NASA CMR API base URL.
	// Default: "https://cmr.earthdata.nasa.gov/search"
	CMRBaseURL string

	// CMRProvider is the CMR provider ID.
	// Default: "POCLOUD"
	CMRProvider string

	// URSBaseURL is the Earthdata Login base URL.
	// Default: "https://urs.earthdata.nasa.gov"
	URSBaseURL string

	// Timeout is the upstream request timeout for search and credential
	// verification. Downloads use a separate, longer timeout.
	// Default: 30s
	Timeout time.Duration

	// Title is the service title reported at the root endpoint.
	// Default: "NASA OPERA Layer Service"
	Title string

	// Description is the service description reported at the root endpoint.
	Description string

	// DefaultMaxResults is the default number of granules per search.
	// Default: 50
	DefaultMaxResults int

	// MaxResultsCap is the hard ceiling on granules per search.
	// Default: 500
	MaxResultsCap int

	// CacheDir is the directory downloaded assets are stored in.
	// Default: <tmp>/opera_cache
	CacheDir string

	// NetrcPath is the netrc file holding Earthdata credentials.
	// Default: ~/.netrc
	NetrcPath string

	// SettingsFile is the path the user settings file is persisted to.
	// Default: <user config dir>/opera-layer-service/settings.json
	SettingsFile string

	// ProductsDir is a directory of product definition JSON files.
	// Default: "" (uses the built-in OPERA product registry)
	ProductsDir string

	// Logger is the slog logger to use.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Server is an OPERA layer service that can be embedded in another application.
type Server struct {
	router chi.Router
	search *search.Service
}

// New creates a new OPERA layer server with the given options.
func New(opts Options) (*Server, error) {
	// Apply defaults
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.CMRBaseURL == "" {
		opts.CMRBaseURL = cmr.DefaultBaseURL
	}
	if opts.CMRProvider == "" {
		opts.CMRProvider = cmr.DefaultProvider
	}
	if opts.URSBaseURL == "" {
		opts.URSBaseURL = earthdata.DefaultURSBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Title == "" {
		opts.Title = "NASA OPERA Layer Service"
	}
	if opts.Description == "" {
		opts.Description = "Search and layer service for NASA OPERA data products"
	}
	if opts.DefaultMaxResults == 0 {
		opts.DefaultMaxResults = 50
	}
	if opts.MaxResultsCap == 0 {
		opts.MaxResultsCap = 500
	}
	if opts.NetrcPath == "" {
		path, err := earthdata.DefaultNetrcPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve netrc path: %w", err)
		}
		opts.NetrcPath = path
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// Build internal config
	cfg := &config.Config{
		CMR: config.CMRConfig{
			BaseURL:  opts.CMRBaseURL,
			Provider: opts.CMRProvider,
			Timeout:  opts.Timeout,
		},
		Earthdata: config.EarthdataConfig{
			URSBaseURL:      opts.URSBaseURL,
			CredentialsFile: opts.NetrcPath,
			Timeout:         opts.Timeout,
		},
		Service: config.ServiceConfig{
			BaseURL:     opts.BaseURL,
			Title:       opts.Title,
			Description: opts.Description,
			ProductsDir: opts.ProductsDir,
		},
		Search: config.SearchConfig{
			DefaultMaxResults: opts.DefaultMaxResults,
			MaxResultsCap:     opts.MaxResultsCap,
			CacheSize:         128,
			CacheTTL:          5 * time.Minute,
		},
		Cache: config.CacheConfig{
			Dir: opts.CacheDir,
		},
		Update: config.UpdateConfig{
			RepoOwner: "opengeos",
			RepoName:  "qgis-nasa-opera-plugin",
			Timeout:   15 * time.Second,
		},
	}

	// Load products
	var products *config.ProductRegistry
	var err error
	if opts.ProductsDir != "" {
		products, err = config.LoadProducts(opts.ProductsDir)
		if err != nil {
			opts.Logger.Warn("failed to load products, using built-in registry",
				"dir", opts.ProductsDir,
				"error", err,
			)
			products = config.DefaultProducts()
		}
	} else {
		products = config.DefaultProducts()
	}

	store, err := settings.NewStore(opts.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}

	// Create upstream clients and services
	cmrClient := cmr.NewClient(cfg.CMR.BaseURL, cfg.CMR.Provider, cfg.CMR.Timeout).WithLogger(opts.Logger)
	searchSvc := search.NewService(cmrClient, products, cfg.Search).
		WithSettings(store).
		WithLogger(opts.Logger)

	// A saved cache directory preference takes precedence over Options
	cacheDir := cfg.Cache.Dir
	if s := store.Get(); s.CacheDir != "" {
		cacheDir = s.CacheDir
	}
	netrcPath := opts.NetrcPath
	downloader, err := fetch.NewDownloader(fetch.Config{
		CacheDir: cacheDir,
		Credentials: func() (earthdata.Credentials, error) {
			return earthdata.ReadNetrc(netrcPath)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create downloader: %w", err)
	}
	downloader = downloader.WithLogger(opts.Logger)

	builder := raster.NewBuilder(downloader, store).WithLogger(opts.Logger)
	ursClient := earthdata.NewClient(cfg.Earthdata.URSBaseURL, cfg.Earthdata.Timeout).WithLogger(opts.Logger)
	checker := update.NewChecker(cfg.Update.FeedBaseURL, cfg.Update.RepoOwner, cfg.Update.RepoName, cfg.Update.Timeout).WithLogger(opts.Logger)

	// Create handlers and router
	handlers := api.NewHandlers(cfg, opts.Version, searchSvc, builder, downloader, store, ursClient, checker, netrcPath, opts.Logger)
	router := api.NewRouter(handlers, opts.Logger)

	return &Server{
		router: router,
		search: searchSvc,
	}, nil
}

// Router returns the chi.Router for mounting in another application.
func (s *Server) Router() chi.Router {
	return s.router
}

// PurgeSearchCache drops all cached search results.
func (s *Server) PurgeSearchCache() {
	s.search.PurgeCache()
}
