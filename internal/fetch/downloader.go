// Package fetch downloads granule assets to a local cache directory with
// retry and circuit breaker protection.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/opengeos/opera-layer-service/internal/earthdata"
	"github.com/opengeos/opera-layer-service/internal/granule"
	"github.com/opengeos/opera-layer-service/internal/metrics"
)

// ErrCircuitOpen is returned when the download circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CredentialSource supplies Earthdata credentials for authenticated
// downloads. Returning ErrAuth means no credentials are configured.
type CredentialSource func() (earthdata.Credentials, error)

// Config holds downloader configuration.
type Config struct {
	// CacheDir is the directory downloaded assets are stored in.
	CacheDir string

	// Timeout is the per-request timeout. Default: 10 minutes, rasters
	// can be large.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts per download. Default: 3.
	MaxRetries uint64

	// InitialInterval is the initial retry backoff. Default: 500ms.
	InitialInterval time.Duration

	// MaxInterval is the backoff ceiling. Default: 10s.
	MaxInterval time.Duration

	// Credentials supplies Earthdata Login credentials. Optional; public
	// assets download without it.
	Credentials CredentialSource
}

// Downloader fetches granule assets over HTTPS into a local cache.
// Transient failures are retried with exponential backoff; repeated
// failures trip a circuit breaker shared across downloads.
type Downloader struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
}

// serverError marks a 5xx response so the circuit breaker counts it as a
// failure.
type serverError struct {
	statusCode int
}

func (e *serverError) Error() string {
	return "server error: " + http.StatusText(e.statusCode)
}

// NewDownloader creates a downloader writing into cfg.CacheDir.
func NewDownloader(cfg Config) (*Downloader, error) {
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "opera_cache")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 10 * time.Second
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %q: %w", cfg.CacheDir, err)
	}

	d := &Downloader{
		cfg: cfg,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        "asset-download",
			MaxRequests: 1,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 5 && failureRatio >= 0.5
			},
		}),
		logger: slog.Default(),
	}

	d.client = &http.Client{
		Timeout: cfg.Timeout,
		// Earthdata downloads redirect through URS, which strips the
		// Authorization header on the cross-host hop. Re-attach
		// credentials when the redirect lands on the login host.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("too many redirects")
			}
			if cfg.Credentials != nil && strings.HasSuffix(req.URL.Hostname(), earthdata.URSHost) {
				creds, err := cfg.Credentials()
				if err != nil {
					return err
				}
				req.SetBasicAuth(creds.Username, creds.Password)
			}
			return nil
		},
	}

	return d, nil
}

// WithLogger sets a custom logger for the downloader.
func (d *Downloader) WithLogger(logger *slog.Logger) *Downloader {
	d.logger = logger
	return d
}

// CacheDir returns the cache directory path.
func (d *Downloader) CacheDir() string {
	return d.cfg.CacheDir
}

// Fetch ensures the asset is present in the cache and returns its local
// path. An already cached file is reused without touching the network.
// On failure no partial file is left behind.
func (d *Downloader) Fetch(ctx context.Context, asset granule.Asset) (string, bool, error) {
	if asset.Name == "" || asset.URL == "" {
		return "", false, fmt.Errorf("%w: asset name and URL are required", granule.ErrValidation)
	}
	if strings.ContainsAny(asset.Name, `/\`) {
		return "", false, fmt.Errorf("%w: asset name %q must not contain path separators",
			granule.ErrValidation, asset.Name)
	}

	u, err := url.Parse(asset.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false, fmt.Errorf("%w: asset URL %q is not fetchable over HTTP", granule.ErrFetch, asset.URL)
	}

	target := filepath.Join(d.cfg.CacheDir, asset.Name)
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		d.logger.DebugContext(ctx, "asset already cached",
			slog.String("asset", asset.Name),
			slog.Int64("size_bytes", info.Size()),
		)
		metrics.IncDownload("cached")
		return target, true, nil
	}

	written, err := d.download(ctx, asset.URL, target)
	if err != nil {
		metrics.IncDownload("error")
		return "", false, err
	}

	metrics.IncDownload("fetched")
	metrics.AddDownloadBytes(written)
	d.logger.InfoContext(ctx, "asset downloaded",
		slog.String("asset", asset.Name),
		slog.Int64("size_bytes", written),
	)
	return target, false, nil
}

// download streams the URL to target via a temp file, renaming only on
// success.
func (d *Downloader) download(ctx context.Context, rawURL, target string) (int64, error) {
	resp, err := d.get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, fmt.Errorf("%w: download of %s rejected with status %d", granule.ErrAuth, rawURL, resp.StatusCode)
	default:
		return 0, fmt.Errorf("%w: download of %s returned status %d", granule.ErrFetch, rawURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(d.cfg.CacheDir, ".download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, fmt.Errorf("%w: transfer of %s failed: %v", granule.ErrFetch, rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to move download into cache: %w", err)
	}
	return written, nil
}

// get issues the request with retry and circuit breaker protection.
func (d *Downloader) get(ctx context.Context, rawURL string) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.InitialInterval
	bo.MaxInterval = d.cfg.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, d.cfg.MaxRetries), ctx)

	var result *http.Response

	operation := func() error {
		resp, err := d.breaker.Execute(func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			if d.cfg.Credentials != nil {
				if creds, err := d.cfg.Credentials(); err == nil {
					req.SetBasicAuth(creds.Username, creds.Password)
				}
			}

			r, err := d.client.Do(req)
			if err != nil {
				return nil, err
			}

			// 5xx counts as a breaker failure and is retried.
			if r.StatusCode >= 500 {
				r.Body.Close()
				return nil, &serverError{statusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			return err
		}

		result = resp
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", granule.ErrFetch, err)
		}
		var srvErr *serverError
		if errors.As(err, &srvErr) {
			return nil, fmt.Errorf("%w: download returned status %d after retries", granule.ErrFetch, srvErr.statusCode)
		}
		return nil, fmt.Errorf("%w: %v", granule.ErrFetch, err)
	}
	return result, nil
}

// BreakerState returns the circuit breaker state, for health reporting.
func (d *Downloader) BreakerState() gobreaker.State {
	return d.breaker.State()
}
