// Package update checks GitHub releases for a newer published version.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/opengeos/opera-layer-service/internal/granule"
	"github.com/opengeos/opera-layer-service/internal/metrics"
)

// Release is a GitHub release as returned by the releases API.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	HTMLURL     string    `json:"html_url"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Status is the result of an update check.
type Status struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	UpdateAvailable bool      `json:"update_available"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	PublishedAt     time.Time `json:"published_at,omitzero"`
}

// Checker queries the GitHub releases API for a repository.
type Checker struct {
	baseURL    string
	owner      string
	repo       string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewChecker creates an update checker for owner/repo. baseURL defaults to
// the public GitHub API.
func NewChecker(baseURL, owner, repo string, timeout time.Duration) *Checker {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Checker{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		owner:   owner,
		repo:    repo,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the checker.
func (c *Checker) WithLogger(logger *slog.Logger) *Checker {
	c.logger = logger
	return c
}

// Check compares currentVersion against the newest published release.
// Draft and prerelease entries are ignored. Tags may carry a "v" prefix.
func (c *Checker) Check(ctx context.Context, currentVersion string) (*Status, error) {
	current, err := semver.NewVersion(strings.TrimPrefix(currentVersion, "v"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid current version %q: %v", granule.ErrValidation, currentVersion, err)
	}

	releases, err := c.fetchReleases(ctx)
	if err != nil {
		metrics.IncUpdateCheck("error")
		return nil, err
	}

	status := &Status{
		CurrentVersion: current.String(),
		LatestVersion:  current.String(),
	}

	var latest *semver.Version
	for _, rel := range releases {
		if rel.Draft || rel.Prerelease {
			continue
		}
		v, err := semver.NewVersion(strings.TrimPrefix(rel.TagName, "v"))
		if err != nil {
			c.logger.DebugContext(ctx, "skipping release with unparsable tag",
				slog.String("tag", rel.TagName),
			)
			continue
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
			status.LatestVersion = v.String()
			status.ReleaseURL = rel.HTMLURL
			status.PublishedAt = rel.PublishedAt
		}
	}

	if latest != nil && latest.GreaterThan(current) {
		status.UpdateAvailable = true
	}

	metrics.IncUpdateCheck("ok")
	c.logger.DebugContext(ctx, "update check completed",
		slog.String("current", status.CurrentVersion),
		slog.String("latest", status.LatestVersion),
		slog.Bool("update_available", status.UpdateAvailable),
	)
	return status, nil
}

// fetchReleases lists the repository's releases.
func (c *Checker) fetchReleases(ctx context.Context) ([]Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=30", c.baseURL, c.owner, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "opera-layer-service/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: release feed request failed: %v", granule.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: release feed returned status %d: %s",
			granule.ErrNetwork, resp.StatusCode, string(body))
	}

	var releases []Release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("%w: failed to decode release feed: %v", granule.ErrNetwork, err)
	}
	return releases, nil
}
