package earthdata

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opengeos/opera-layer-service/internal/granule"
)

// DefaultURSBaseURL is the Earthdata Login endpoint.
const DefaultURSBaseURL = "https://urs.earthdata.nasa.gov"

// Client verifies credentials against Earthdata Login.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an Earthdata Login client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURSBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// Verify checks the credentials against the URS token listing endpoint,
// which requires HTTP basic authentication. Invalid credentials return
// ErrAuth; an unreachable URS returns ErrNetwork.
func (c *Client) Verify(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users/tokens", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "URS request failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: URS request failed: %v", granule.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		c.logger.DebugContext(ctx, "credentials verified",
			slog.String("username", creds.Username),
		)
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: Earthdata Login rejected credentials for %s", granule.ErrAuth, creds.Username)
	default:
		return fmt.Errorf("%w: URS returned status %d", granule.ErrNetwork, resp.StatusCode)
	}
}
