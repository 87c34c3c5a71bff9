// Package datasources implements the upstream collaborators: the
// arbitrage-balance and turnover scrapers, the chart API client and the
// holiday calendar. Every fetcher yields absence rather than raising when
// a page has no usable data; only transport-level malfunctions surface as
// errors.
package datasources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"jpxsignal/internal/config"
)

// maxResponseBytes caps the size of any upstream response body.
const maxResponseBytes = 8 << 20

// Client is the shared HTTP client for all upstream fetchers: one
// user agent, one timeout, one politeness rate limit.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

// NewClient creates the shared upstream HTTP client.
func NewClient(cfg config.SourcesConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.FetchTimeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Get fetches the URL body, honoring the rate limit and context.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", url, err)
	}

	c.logger.DebugContext(ctx, "upstream fetch complete",
		"url", url,
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return body, nil
}
