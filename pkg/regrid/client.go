// Package regrid provides a client for the Regrid parcel data API: lookup by
// parcel number, free-text address search, and detail fetch by record id.
// All operations are read-only against the provider.
package regrid

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/parcelfolio/parcelfolio/internal/model"
	"github.com/parcelfolio/parcelfolio/internal/retry"
)

const (
	defaultBaseURL = "https://app.regrid.com/api/v1"
	defaultTimeout = 15 * time.Second

	// MaxSearchLimit is the provider's hard cap on address search results.
	MaxSearchLimit = 25
)

// ErrMissingToken is returned by NewClient when no API token is configured.
// The token is required before any request is attempted.
var ErrMissingToken = eris.New("regrid: api token is required")

// ProviderError is a non-2xx response from the provider. It carries the HTTP
// status and response body so callers can distinguish auth failures from
// provider outages.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("regrid: provider returned status %d", e.StatusCode)
}

// SearchQuery is one free-text address search request.
type SearchQuery struct {
	Text  string
	City  string
	State string
	Limit int // capped at MaxSearchLimit
}

// SearchResult is one ranked candidate from an address search.
type SearchResult struct {
	ID     string
	Score  float64
	Record model.ParcelRecord // partial fields returned inline by the search endpoint
}

// Client defines the parcel lookup operations.
type Client interface {
	// ByParcelNumber looks up a parcel by its parcel number (APN). Zero
	// results returns (nil, nil), not an error.
	ByParcelNumber(ctx context.Context, apn, state string) (*model.ParcelRecord, error)

	// Search returns ranked candidates for a free-text address.
	Search(ctx context.Context, q SearchQuery) ([]SearchResult, error)

	// ByID fetches the full record for a previously-returned candidate id.
	// Zero results returns (nil, nil).
	ByID(ctx context.Context, id string) (*model.ParcelRecord, error)

	// BatchByParcelNumbers looks up many parcels concurrently. Failures and
	// not-found results are dropped; only successes are returned.
	BatchByParcelNumbers(ctx context.Context, apns []string) []model.ParcelRecord

	// BatchByAddresses resolves addresses sequentially via search + detail
	// fetch. Per-item failures are logged and skipped.
	BatchByAddresses(ctx context.Context, queries []SearchQuery) []model.ParcelRecord
}

// Config configures the Regrid client.
type Config struct {
	Token       string  `yaml:"token" mapstructure:"token"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Option configures the client beyond Config.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client (used in tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRetry overrides the retry policy for provider requests.
func WithRetry(cfg retry.Config) Option {
	return func(c *client) {
		c.retryCfg = cfg
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	retryCfg   retry.Config
}

// NewClient creates a Regrid client. A missing token is a configuration
// error: construction fails and no request is ever attempted.
func NewClient(cfg Config, opts ...Option) (Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := defaultTimeout
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 10
	}

	c := &client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      cfg.Token,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		retryCfg:   retry.Config{ShouldRetry: shouldRetry},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
