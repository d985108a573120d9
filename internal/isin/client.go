package isin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/bond-service/internal/circuitbreaker"
	"github.com/bond-service/internal/config"
	"github.com/bond-service/internal/logging"
	"github.com/bond-service/internal/retry"
	"github.com/bond-service/internal/storage"
)

// Cache stores accepted ISINs between lookups for its configured TTL
type Cache interface {
	GenerateCacheKey(keyType storage.CacheKeyType, params ...string) string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// Client validates ISINs against the registry's JSON API
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retry      *retry.RetryConfig
	cache      Cache

	// limiter paces outbound registry requests; nil means unlimited
	limiter *rate.Limiter

	// flight collapses concurrent lookups of the same ISIN into one
	flight        singleflight.Group
	flightTimeout time.Duration
}

// NewClient builds a registry client; cache may be nil
func NewClient(cfg config.ISINConfig, cache Cache) *Client {
	retryCfg := retry.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.RetryAttempts
	retryCfg.ShouldRetry = isTransient

	breakerCfg := circuitbreaker.DefaultConfig("isin-registry")
	breakerCfg.IsFailure = isTransient

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond)
	}

	// worst case of every attempt timing out plus the backoff between them
	attempts := time.Duration(max(cfg.RetryAttempts, 1))
	flightTimeout := attempts * (cfg.Timeout + retryCfg.MaxDelay)

	return &Client{
		baseURL:       cfg.BaseURL,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		breaker:       circuitbreaker.NewCircuitBreaker(breakerCfg),
		retry:         retryCfg,
		cache:         cache,
		limiter:       limiter,
		flightTimeout: flightTimeout,
	}
}

type registryResponse struct {
	Issued []json.RawMessage `json:"vydaneisiny"`
}

// Validate returns nil for an issued ISIN, a *RejectedError for an unknown
// one and an *UpstreamError when the registry reports an error status
func (c *Client) Validate(ctx context.Context, isin string) error {
	isin = strings.TrimSpace(isin)
	logger := logging.FromContext(ctx).WithField("isin", isin)

	var key string
	if c.cache != nil {
		key = c.cache.GenerateCacheKey(storage.CacheKeyISIN, isin)
		var accepted bool
		found, err := c.cache.Get(ctx, key, &accepted)
		if err != nil {
			logger.WithError(err).Warn("ISIN cache read failed")
		} else if found && accepted {
			return nil
		}
	}

	if err := c.sharedLookup(ctx, isin, logger); err != nil {
		return err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, true); err != nil {
			logger.WithError(err).Warn("ISIN cache write failed")
		}
	}
	return nil
}

// sharedLookup joins or starts the one in-flight lookup for isin. The lookup
// is detached from ctx and bounded by flightTimeout; each caller stops
// waiting when its own ctx is done.
func (c *Client) sharedLookup(ctx context.Context, isin string, logger *logging.Logger) error {
	ch := c.flight.DoChan(strings.ToUpper(isin), func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
		defer cancel()
		result := retry.WithExponentialBackoff(flightCtx, c.retry, func(ctx context.Context, attempt int) error {
			return c.breaker.Execute(ctx, func(ctx context.Context) error {
				return c.lookup(ctx, isin)
			})
		})
		return nil, result.Err()
	})

	select {
	case res := <-ch:
		if res.Shared {
			logger.Debug("ISIN lookup shared with a concurrent request")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) lookup(ctx context.Context, isin string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(fmt.Errorf("waiting for registry rate limit: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to build registry request: %w", err))
	}
	q := req.URL.Query()
	q.Set("isin", isin)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &UpstreamError{StatusCode: resp.StatusCode}
	}

	var body registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode registry response: %w", err))
	}
	if len(body.Issued) == 0 {
		return &RejectedError{ISIN: isin}
	}
	return nil
}

// isTransient reports failures worth retrying and counting against the breaker
func isTransient(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode >= http.StatusInternalServerError || upstream.StatusCode == http.StatusTooManyRequests
	}
	switch {
	case errors.Is(err, ErrNotIssued),
		errors.Is(err, circuitbreaker.ErrCircuitOpen),
		errors.Is(err, circuitbreaker.ErrTooManyRequests),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
