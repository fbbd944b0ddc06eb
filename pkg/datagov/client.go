// Package datagov is a client for the api.data.gov.in open data portal. It
// layers response caching, client-side rate limiting and retry with
// exponential backoff over plain HTTP GETs against the resource endpoint.
package datagov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/audit"
	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/cache"
	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/config"
	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/models"
	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/ratelimit"
)

const userAgent = "data-gov-in-mcp/1.0.0"

// Doer abstracts the HTTP transport so tests can count and script requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches dataset resources from data.gov.in. It owns its cache and
// rate limiter; construct one per process and share it across goroutines.
type Client struct {
	cfg     *config.Config
	http    Doer
	cache   *cache.Cache  // nil when caching is disabled
	limiter ratelimit.Limiter
	auditor *audit.Logger // nil when auditing is disabled

	sleep func(ctx context.Context, d time.Duration) error // swapped out in tests
}

// Option adjusts a Client at construction time.
type Option func(*Client)

// WithHTTPClient replaces the HTTP transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithLimiter replaces the in-memory rate limiter, e.g. with the shared
// Redis-backed one.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithAuditor records every fetch in the request audit log.
func WithAuditor(a *audit.Logger) Option {
	return func(c *Client) { c.auditor = a }
}

// New creates a Client from cfg. The config is validated; a missing API key
// is tolerated here (some deployments set it late) but every fetch will fail
// until one is present.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.NewWindow(cfg.RateLimit.Calls, cfg.RateLimit.Period),
		sleep:   sleepContext,
	}
	if cfg.Cache.Enabled {
		c.cache = cache.New(cfg.Cache.MaxSize, cfg.Cache.TTL)
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.APIKey == "" {
		log.Printf("datagov: API key not set, fetches will fail until configured")
	}
	return c, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// GetResource fetches one page of records from a dataset resource. A limit
// of 0 uses the configured default; filters restrict records to exact field
// values.
func (c *Client) GetResource(ctx context.Context, resourceID string, filters map[string]string, offset, limit int) (*models.ResourceData, error) {
	if limit <= 0 {
		limit = c.cfg.Page.DefaultLimit
	}
	if limit > c.cfg.Page.MaxLimit {
		return nil, &InvalidParameterError{
			Param:  "limit",
			Reason: fmt.Sprintf("cannot exceed %d", c.cfg.Page.MaxLimit),
		}
	}
	if offset < 0 {
		return nil, &InvalidParameterError{Param: "offset", Reason: "must be >= 0"}
	}

	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))
	for field, value := range filters {
		params.Set("filters["+field+"]", value)
	}

	return c.request(ctx, resourceID, params)
}

// GetResourceFields returns the field descriptors of a resource, probing
// with a single record. When the response carries no descriptors, they are
// inferred from the first record.
func (c *Client) GetResourceFields(ctx context.Context, resourceID string) ([]models.Field, error) {
	params := url.Values{}
	params.Set("limit", "1")

	data, err := c.request(ctx, resourceID, params)
	if err != nil {
		return nil, err
	}
	if fields := data.FieldList(); len(fields) > 0 {
		return fields, nil
	}
	if len(data.Records) > 0 {
		return inferFields(data.Records[0]), nil
	}
	return nil, nil
}

// SearchResources is a stub. data.gov.in exposes no public dataset search
// API, so this reports that instead of guessing at catalog endpoints.
func (c *Client) SearchResources(query string, offset, limit int) *models.SearchResult {
	log.Printf("datagov: dataset search requested for %q but the API has no search endpoint", query)
	return &models.SearchResult{
		Query:   query,
		Message: "dataset search requires catalog API access and is not supported",
	}
}

// CacheStats reports cache metrics; ok is false when caching is disabled.
func (c *Client) CacheStats() (models.CacheStats, bool) {
	if c.cache == nil {
		return models.CacheStats{}, false
	}
	return c.cache.Stats(), true
}

// ClearCache drops all cached responses.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
		log.Printf("datagov: cache cleared")
	}
}

// request performs one cached, rate-limited, retrying GET against
// /resource/{id}. Only network failures are retried; HTTP-level failures are
// mapped to typed errors and surfaced immediately.
func (c *Client) request(ctx context.Context, resourceID string, params url.Values) (*models.ResourceData, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	params.Set("api-key", c.cfg.APIKey)
	if params.Get("format") == "" {
		params.Set("format", "json")
	}

	var key string
	if c.cache != nil {
		key = cache.MakeKey(resourceID, params)
		if v, ok := c.cache.Get(key); ok {
			c.recordAudit(resourceID, params, v.(*models.ResourceData), 0, 0, true, nil)
			return v.(*models.ResourceData), nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	data, attempts, err := c.dispatch(ctx, resourceID, params)
	c.recordAudit(resourceID, params, data, attempts, time.Since(start), false, err)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(key, data)
	}
	return data, nil
}

// dispatch runs the retry loop: up to MaxRetries+1 attempts with exponential
// backoff between them. Returns the number of attempts actually made.
func (c *Client) dispatch(ctx context.Context, resourceID string, params url.Values) (*models.ResourceData, int, error) {
	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/resource/" + url.PathEscape(resourceID) + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.cfg.Retry.Delay) *
				math.Pow(c.cfg.Retry.BackoffFactor, float64(attempt-1)))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, attempt, err
			}
		}

		data, err := c.attempt(ctx, endpoint, resourceID)
		if err == nil {
			return data, attempt + 1, nil
		}
		if !retryable(err) {
			return nil, attempt + 1, err
		}
		lastErr = err
		log.Printf("datagov: attempt %d/%d for %s failed: %v",
			attempt+1, c.cfg.Retry.MaxRetries+1, resourceID, err)
	}
	return nil, c.cfg.Retry.MaxRetries + 1, lastErr
}

// attempt issues a single GET and classifies the outcome.
func (c *Client) attempt(ctx context.Context, endpoint, resourceID string) (*models.ResourceData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &InvalidParameterError{Param: "resource_id", Reason: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{ResourceID: resourceID}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var data models.ResourceData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("malformed response body: %v", err),
		}
	}
	return &data, nil
}

// recordAudit writes the outcome of one fetch to the audit log, off the hot
// path. The api-key parameter is stripped; only its hash is stored.
func (c *Client) recordAudit(resourceID string, params url.Values, data *models.ResourceData, attempts int, latency time.Duration, cacheHit bool, fetchErr error) {
	if c.auditor == nil {
		return
	}

	redacted := url.Values{}
	for k, vs := range params {
		if k == "api-key" {
			continue
		}
		redacted[k] = vs
	}

	entry := models.RequestEntry{
		RequestID:  uuid.NewString(),
		ResourceID: resourceID,
		Params:     redacted.Encode(),
		CacheHit:   cacheHit,
		Attempts:   attempts,
		LatencyMs:  latency.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	entry.APIKeyHash, entry.APIKeyPrefix = audit.HashAPIKey(c.cfg.APIKey)

	if data != nil {
		entry.StatusCode = http.StatusOK
		entry.RecordCount = len(data.Records)
	}
	if fetchErr != nil {
		entry.Error = fetchErr.Error()
		var apiErr *APIError
		var notFound *NotFoundError
		switch {
		case errors.As(fetchErr, &apiErr):
			entry.StatusCode = apiErr.StatusCode
		case errors.As(fetchErr, &notFound):
			entry.StatusCode = http.StatusNotFound
		case errors.Is(fetchErr, ErrRateLimited):
			entry.StatusCode = http.StatusTooManyRequests
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.auditor.Log(ctx, entry); err != nil {
			log.Printf("datagov: audit log error: %v", err)
		}
	}()
}

// inferFields derives field descriptors from a sample record when the API
// response carries none.
func inferFields(record map[string]any) []models.Field {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]models.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, models.Field{ID: k, Type: fieldType(record[k])})
	}
	return fields
}

func fieldType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	case []any:
		return "array"
	default:
		return "object"
	}
}

// sleepContext pauses for d unless ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
