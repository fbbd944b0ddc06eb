package datagov

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/config"
)

// stubDoer scripts HTTP responses per call and counts invocations.
type stubDoer struct {
	mu      sync.Mutex
	calls   int
	lastURL *url.URL
	respond func(call int, req *http.Request) (*http.Response, error)
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.lastURL = req.URL
	s.mu.Unlock()
	return s.respond(n, req)
}

func (s *stubDoer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func alwaysRespond(status int, body string) func(int, *http.Request) (*http.Response, error) {
	return func(int, *http.Request) (*http.Response, error) {
		return jsonResponse(status, body), nil
	}
}

var errTimeout = errors.New("dial tcp: i/o timeout")

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.APIKey = "579b464db66ec23bdd000001"
	return cfg
}

// newTestClient builds a client whose backoff sleeps are recorded instead of
// slept.
func newTestClient(t *testing.T, cfg *config.Config, stub *stubDoer) (*Client, *[]time.Duration) {
	t.Helper()
	c, err := New(cfg, WithHTTPClient(stub))
	if err != nil {
		t.Fatal(err)
	}
	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &sleeps
}

func TestGetResourceSuccess(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200,
		`{"total": 2, "records": [{"state": "Kerala"}, {"state": "Goa"}], "field": [{"id": "state", "type": "keyword"}]}`)}
	c, _ := newTestClient(t, testConfig(), stub)

	data, err := c.GetResource(context.Background(), "9ef84268", nil, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if data.Total != 2 || len(data.Records) != 2 {
		t.Errorf("payload = %+v", data)
	}

	q := stub.lastURL.Query()
	if q.Get("api-key") != "579b464db66ec23bdd000001" {
		t.Errorf("api-key = %q", q.Get("api-key"))
	}
	if q.Get("format") != "json" {
		t.Errorf("format = %q", q.Get("format"))
	}
	if q.Get("offset") != "0" || q.Get("limit") != "10" {
		t.Errorf("pagination = offset %q limit %q", q.Get("offset"), q.Get("limit"))
	}
	if !strings.HasSuffix(stub.lastURL.Path, "/resource/9ef84268") {
		t.Errorf("path = %s", stub.lastURL.Path)
	}
}

func TestFiltersInQuery(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200, `{"total": 0, "records": []}`)}
	c, _ := newTestClient(t, testConfig(), stub)

	_, err := c.GetResource(context.Background(), "R", map[string]string{"state": "Maharashtra"}, 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got := stub.lastURL.Query().Get("filters[state]"); got != "Maharashtra" {
		t.Errorf("filters[state] = %q, want Maharashtra", got)
	}
}

func TestCacheHitAvoidsNetwork(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200, `{"total": 1, "records": [{"a": 1}]}`)}
	c, _ := newTestClient(t, testConfig(), stub)
	ctx := context.Background()

	first, err := c.GetResource(ctx, "R", nil, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.GetResource(ctx, "R", nil, 0, 10)
	if err != nil {
		t.Fatal(err)
	}

	if stub.count() != 1 {
		t.Errorf("HTTP calls = %d, want 1 (second fetch served from cache)", stub.count())
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cached payload differs from original")
	}
}

func TestCacheHitSkipsRateLimiter(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200, `{"total": 0, "records": []}`)}
	cfg := testConfig()

	c, err := New(cfg, WithHTTPClient(stub), WithLimiter(&countingLimiter{}))
	if err != nil {
		t.Fatal(err)
	}
	limiter := c.limiter.(*countingLimiter)
	ctx := context.Background()

	c.GetResource(ctx, "R", nil, 0, 10)
	c.GetResource(ctx, "R", nil, 0, 10)

	if limiter.waits != 1 {
		t.Errorf("limiter waits = %d, want 1 (cache hits consume no rate limit)", limiter.waits)
	}
}

type countingLimiter struct{ waits int }

func (c *countingLimiter) Wait(context.Context) error {
	c.waits++
	return nil
}

func TestCacheDisabled(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200, `{"total": 0, "records": []}`)}
	cfg := testConfig()
	cfg.Cache.Enabled = false
	c, _ := newTestClient(t, cfg, stub)
	ctx := context.Background()

	c.GetResource(ctx, "R", nil, 0, 10)
	c.GetResource(ctx, "R", nil, 0, 10)

	if stub.count() != 2 {
		t.Errorf("HTTP calls = %d, want 2 with caching disabled", stub.count())
	}
	if _, ok := c.CacheStats(); ok {
		t.Error("CacheStats should report disabled")
	}
}

func TestNotFoundIsFatal(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(404, `{"message": "not found"}`)}
	c, _ := newTestClient(t, testConfig(), stub)

	_, err := c.GetResource(context.Background(), "missing", nil, 0, 10)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if notFound.ResourceID != "missing" {
		t.Errorf("resource id = %s", notFound.ResourceID)
	}
	if stub.count() != 1 {
		t.Errorf("HTTP calls = %d, want 1 (no retry on 404)", stub.count())
	}
}

func TestRateLimitedIsFatal(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(429, "")}
	c, _ := newTestClient(t, testConfig(), stub)

	_, err := c.GetResource(context.Background(), "R", nil, 0, 10)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if stub.count() != 1 {
		t.Errorf("HTTP calls = %d, want 1 (no local retry against a throttling server)", stub.count())
	}
}

func TestAPIErrorIsFatal(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(500, "internal error")}
	c, _ := newTestClient(t, testConfig(), stub)

	_, err := c.GetResource(context.Background(), "R", nil, 0, 10)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.StatusCode != 500 || apiErr.Body != "internal error" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if stub.count() != 1 {
		t.Errorf("HTTP calls = %d, want 1", stub.count())
	}
}

func TestTransientFailureRecovers(t *testing.T) {
	stub := &stubDoer{respond: func(call int, _ *http.Request) (*http.Response, error) {
		if call == 1 {
			return nil, errTimeout
		}
		return jsonResponse(200, `{"records": [], "total": 0}`), nil
	}}
	cfg := testConfig()
	cfg.Retry.MaxRetries = 2
	c, _ := newTestClient(t, cfg, stub)

	data, err := c.GetResource(context.Background(), "R", nil, 0, 10)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if data.Total != 0 {
		t.Errorf("payload = %+v", data)
	}
	if stub.count() != 2 {
		t.Errorf("HTTP calls = %d, want 2", stub.count())
	}
}

func TestRetryExhaustion(t *testing.T) {
	stub := &stubDoer{respond: func(int, *http.Request) (*http.Response, error) {
		return nil, errTimeout
	}}
	cfg := testConfig()
	cfg.Retry.MaxRetries = 2
	c, _ := newTestClient(t, cfg, stub)

	_, err := c.GetResource(context.Background(), "R", nil, 0, 10)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	if stub.count() != 3 {
		t.Errorf("HTTP calls = %d, want 3 (maxRetries=2 means 3 attempts)", stub.count())
	}
}

func TestBackoffSequence(t *testing.T) {
	stub := &stubDoer{respond: func(int, *http.Request) (*http.Response, error) {
		return nil, errTimeout
	}}
	cfg := testConfig()
	cfg.Retry.MaxRetries = 3
	cfg.Retry.Delay = time.Second
	cfg.Retry.BackoffFactor = 2.0
	c, sleeps := newTestClient(t, cfg, stub)

	c.GetResource(context.Background(), "R", nil, 0, 10)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if !reflect.DeepEqual(*sleeps, want) {
		t.Errorf("backoff delays = %v, want %v", *sleeps, want)
	}
}

func TestMissingAPIKey(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200, "{}")}
	cfg := testConfig()
	cfg.APIKey = ""
	c, _ := newTestClient(t, cfg, stub)

	_, err := c.GetResource(context.Background(), "R", nil, 0, 10)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if stub.count() != 0 {
		t.Errorf("HTTP calls = %d, want 0", stub.count())
	}
}

func TestParameterValidation(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200, "{}")}
	c, _ := newTestClient(t, testConfig(), stub)
	ctx := context.Background()

	_, err := c.GetResource(ctx, "R", nil, 0, 101)
	var invalid *InvalidParameterError
	if !errors.As(err, &invalid) || invalid.Param != "limit" {
		t.Errorf("limit over max: err = %v", err)
	}

	_, err = c.GetResource(ctx, "R", nil, -1, 10)
	if !errors.As(err, &invalid) || invalid.Param != "offset" {
		t.Errorf("negative offset: err = %v", err)
	}

	if stub.count() != 0 {
		t.Errorf("HTTP calls = %d, want 0 for invalid parameters", stub.count())
	}
}

func TestDefaultLimitApplied(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200, `{"total": 0, "records": []}`)}
	c, _ := newTestClient(t, testConfig(), stub)

	if _, err := c.GetResource(context.Background(), "R", nil, 0, 0); err != nil {
		t.Fatal(err)
	}
	if got := stub.lastURL.Query().Get("limit"); got != "10" {
		t.Errorf("limit = %q, want default 10", got)
	}
}

func TestMalformedBodyIsFatal(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200, "<html>not json</html>")}
	c, _ := newTestClient(t, testConfig(), stub)

	_, err := c.GetResource(context.Background(), "R", nil, 0, 10)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError for malformed body", err)
	}
	if stub.count() != 1 {
		t.Errorf("HTTP calls = %d, want 1", stub.count())
	}
}

func TestContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubDoer{respond: func(int, *http.Request) (*http.Response, error) {
		cancel()
		return nil, errTimeout
	}}
	cfg := testConfig()
	cfg.Retry.MaxRetries = 5
	c, err := New(cfg, WithHTTPClient(stub))
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.GetResource(ctx, "R", nil, 0, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if stub.count() != 1 {
		t.Errorf("HTTP calls = %d, want 1 (backoff aborted by cancellation)", stub.count())
	}
}

func TestGetResourceFields(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200,
		`{"total": 5, "records": [{"x": 1}], "field": [{"id": "state", "type": "keyword"}, {"id": "qty", "type": "double"}]}`)}
	c, _ := newTestClient(t, testConfig(), stub)

	fields, err := c.GetResourceFields(context.Background(), "R")
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 2 || fields[0].ID != "state" || fields[1].Type != "double" {
		t.Errorf("fields = %+v", fields)
	}
	if got := stub.lastURL.Query().Get("limit"); got != "1" {
		t.Errorf("probe limit = %q, want 1", got)
	}
}

func TestGetResourceFieldsInferred(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200,
		`{"total": 1, "records": [{"name": "x", "count": 3, "active": true}]}`)}
	c, _ := newTestClient(t, testConfig(), stub)

	fields, err := c.GetResourceFields(context.Background(), "R")
	if err != nil {
		t.Fatal(err)
	}

	byID := map[string]string{}
	for _, f := range fields {
		byID[f.ID] = f.Type
	}
	want := map[string]string{"name": "string", "count": "number", "active": "boolean"}
	if !reflect.DeepEqual(byID, want) {
		t.Errorf("inferred fields = %v, want %v", byID, want)
	}
}

func TestSearchResourcesStub(t *testing.T) {
	stub := &stubDoer{respond: alwaysRespond(200, "{}")}
	c, _ := newTestClient(t, testConfig(), stub)

	result := c.SearchResources("rainfall", 0, 10)
	if result.Query != "rainfall" || result.Message == "" {
		t.Errorf("result = %+v", result)
	}
	if stub.count() != 0 {
		t.Error("search stub must not hit the network")
	}
}
