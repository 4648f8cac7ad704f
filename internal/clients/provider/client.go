package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
	"github.com/gramlytics/gramlytics-backend/internal/pkg/httpx"
	"github.com/gramlytics/gramlytics-backend/internal/utils"
)

// UsageRecorder observes every provider call attempt, success or failure.
// The collector's quota accounting hangs off this hook.
type UsageRecorder interface {
	Record(ctx context.Context, endpoint string, statusCode int, latency time.Duration)
}

// Client is the social data provider API client used by the rest of the
// backend. Every method returns the decoded payload as-is; normalization
// happens downstream because the provider's schema drifts between versions.
type Client interface {
	FetchProfile(ctx context.Context, username string) (map[string]any, error)
	FetchPosts(ctx context.Context, username string, limit int) (map[string]any, error)
	FetchStories(ctx context.Context, username string) (map[string]any, error)
	FetchHighlights(ctx context.Context, username string) (map[string]any, error)
	FetchComments(ctx context.Context, mediaID string, limit int) (map[string]any, error)
	FetchSimilarAccounts(ctx context.Context, username string) (map[string]any, error)
	Search(ctx context.Context, kind, query string) (map[string]any, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	usage      UsageRecorder

	maxRetries int
}

// NewClient builds a provider client from PROVIDER_* environment variables.
// usage may be nil; attempts are then not recorded.
func NewClient(log *logger.Logger, usage UsageRecorder) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(utils.GetEnv("PROVIDER_API_KEY", "", nil))
	if apiKey == "" {
		return nil, fmt.Errorf("missing PROVIDER_API_KEY")
	}

	baseURL := strings.TrimSpace(utils.GetEnv("PROVIDER_BASE_URL", "", nil))
	if baseURL == "" {
		return nil, fmt.Errorf("missing PROVIDER_BASE_URL")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeoutSec := utils.GetEnvAsInt("PROVIDER_TIMEOUT_SECONDS", 30, nil)
	maxRetries := utils.GetEnvAsInt("PROVIDER_MAX_RETRIES", 4, nil)
	rps := utils.GetEnvAsFloat("PROVIDER_RPS", 2, nil)
	if rps <= 0 {
		rps = 2
	}

	return &client{
		log:        log.With("service", "ProviderClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		usage:      usage,
		maxRetries: maxRetries,
	}, nil
}

type providerHTTPError struct {
	StatusCode int
	Body       string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("provider http %d: %s", e.StatusCode, e.Body)
}

func (e *providerHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, endpoint string, query url.Values) (*http.Response, []byte, error) {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.record(ctx, endpoint, 0, latency)
		return nil, nil, err
	}
	c.record(ctx, endpoint, resp.StatusCode, latency)

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &providerHTTPError{StatusCode: resp.StatusCode, Body: truncateBody(raw)}
	}
	return resp, raw, nil
}

func (c *client) record(ctx context.Context, endpoint string, status int, latency time.Duration) {
	if c.usage == nil {
		return
	}
	c.usage.Record(ctx, endpoint, status, latency)
}

// do runs one logical provider call with rate limiting and retries.
// Transient failures (timeouts, 408/429/5xx) retry with exponential backoff,
// honoring Retry-After; everything else fails fast as fatal.
func (c *client) do(ctx context.Context, endpoint string, query url.Values) (map[string]any, error) {
	backoff := 1 * time.Second
	var lastErr error
	var lastStatus int

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, raw, err := c.doOnce(ctx, endpoint, query)
		if err == nil {
			return decodePayload(raw)
		}

		if !httpx.IsRetryableError(err) {
			if status := httpx.StatusFromError(err); status > 0 {
				return nil, &apperrors.ProviderFatalError{Endpoint: endpoint, StatusCode: status, Body: truncateErr(err)}
			}
			return nil, err
		}

		lastErr = err
		lastStatus = httpx.StatusFromError(err)
		if attempt == c.maxRetries {
			break
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Provider request retrying",
			"endpoint", endpoint,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	return nil, &apperrors.ProviderTransientError{
		Endpoint:   endpoint,
		StatusCode: lastStatus,
		Attempts:   c.maxRetries + 1,
		Err:        lastErr,
	}
}

// decodePayload tolerates both object and top-level array responses; arrays
// are wrapped under "items" so downstream path resolution has one shape.
func decodePayload(raw []byte) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return map[string]any{}, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []any
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("provider decode error: %w", err)
		}
		return map[string]any{"items": list}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("provider decode error: %w", err)
	}
	return obj, nil
}

func truncateBody(raw []byte) string {
	const max = 512
	s := string(raw)
	if len(s) > max {
		return s[:max]
	}
	return s
}

func truncateErr(err error) string {
	const max = 512
	s := err.Error()
	if len(s) > max {
		return s[:max]
	}
	return s
}

func (c *client) FetchProfile(ctx context.Context, username string) (map[string]any, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperrors.ErrInvalidArgument
	}
	q := url.Values{"username": {username}}
	return c.do(ctx, "/v1/profile", q)
}

func (c *client) FetchPosts(ctx context.Context, username string, limit int) (map[string]any, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperrors.ErrInvalidArgument
	}
	q := url.Values{"username": {username}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.do(ctx, "/v1/posts", q)
}

func (c *client) FetchStories(ctx context.Context, username string) (map[string]any, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperrors.ErrInvalidArgument
	}
	return c.do(ctx, "/v1/stories", url.Values{"username": {username}})
}

func (c *client) FetchHighlights(ctx context.Context, username string) (map[string]any, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperrors.ErrInvalidArgument
	}
	return c.do(ctx, "/v1/highlights", url.Values{"username": {username}})
}

func (c *client) FetchComments(ctx context.Context, mediaID string, limit int) (map[string]any, error) {
	if strings.TrimSpace(mediaID) == "" {
		return nil, apperrors.ErrInvalidArgument
	}
	q := url.Values{"media_id": {mediaID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.do(ctx, "/v1/comments", q)
}

func (c *client) FetchSimilarAccounts(ctx context.Context, username string) (map[string]any, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperrors.ErrInvalidArgument
	}
	return c.do(ctx, "/v1/similar_accounts", url.Values{"username": {username}})
}

func (c *client) Search(ctx context.Context, kind, query string) (map[string]any, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.ErrInvalidArgument
	}
	q := url.Values{"kind": {kind}, "q": {query}}
	return c.do(ctx, "/v1/search", q)
}
