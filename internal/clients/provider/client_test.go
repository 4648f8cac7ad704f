package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
)

type countingRecorder struct {
	calls atomic.Int64
}

func (r *countingRecorder) Record(ctx context.Context, endpoint string, statusCode int, latency time.Duration) {
	r.calls.Add(1)
}

func newTestClient(t *testing.T, baseURL string, recorder UsageRecorder) Client {
	t.Helper()
	t.Setenv("PROVIDER_BASE_URL", baseURL)
	t.Setenv("PROVIDER_API_KEY", "test-key")
	t.Setenv("PROVIDER_MAX_RETRIES", "1")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "5")
	t.Setenv("PROVIDER_RPS", "1000")

	c, err := NewClient(logger.NewNop(), recorder)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestFetchProfile_RetriesTransientStatusThenSucceeds(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"username": "acme"}`))
	}))
	defer srv.Close()

	recorder := &countingRecorder{}
	c := newTestClient(t, srv.URL, recorder)

	payload, err := c.FetchProfile(context.Background(), "acme")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if payload["username"] != "acme" {
		t.Fatalf("payload = %v", payload)
	}
	if hits.Load() != 2 {
		t.Fatalf("server hits = %d, want 2", hits.Load())
	}
	// Every attempt is accounted, including the failed one.
	if recorder.calls.Load() != 2 {
		t.Fatalf("recorded attempts = %d, want 2", recorder.calls.Load())
	}
}

func TestFetchProfile_HonorsRetryAfterHeader(t *testing.T) {
	var hits, firstHit, secondHit atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			firstHit.Store(time.Now().UnixNano())
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondHit.Store(time.Now().UnixNano())
		_, _ = w.Write([]byte(`{"username": "acme"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	if _, err := c.FetchProfile(context.Background(), "acme"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("server hits = %d, want 2", hits.Load())
	}

	// Retry-After: 2 must dominate the 1s backoff fallback. Jitter spreads
	// the sleep by at most 20%, so the gap stays within [1.6s, 2.4s].
	gap := time.Duration(secondHit.Load() - firstHit.Load())
	if gap < 1500*time.Millisecond {
		t.Fatalf("retry gap = %v, want at least 1.5s from Retry-After", gap)
	}
	if gap > 4*time.Second {
		t.Fatalf("retry gap = %v, want under 4s", gap)
	}
}

func TestFetchProfile_FatalStatusDoesNotRetry(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.FetchProfile(context.Background(), "ghost")
	var fatal *apperrors.ProviderFatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("err = %v, want ProviderFatalError", err)
	}
	if fatal.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", fatal.StatusCode)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hits = %d, want 1 (no retry)", hits.Load())
	}
}

func TestFetchProfile_ExhaustedRetriesSurfaceTransientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.FetchProfile(context.Background(), "acme")
	var transient *apperrors.ProviderTransientError
	if !errors.As(err, &transient) {
		t.Fatalf("err = %v, want ProviderTransientError", err)
	}
	if transient.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", transient.StatusCode)
	}
	if transient.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", transient.Attempts)
	}
}

func TestSearch_WrapsTopLevelArrayPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "coffee" {
			t.Errorf("q = %q, want coffee", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"pk": 1}, {"pk": 2}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	payload, err := c.Search(context.Background(), "user", "coffee")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	items, ok := payload["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("payload = %v, want items wrapper with 2 entries", payload)
	}
}

func TestClient_SendsAuthAndRejectsEmptyArgs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	if _, err := c.FetchPosts(context.Background(), "acme", 10); err != nil {
		t.Fatalf("fetch posts: %v", err)
	}
	if _, err := c.FetchPosts(context.Background(), "  ", 10); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if _, err := c.FetchComments(context.Background(), "", 10); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}
