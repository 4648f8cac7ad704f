package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/gramlytics/gramlytics-backend/internal/db"
	"github.com/gramlytics/gramlytics-backend/internal/logger"
	"github.com/gramlytics/gramlytics-backend/internal/repos"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(dbpkg.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func fixture(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return payload
}

// fakeProvider serves canned payloads per endpoint and can inject failures.
// Safe for concurrent use: stories and highlights are fetched in parallel.
type fakeProvider struct {
	mu         sync.Mutex
	profile    map[string]any
	posts      map[string]any
	stories    map[string]any
	highlights map[string]any
	similar    map[string]any
	comments   map[string]map[string]any
	search     map[string]any
	errs       map[string]error
	calls      map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		comments: map[string]map[string]any{},
		errs:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeProvider) serve(endpoint string, payload map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[endpoint]++
	if err := f.errs[endpoint]; err != nil {
		return nil, err
	}
	if payload == nil {
		return map[string]any{}, nil
	}
	return payload, nil
}

func (f *fakeProvider) callCount(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *fakeProvider) FetchProfile(ctx context.Context, username string) (map[string]any, error) {
	return f.serve("profile", f.profile)
}

func (f *fakeProvider) FetchPosts(ctx context.Context, username string, limit int) (map[string]any, error) {
	return f.serve("posts", f.posts)
}

func (f *fakeProvider) FetchStories(ctx context.Context, username string) (map[string]any, error) {
	return f.serve("stories", f.stories)
}

func (f *fakeProvider) FetchHighlights(ctx context.Context, username string) (map[string]any, error) {
	return f.serve("highlights", f.highlights)
}

func (f *fakeProvider) FetchComments(ctx context.Context, mediaID string, limit int) (map[string]any, error) {
	return f.serve("comments", f.comments[mediaID])
}

func (f *fakeProvider) FetchSimilarAccounts(ctx context.Context, username string) (map[string]any, error) {
	return f.serve("similar_accounts", f.similar)
}

func (f *fakeProvider) Search(ctx context.Context, kind, query string) (map[string]any, error) {
	return f.serve("search", f.search)
}

// fakeUsage satisfies UsageTracker with a settable budget error.
type fakeUsage struct {
	mu        sync.Mutex
	budgetErr error
	recorded  int
}

func (f *fakeUsage) Record(ctx context.Context, endpoint string, statusCode int, latency time.Duration) {
	f.mu.Lock()
	f.recorded++
	f.mu.Unlock()
}

func (f *fakeUsage) CheckBudget(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.budgetErr
}

func (f *fakeUsage) QuotaStatus(ctx context.Context) (QuotaStatus, error) {
	return QuotaStatus{}, nil
}

func (f *fakeUsage) Prune(ctx context.Context) (int64, error) { return 0, nil }

// collectorHarness bundles a collector wired to sqlite-backed repos. The
// deps value is kept so tests can rebuild a collector with one collaborator
// swapped out.
type collectorHarness struct {
	db        *gorm.DB
	provider  *fakeProvider
	usage     *fakeUsage
	deps      CollectorDeps
	collector CollectorService
	profiles  repos.ProfileRepo
	posts     repos.MediaPostRepo
	runLog    repos.CollectionLogRepo
}

func newCollectorHarness(t *testing.T) *collectorHarness {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	prov := newFakeProvider()
	usage := &fakeUsage{}

	profiles := repos.NewProfileRepo(gdb, log)
	posts := repos.NewMediaPostRepo(gdb, log)
	runLog := repos.NewCollectionLogRepo(gdb, log)

	deps := CollectorDeps{
		Client:     prov,
		Usage:      usage,
		Profiles:   profiles,
		Posts:      posts,
		Stories:    repos.NewStoryRepo(gdb, log),
		Highlights: repos.NewHighlightRepo(gdb, log),
		Comments:   repos.NewCommentRepo(gdb, log),
		Hashtags:   repos.NewHashtagRepo(gdb, log),
		Locations:  repos.NewLocationRepo(gdb, log),
		Audios:     repos.NewAudioRepo(gdb, log),
		Similar:    repos.NewSimilarAccountRepo(gdb, log),
		RunLog:     runLog,
	}

	return &collectorHarness{
		db:        gdb,
		provider:  prov,
		usage:     usage,
		deps:      deps,
		collector: NewCollectorService(deps, log),
		profiles:  profiles,
		posts:     posts,
		runLog:    runLog,
	}
}

func (h *collectorHarness) loadHappyFixtures(t *testing.T) {
	t.Helper()
	h.provider.profile = fixture(t, `{"username": "acme", "full_name": "Acme Co", "follower_count": 1000}`)
	h.provider.posts = fixture(t, `{"items": [
		{"id": "m1", "like_count": 10, "caption": {"text": "hi #go"},
		 "location": {"pk": 7, "name": "Pier"}},
		{"id": "m2", "like_count": 20}
	]}`)
	h.provider.stories = fixture(t, `{"items": [{"pk": "s1"}]}`)
	h.provider.highlights = fixture(t, `{"tray": [{"id": "h1", "items": [{"pk": "hs1"}]}]}`)
	h.provider.similar = fixture(t, `{"users": [{"username": "rival", "score": 0.7}]}`)
	h.provider.comments["m1"] = fixture(t, `{"comments": [{"pk": "c1", "text": "nice"}]}`)
	h.provider.comments["m2"] = fixture(t, `{"comments": []}`)
}

func countRows(t *testing.T, gdb *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}
