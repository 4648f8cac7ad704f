package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
	"github.com/gramlytics/gramlytics-backend/internal/repos"
	"github.com/gramlytics/gramlytics-backend/internal/types"
)

func TestCollect_FullRunPersistsEveryKind(t *testing.T) {
	h := newCollectorHarness(t)
	h.loadHappyFixtures(t)

	summary, err := h.collector.Collect(context.Background(), "ACME ")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if summary.Status != types.RunStatusSuccess {
		t.Fatalf("status = %q, want success (kinds: %+v)", summary.Status, summary.Kinds)
	}
	if summary.Target != "acme" {
		t.Fatalf("target = %q, want normalized acme", summary.Target)
	}

	if n := countRows(t, h.db, &types.Profile{}); n != 1 {
		t.Fatalf("profiles = %d, want 1", n)
	}
	if n := countRows(t, h.db, &types.MediaPost{}); n != 2 {
		t.Fatalf("posts = %d, want 2", n)
	}
	if n := countRows(t, h.db, &types.Story{}); n != 1 {
		t.Fatalf("stories = %d, want 1", n)
	}
	if n := countRows(t, h.db, &types.Highlight{}); n != 1 {
		t.Fatalf("highlights = %d, want 1", n)
	}
	if n := countRows(t, h.db, &types.HighlightStory{}); n != 1 {
		t.Fatalf("highlight stories = %d, want 1", n)
	}
	if n := countRows(t, h.db, &types.MediaComment{}); n != 1 {
		t.Fatalf("comments = %d, want 1", n)
	}
	if n := countRows(t, h.db, &types.SimilarAccount{}); n != 1 {
		t.Fatalf("similar accounts = %d, want 1", n)
	}
	if n := countRows(t, h.db, &types.LocationData{}); n != 1 {
		t.Fatalf("locations = %d, want 1", n)
	}
	if n := countRows(t, h.db, &types.HashtagData{}); n != 1 {
		t.Fatalf("hashtags = %d, want 1", n)
	}
	if n := countRows(t, h.db, &types.MediaPostHashtag{}); n != 1 {
		t.Fatalf("hashtag refs = %d, want 1", n)
	}

	// Audit trail: one row per kind plus the terminal run row.
	rows, err := h.runLog.LastRun(context.Background(), nil, "acme")
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("audit rows = %d, want 8", len(rows))
	}

	// Reference entities (location, hashtag, join row) are audited apart
	// from the post rows themselves.
	for _, k := range summary.Kinds {
		switch k.Kind {
		case KindPosts:
			if k.Outcome.Inserted != 2 {
				t.Fatalf("posts kind inserted = %d, want 2", k.Outcome.Inserted)
			}
		case KindReferences:
			if k.Outcome.Inserted != 3 {
				t.Fatalf("references kind inserted = %d, want 3", k.Outcome.Inserted)
			}
		}
	}

	profile, err := h.profiles.GetByUsername(context.Background(), nil, "acme")
	if err != nil || profile == nil {
		t.Fatalf("profile lookup: %v, %v", profile, err)
	}
	if profile.LastCollectedAt == nil {
		t.Fatalf("last_collected_at not stamped")
	}
}

func TestCollect_ReplayIsIdempotent(t *testing.T) {
	h := newCollectorHarness(t)
	h.loadHappyFixtures(t)
	ctx := context.Background()

	if _, err := h.collector.Collect(ctx, "acme"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := h.collector.Collect(ctx, "acme")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Status != types.RunStatusSuccess {
		t.Fatalf("replay status = %q", summary.Status)
	}

	if n := countRows(t, h.db, &types.Profile{}); n != 1 {
		t.Fatalf("profiles after replay = %d, want 1", n)
	}
	if n := countRows(t, h.db, &types.MediaPost{}); n != 2 {
		t.Fatalf("posts after replay = %d, want 2", n)
	}
	if n := countRows(t, h.db, &types.MediaComment{}); n != 1 {
		t.Fatalf("comments after replay = %d, want 1", n)
	}

	// Replay updates rows, it never inserts duplicates.
	for _, k := range summary.Kinds {
		if k.Outcome.Inserted > 0 {
			t.Fatalf("kind %s inserted %d rows on replay", k.Kind, k.Outcome.Inserted)
		}
	}
}

func TestCollect_CounterMergeAcrossRuns(t *testing.T) {
	h := newCollectorHarness(t)
	h.loadHappyFixtures(t)
	ctx := context.Background()

	if _, err := h.collector.Collect(ctx, "acme"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The next payload drops the follower counter entirely; the stored
	// value must survive. Then a third run reports growth.
	h.provider.profile = fixture(t, `{"username": "acme", "full_name": "Acme Co"}`)
	if _, err := h.collector.Collect(ctx, "acme"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	p, _ := h.profiles.GetByUsername(ctx, nil, "acme")
	if p.FollowerCount != 1000 {
		t.Fatalf("follower_count after silent payload = %d, want 1000", p.FollowerCount)
	}

	h.provider.profile = fixture(t, `{"username": "acme", "follower_count": 1050}`)
	if _, err := h.collector.Collect(ctx, "acme"); err != nil {
		t.Fatalf("third run: %v", err)
	}
	p, _ = h.profiles.GetByUsername(ctx, nil, "acme")
	if p.FollowerCount != 1050 {
		t.Fatalf("follower_count after growth payload = %d, want 1050", p.FollowerCount)
	}
}

func TestCollect_ChildKindFailureIsContained(t *testing.T) {
	h := newCollectorHarness(t)
	h.loadHappyFixtures(t)
	h.provider.errs["stories"] = &apperrors.ProviderTransientError{Endpoint: "/v1/stories", StatusCode: 500, Attempts: 5}

	summary, err := h.collector.Collect(context.Background(), "acme")
	if err != nil {
		t.Fatalf("collect returned run-level error for contained failure: %v", err)
	}
	if summary.Status != types.RunStatusPartial {
		t.Fatalf("status = %q, want partial", summary.Status)
	}

	var storiesOutcome, highlightsOutcome *KindOutcome
	for i := range summary.Kinds {
		switch summary.Kinds[i].Kind {
		case KindStories:
			storiesOutcome = &summary.Kinds[i]
		case KindHighlights:
			highlightsOutcome = &summary.Kinds[i]
		}
	}
	if storiesOutcome == nil || storiesOutcome.Status != types.RunStatusFailed {
		t.Fatalf("stories outcome = %+v, want failed", storiesOutcome)
	}
	if highlightsOutcome == nil || highlightsOutcome.Status != types.RunStatusSuccess {
		t.Fatalf("highlights outcome = %+v, want success despite sibling failure", highlightsOutcome)
	}

	// The other kinds still landed.
	if n := countRows(t, h.db, &types.MediaPost{}); n != 2 {
		t.Fatalf("posts = %d, want 2", n)
	}
	if n := countRows(t, h.db, &types.Story{}); n != 0 {
		t.Fatalf("stories = %d, want 0", n)
	}
}

func TestCollect_ProfileFailureFailsRun(t *testing.T) {
	h := newCollectorHarness(t)
	h.loadHappyFixtures(t)
	h.provider.errs["profile"] = &apperrors.ProviderFatalError{Endpoint: "/v1/profile", StatusCode: 404}

	summary, err := h.collector.Collect(context.Background(), "ghost")
	if err == nil {
		t.Fatalf("expected run-level error")
	}
	if summary == nil || summary.Status != types.RunStatusFailed {
		t.Fatalf("summary = %+v, want failed", summary)
	}

	// No child kind may run without the parent row.
	if h.provider.callCount("posts") != 0 {
		t.Fatalf("posts fetched despite profile failure")
	}
	if n := countRows(t, h.db, &types.MediaPost{}); n != 0 {
		t.Fatalf("posts persisted despite profile failure: %d", n)
	}
}

// profileRepoWithCancel cancels the run's context once the profile row has
// landed, so the run is torn down exactly between stages.
type profileRepoWithCancel struct {
	repos.ProfileRepo
	cancel context.CancelFunc
}

func (r *profileRepoWithCancel) Upsert(ctx context.Context, tx *gorm.DB, rec *types.Profile) (repos.Outcome, error) {
	out, err := r.ProfileRepo.Upsert(ctx, tx, rec)
	r.cancel()
	return out, err
}

func TestCollect_CancellationBetweenStagesFailsRun(t *testing.T) {
	h := newCollectorHarness(t)
	h.loadHappyFixtures(t)
	ctx, cancel := context.WithCancel(context.Background())

	deps := h.deps
	deps.Profiles = &profileRepoWithCancel{ProfileRepo: deps.Profiles, cancel: cancel}
	collector := NewCollectorService(deps, logger.NewNop())

	summary, err := collector.Collect(ctx, "acme")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if summary == nil || summary.Status != types.RunStatusFailed {
		t.Fatalf("summary = %+v, want failed", summary)
	}

	// No later kind may run once the context is gone.
	if h.provider.callCount("posts") != 0 || h.provider.callCount("stories") != 0 {
		t.Fatalf("later kinds fetched after cancellation")
	}

	// The audit trail still records the aborted run with its reason.
	rows, err := h.runLog.LastRun(context.Background(), nil, "acme")
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	var runRow *types.DataCollectionLog
	for _, row := range rows {
		if row.EntityKind == KindRun {
			runRow = row
		}
	}
	if runRow == nil || runRow.Status != types.RunStatusFailed {
		t.Fatalf("run row = %+v, want failed", runRow)
	}
	if !strings.Contains(string(runRow.ErrorDetail), "context canceled") {
		t.Fatalf("error detail = %s, want cancellation reason", runRow.ErrorDetail)
	}
}

func TestCollect_QuotaExhaustedSkipsRun(t *testing.T) {
	h := newCollectorHarness(t)
	h.loadHappyFixtures(t)
	h.usage.budgetErr = apperrors.ErrQuotaExhausted

	summary, err := h.collector.Collect(context.Background(), "acme")
	if !errors.Is(err, apperrors.ErrQuotaExhausted) {
		t.Fatalf("err = %v, want ErrQuotaExhausted", err)
	}
	if summary.Status != types.RunStatusSkipped {
		t.Fatalf("status = %q, want skipped", summary.Status)
	}
	if h.provider.callCount("profile") != 0 {
		t.Fatalf("provider called despite exhausted quota")
	}
}

func TestCollectionStatus_RebuildsLatestRun(t *testing.T) {
	h := newCollectorHarness(t)
	h.loadHappyFixtures(t)
	ctx := context.Background()

	ran, err := h.collector.Collect(ctx, "acme")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	got, err := h.collector.CollectionStatus(ctx, "acme")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.RunID != ran.RunID {
		t.Fatalf("run id = %s, want %s", got.RunID, ran.RunID)
	}
	if got.Status != types.RunStatusSuccess {
		t.Fatalf("status = %q, want success", got.Status)
	}
	if len(got.Kinds) != 7 {
		t.Fatalf("kinds = %d, want 7", len(got.Kinds))
	}

	if _, err := h.collector.CollectionStatus(ctx, "never-collected"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
