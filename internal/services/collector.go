package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/gramlytics/gramlytics-backend/internal/clients/provider"
	redisclient "github.com/gramlytics/gramlytics-backend/internal/clients/redis"
	"github.com/gramlytics/gramlytics-backend/internal/logger"
	"github.com/gramlytics/gramlytics-backend/internal/normalize"
	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
	"github.com/gramlytics/gramlytics-backend/internal/repos"
	"github.com/gramlytics/gramlytics-backend/internal/types"
	"github.com/gramlytics/gramlytics-backend/internal/utils"
)

// Entity kinds a run walks through, in dependency order. The profile row
// must exist before any child kind persists.
const (
	KindProfile    = "profile"
	KindPosts      = "posts"
	KindReferences = "references"
	KindSimilar    = "similar_accounts"
	KindStories    = "stories"
	KindHighlights = "highlights"
	KindComments   = "comments"
	KindRun        = "run"
)

// RunNotifier publishes run lifecycle events. May be nil when no bus is
// configured; the collector treats that as a no-op.
type RunNotifier interface {
	Publish(ctx context.Context, evt redisclient.RunEvent) error
}

// KindOutcome is the per-entity-kind result of one collection run.
type KindOutcome struct {
	Kind    string             `json:"kind"`
	Status  string             `json:"status"`
	Outcome repos.BatchOutcome `json:"outcome"`
	Error   string             `json:"error,omitempty"`
}

// RunSummary is the caller-facing view of one collection run.
type RunSummary struct {
	RunID      uuid.UUID     `json:"run_id"`
	Target     string        `json:"target"`
	Status     string        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Kinds      []KindOutcome `json:"kinds"`
}

func (s *RunSummary) totals() (inserted, updated int) {
	for _, k := range s.Kinds {
		inserted += k.Outcome.Inserted
		updated += k.Outcome.Updated
	}
	return
}

// CollectorService orchestrates a full data collection run for one target
// profile: fetch, normalize and persist each entity kind, contain per-kind
// failures, and leave an audit trail in data_collection_log.
type CollectorService interface {
	Collect(ctx context.Context, username string) (*RunSummary, error)
	CollectionStatus(ctx context.Context, username string) (*RunSummary, error)
}

// CollectorDeps wires the collector's collaborators.
type CollectorDeps struct {
	Client     provider.Client
	Usage      UsageTracker
	Profiles   repos.ProfileRepo
	Posts      repos.MediaPostRepo
	Stories    repos.StoryRepo
	Highlights repos.HighlightRepo
	Comments   repos.CommentRepo
	Hashtags   repos.HashtagRepo
	Locations  repos.LocationRepo
	Audios     repos.AudioRepo
	Similar    repos.SimilarAccountRepo
	RunLog     repos.CollectionLogRepo
	Notifier   RunNotifier
}

type collectorService struct {
	CollectorDeps
	log           *logger.Logger
	postsLimit    int
	commentsPosts int
	commentsLimit int

	nowFn func() time.Time
}

// NewCollectorService reads COLLECTOR_POSTS_LIMIT (default 24),
// COLLECTOR_COMMENTS_POSTS (default 12) and COLLECTOR_COMMENTS_LIMIT
// (default 50).
func NewCollectorService(deps CollectorDeps, baseLog *logger.Logger) CollectorService {
	return &collectorService{
		CollectorDeps: deps,
		log:           baseLog.With("service", "CollectorService"),
		postsLimit:    utils.GetEnvAsInt("COLLECTOR_POSTS_LIMIT", 24, baseLog),
		commentsPosts: utils.GetEnvAsInt("COLLECTOR_COMMENTS_POSTS", 12, baseLog),
		commentsLimit: utils.GetEnvAsInt("COLLECTOR_COMMENTS_LIMIT", 50, baseLog),
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

// kindStatus derives the per-kind status from the batch outcome.
func kindStatus(out repos.BatchOutcome, err error) string {
	if err != nil {
		return types.RunStatusFailed
	}
	if out.Failed > 0 || out.Skipped > 0 {
		return types.RunStatusPartial
	}
	return types.RunStatusSuccess
}

// errorDetail serializes the failure context of one kind for the audit row.
func errorDetail(err error, skipped []normalize.SkipReport) datatypes.JSON {
	if err == nil && len(skipped) == 0 {
		return nil
	}
	detail := map[string]any{}
	if err != nil {
		detail["error"] = err.Error()
	}
	if len(skipped) > 0 {
		detail["skipped"] = skipped
	}
	raw, mErr := json.Marshal(detail)
	if mErr != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func (c *collectorService) Collect(ctx context.Context, username string) (*RunSummary, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, apperrors.ErrInvalidArgument
	}

	summary := &RunSummary{
		RunID:     uuid.New(),
		Target:    username,
		StartedAt: c.nowFn(),
	}
	log := c.log.With("run_id", summary.RunID.String(), "target", username)

	if err := c.Usage.CheckBudget(ctx); err != nil {
		summary.Status = types.RunStatusSkipped
		summary.FinishedAt = c.nowFn()
		c.appendRunRow(ctx, summary, err)
		log.Warn("collection run skipped", "error", err)
		return summary, err
	}

	log.Info("collection run starting")

	// Profile first. Every child kind references it by username, so a
	// profile failure fails the whole run.
	profileOutcome, profileErr := c.collectProfile(ctx, username)
	c.recordKind(ctx, summary, KindProfile, profileOutcome, nil, profileErr)
	if profileErr != nil {
		return c.finishRun(ctx, summary, types.RunStatusFailed, profileErr, log)
	}

	var fatal error

	if err := ctx.Err(); err != nil {
		return c.finishRun(ctx, summary, types.RunStatusFailed, err, log)
	}
	postsOut, refsOut, postsSkipped, postsErr := c.collectPosts(ctx, username)
	c.recordKind(ctx, summary, KindPosts, postsOut, postsSkipped, postsErr)
	if postsErr == nil {
		c.recordKind(ctx, summary, KindReferences, refsOut, nil, nil)
	}
	if isFatal(postsErr) {
		fatal = postsErr
	}

	if fatal == nil {
		if err := ctx.Err(); err != nil {
			return c.finishRun(ctx, summary, types.RunStatusFailed, err, log)
		}
		simOut, simSkipped, simErr := c.collectSimilar(ctx, username)
		c.recordKind(ctx, summary, KindSimilar, simOut, simSkipped, simErr)
		if isFatal(simErr) {
			fatal = simErr
		}
	}

	// Stories and highlights touch disjoint tables; run them concurrently.
	if fatal == nil && ctx.Err() == nil {
		var (
			storiesOut, highlightsOut   repos.BatchOutcome
			storiesSkip, highlightsSkip []normalize.SkipReport
			storiesErr, highlightsErr   error
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			storiesOut, storiesSkip, storiesErr = c.collectStories(gctx, username)
			return nil
		})
		g.Go(func() error {
			highlightsOut, highlightsSkip, highlightsErr = c.collectHighlights(gctx, username)
			return nil
		})
		_ = g.Wait()
		c.recordKind(ctx, summary, KindStories, storiesOut, storiesSkip, storiesErr)
		c.recordKind(ctx, summary, KindHighlights, highlightsOut, highlightsSkip, highlightsErr)
		if isFatal(storiesErr) {
			fatal = storiesErr
		} else if isFatal(highlightsErr) {
			fatal = highlightsErr
		}
	}

	if fatal == nil && ctx.Err() == nil {
		out, skipped, err := c.collectComments(ctx, username)
		c.recordKind(ctx, summary, KindComments, out, skipped, err)
		if isFatal(err) {
			fatal = err
		}
	}

	if fatal != nil {
		return c.finishRun(ctx, summary, types.RunStatusFailed, fatal, log)
	}
	if err := ctx.Err(); err != nil {
		return c.finishRun(ctx, summary, types.RunStatusFailed, err, log)
	}

	status := types.RunStatusSuccess
	for _, k := range summary.Kinds {
		if k.Status != types.RunStatusSuccess {
			status = types.RunStatusPartial
			break
		}
	}

	if err := c.Profiles.TouchCollected(ctx, nil, username, c.nowFn()); err != nil {
		log.Warn("last_collected_at update failed", "error", err)
	}

	return c.finishRun(ctx, summary, status, nil, log)
}

// isFatal reports whether a kind error must abort the rest of the run.
// Store failures poison every later kind; provider failures stay contained.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	var pe *apperrors.PersistenceError
	return errors.As(err, &pe)
}

func (c *collectorService) recordKind(ctx context.Context, summary *RunSummary, kind string, out repos.BatchOutcome, skipped []normalize.SkipReport, err error) {
	status := kindStatus(out, err)
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	summary.Kinds = append(summary.Kinds, KindOutcome{Kind: kind, Status: status, Outcome: out, Error: errMsg})

	row := &types.DataCollectionLog{
		RunID:       summary.RunID,
		Target:      summary.Target,
		EntityKind:  kind,
		Status:      status,
		Inserted:    out.Inserted,
		Updated:     out.Updated,
		Skipped:     out.Skipped,
		Failed:      out.Failed,
		ErrorDetail: errorDetail(err, skipped),
	}
	// Audit rows must land even when the run's context was cancelled; they
	// are the only record of why the run stopped.
	if aErr := c.RunLog.Append(context.WithoutCancel(ctx), nil, row); aErr != nil {
		c.log.Error("collection log append failed", "run_id", summary.RunID.String(), "kind", kind, "error", aErr)
	}
}

func (c *collectorService) appendRunRow(ctx context.Context, summary *RunSummary, runErr error) {
	inserted, updated := summary.totals()
	row := &types.DataCollectionLog{
		RunID:       summary.RunID,
		Target:      summary.Target,
		EntityKind:  KindRun,
		Status:      summary.Status,
		Inserted:    inserted,
		Updated:     updated,
		ErrorDetail: errorDetail(runErr, nil),
	}
	for _, k := range summary.Kinds {
		row.Skipped += k.Outcome.Skipped
		row.Failed += k.Outcome.Failed
	}
	if err := c.RunLog.Append(context.WithoutCancel(ctx), nil, row); err != nil {
		c.log.Error("collection log append failed", "run_id", summary.RunID.String(), "kind", KindRun, "error", err)
	}
}

func (c *collectorService) finishRun(ctx context.Context, summary *RunSummary, status string, runErr error, log *logger.Logger) (*RunSummary, error) {
	summary.Status = status
	summary.FinishedAt = c.nowFn()
	c.appendRunRow(ctx, summary, runErr)

	inserted, updated := summary.totals()
	if c.Notifier != nil {
		evt := redisclient.RunEvent{
			RunID:    summary.RunID.String(),
			Target:   summary.Target,
			Status:   status,
			Inserted: int64(inserted),
			Updated:  int64(updated),
			At:       summary.FinishedAt,
		}
		if err := c.Notifier.Publish(context.WithoutCancel(ctx), evt); err != nil {
			log.Warn("run event publish failed", "error", err)
		}
	}

	if runErr != nil {
		log.Error("collection run finished", "status", status, "error", runErr)
		return summary, runErr
	}
	log.Info("collection run finished", "status", status, "inserted", inserted, "updated", updated)
	return summary, nil
}

func (c *collectorService) collectProfile(ctx context.Context, username string) (repos.BatchOutcome, error) {
	var out repos.BatchOutcome

	payload, err := c.Client.FetchProfile(ctx, username)
	if err != nil {
		return out, err
	}
	rec, err := normalize.Profile(payload)
	if err != nil {
		return out, err
	}
	// The provider resolves aliases; trust the requested handle as the
	// stored natural key so children never dangle.
	rec.Username = username

	outcome, err := c.Profiles.Upsert(ctx, nil, rec)
	if err != nil {
		return out, err
	}
	switch outcome {
	case repos.OutcomeInserted:
		out.Inserted++
	case repos.OutcomeUpdated:
		out.Updated++
	}
	return out, nil
}

// collectPosts persists the post payload in two buckets: the post rows
// themselves and the reference entities the payload mentions (locations,
// audio, hashtags, post-hashtag join rows). They are audited as separate
// kinds so post counts stay post counts.
func (c *collectorService) collectPosts(ctx context.Context, username string) (repos.BatchOutcome, repos.BatchOutcome, []normalize.SkipReport, error) {
	var posts, refs repos.BatchOutcome

	payload, err := c.Client.FetchPosts(ctx, username, c.postsLimit)
	if err != nil {
		return posts, refs, nil, err
	}
	recs := normalize.Posts(payload, username)

	// Reference entities first so posts can point at them.
	locOut, err := c.Locations.UpsertBatch(ctx, nil, recs.Locations)
	if err != nil {
		return posts, refs, recs.Skipped, err
	}
	refs.Merge(locOut)

	audioOut, err := c.Audios.UpsertBatch(ctx, nil, recs.Audios)
	if err != nil {
		return posts, refs, recs.Skipped, err
	}
	refs.Merge(audioOut)

	tagOut, err := c.Hashtags.UpsertBatch(ctx, nil, recs.Hashtags)
	if err != nil {
		return posts, refs, recs.Skipped, err
	}
	refs.Merge(tagOut)

	postOut, err := c.Posts.UpsertBatch(ctx, nil, recs.Posts)
	if err != nil {
		return posts, refs, recs.Skipped, err
	}
	posts.Merge(postOut)

	for _, ref := range recs.HashtagRefs {
		o, err := c.Posts.UpsertHashtagRef(ctx, nil, ref.MediaID, ref.Hashtag)
		if err != nil {
			if isFatal(err) {
				return posts, refs, recs.Skipped, err
			}
			refs.Failed++
			continue
		}
		switch o {
		case repos.OutcomeInserted:
			refs.Inserted++
		case repos.OutcomeUpdated:
			refs.Updated++
		}
	}

	posts.Skipped += len(recs.Skipped)
	return posts, refs, recs.Skipped, nil
}

func (c *collectorService) collectSimilar(ctx context.Context, username string) (repos.BatchOutcome, []normalize.SkipReport, error) {
	var out repos.BatchOutcome

	payload, err := c.Client.FetchSimilarAccounts(ctx, username)
	if err != nil {
		return out, nil, err
	}
	recs, skipped := normalize.SimilarAccounts(payload, username)

	batchOut, err := c.Similar.UpsertBatch(ctx, nil, recs)
	if err != nil {
		return out, skipped, err
	}
	out.Merge(batchOut)
	out.Skipped += len(skipped)
	return out, skipped, nil
}

func (c *collectorService) collectStories(ctx context.Context, username string) (repos.BatchOutcome, []normalize.SkipReport, error) {
	var out repos.BatchOutcome

	payload, err := c.Client.FetchStories(ctx, username)
	if err != nil {
		return out, nil, err
	}
	recs, skipped := normalize.Stories(payload, username)

	batchOut, err := c.Stories.UpsertBatch(ctx, nil, recs)
	if err != nil {
		return out, skipped, err
	}
	out.Merge(batchOut)
	out.Skipped += len(skipped)
	return out, skipped, nil
}

func (c *collectorService) collectHighlights(ctx context.Context, username string) (repos.BatchOutcome, []normalize.SkipReport, error) {
	var out repos.BatchOutcome

	payload, err := c.Client.FetchHighlights(ctx, username)
	if err != nil {
		return out, nil, err
	}
	recs := normalize.Highlights(payload, username)

	reelOut, err := c.Highlights.UpsertBatch(ctx, nil, recs.Highlights)
	if err != nil {
		return out, recs.Skipped, err
	}
	out.Merge(reelOut)

	storyOut, err := c.Highlights.UpsertStoryBatch(ctx, nil, recs.Stories)
	if err != nil {
		return out, recs.Skipped, err
	}
	out.Merge(storyOut)
	out.Skipped += len(recs.Skipped)
	return out, recs.Skipped, nil
}

func (c *collectorService) collectComments(ctx context.Context, username string) (repos.BatchOutcome, []normalize.SkipReport, error) {
	var out repos.BatchOutcome
	var allSkipped []normalize.SkipReport

	mediaIDs, err := c.Posts.ListMediaIDs(ctx, nil, username, c.commentsPosts)
	if err != nil {
		return out, nil, err
	}

	for _, mediaID := range mediaIDs {
		if err := ctx.Err(); err != nil {
			return out, allSkipped, err
		}
		if err := c.Usage.CheckBudget(ctx); err != nil {
			return out, allSkipped, err
		}

		payload, err := c.Client.FetchComments(ctx, mediaID, c.commentsLimit)
		if err != nil {
			// One post's comment fetch failing should not starve the rest.
			c.log.Warn("comment fetch failed", "media_id", mediaID, "error", err)
			out.Failed++
			continue
		}
		recs := normalize.Comments(payload, mediaID)

		commentOut, err := c.Comments.UpsertBatch(ctx, nil, recs.Comments)
		if err != nil {
			return out, allSkipped, err
		}
		out.Merge(commentOut)

		replyOut, err := c.Comments.UpsertReplyBatch(ctx, nil, recs.Replies)
		if err != nil {
			return out, allSkipped, err
		}
		out.Merge(replyOut)

		likeOut, err := c.Comments.UpsertLikeBatch(ctx, nil, recs.Likes)
		if err != nil {
			return out, allSkipped, err
		}
		out.Merge(likeOut)

		out.Skipped += len(recs.Skipped)
		allSkipped = append(allSkipped, recs.Skipped...)
	}
	return out, allSkipped, nil
}

// CollectionStatus rebuilds the latest run's summary from the audit trail.
func (c *collectorService) CollectionStatus(ctx context.Context, username string) (*RunSummary, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, apperrors.ErrInvalidArgument
	}

	rows, err := c.RunLog.LastRun(ctx, nil, username)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrNotFound
	}

	summary := &RunSummary{Target: username}
	for _, row := range rows {
		summary.RunID = row.RunID
		if row.EntityKind == KindRun {
			summary.Status = row.Status
			summary.FinishedAt = row.CreatedAt
			continue
		}
		if summary.StartedAt.IsZero() || row.CreatedAt.Before(summary.StartedAt) {
			summary.StartedAt = row.CreatedAt
		}
		summary.Kinds = append(summary.Kinds, KindOutcome{
			Kind:   row.EntityKind,
			Status: row.Status,
			Outcome: repos.BatchOutcome{
				Inserted: row.Inserted,
				Updated:  row.Updated,
				Skipped:  row.Skipped,
				Failed:   row.Failed,
			},
		})
	}
	return summary, nil
}
