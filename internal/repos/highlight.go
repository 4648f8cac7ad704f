package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
	"github.com/gramlytics/gramlytics-backend/internal/types"
)

type HighlightRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.Highlight) (Outcome, error)
	UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.Highlight) (BatchOutcome, error)
	UpsertStory(ctx context.Context, tx *gorm.DB, rec *types.HighlightStory) (Outcome, error)
	UpsertStoryBatch(ctx context.Context, tx *gorm.DB, recs []*types.HighlightStory) (BatchOutcome, error)
}

type highlightRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHighlightRepo(db *gorm.DB, baseLog *logger.Logger) HighlightRepo {
	return &highlightRepo{db: db, log: baseLog.With("repo", "HighlightRepo")}
}

func (r *highlightRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.Highlight) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.HighlightID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "highlight", Field: "highlight_id", Reason: "is required"}
	}
	if rec.Username == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "highlight", Field: "username", Reason: "is required"}
	}

	var parents int64
	if err := db.WithContext(ctx).
		Model(&types.Profile{}).
		Where("username = ?", rec.Username).
		Count(&parents).Error; err != nil {
		return OutcomeNone, persistErr("highlight parent check", err)
	}
	if parents == 0 {
		return OutcomeNone, &apperrors.DanglingReferenceError{EntityKind: "highlight", ParentKind: "profile", ParentKey: rec.Username}
	}

	ins := *rec
	ins.ID = uuid.New()
	ins.StoryCount = insertCount(rec.StoryCount)

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "highlight_id"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("highlight insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	setCounter(updates, "story_count", rec.StoryCount)
	setString(updates, "title", rec.Title)
	setString(updates, "cover_url", rec.CoverURL)

	if err := db.WithContext(ctx).
		Model(&types.Highlight{}).
		Where("highlight_id = ?", rec.HighlightID).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("highlight update", err)
	}
	return OutcomeUpdated, nil
}

func (r *highlightRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.Highlight) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.Upsert(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("highlight upsert rejected", "highlight_id", rec.HighlightID, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}

func (r *highlightRepo) UpsertStory(ctx context.Context, tx *gorm.DB, rec *types.HighlightStory) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.HighlightID == "" || rec.StoryID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "highlight_story", Field: "highlight_id/story_id", Reason: "is required"}
	}

	var parents int64
	if err := db.WithContext(ctx).
		Model(&types.Highlight{}).
		Where("highlight_id = ?", rec.HighlightID).
		Count(&parents).Error; err != nil {
		return OutcomeNone, persistErr("highlight_story parent check", err)
	}
	if parents == 0 {
		return OutcomeNone, &apperrors.DanglingReferenceError{EntityKind: "highlight_story", ParentKind: "highlight", ParentKey: rec.HighlightID}
	}

	ins := *rec
	ins.ID = uuid.New()

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "highlight_id"}, {Name: "story_id"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("highlight_story insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	setString(updates, "media_url", rec.MediaURL)
	setTime(updates, "taken_at", rec.TakenAt)

	if err := db.WithContext(ctx).
		Model(&types.HighlightStory{}).
		Where("highlight_id = ? AND story_id = ?", rec.HighlightID, rec.StoryID).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("highlight_story update", err)
	}
	return OutcomeUpdated, nil
}

func (r *highlightRepo) UpsertStoryBatch(ctx context.Context, tx *gorm.DB, recs []*types.HighlightStory) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.UpsertStory(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("highlight_story upsert rejected", "highlight_id", rec.HighlightID, "story_id", rec.StoryID, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}
