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

type StoryRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.Story) (Outcome, error)
	UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.Story) (BatchOutcome, error)
}

type storyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoryRepo(db *gorm.DB, baseLog *logger.Logger) StoryRepo {
	return &storyRepo{db: db, log: baseLog.With("repo", "StoryRepo")}
}

func (r *storyRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.Story) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.StoryID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "story", Field: "story_id", Reason: "is required"}
	}
	if rec.Username == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "story", Field: "username", Reason: "is required"}
	}

	var parents int64
	if err := db.WithContext(ctx).
		Model(&types.Profile{}).
		Where("username = ?", rec.Username).
		Count(&parents).Error; err != nil {
		return OutcomeNone, persistErr("story parent check", err)
	}
	if parents == 0 {
		return OutcomeNone, &apperrors.DanglingReferenceError{EntityKind: "story", ParentKind: "profile", ParentKey: rec.Username}
	}

	ins := *rec
	ins.ID = uuid.New()
	ins.ViewCount = insertCount(rec.ViewCount)

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "story_id"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("story insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	setCounter(updates, "view_count", rec.ViewCount)
	setString(updates, "media_url", rec.MediaURL)
	setString(updates, "media_type", rec.MediaType)
	setTime(updates, "expires_at", rec.ExpiresAt)

	if err := db.WithContext(ctx).
		Model(&types.Story{}).
		Where("story_id = ?", rec.StoryID).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("story update", err)
	}
	return OutcomeUpdated, nil
}

func (r *storyRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.Story) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.Upsert(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("story upsert rejected", "story_id", rec.StoryID, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}
