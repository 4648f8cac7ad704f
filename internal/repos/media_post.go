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

type MediaPostRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.MediaPost) (Outcome, error)
	UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.MediaPost) (BatchOutcome, error)
	UpsertHashtagRef(ctx context.Context, tx *gorm.DB, mediaID, hashtag string) (Outcome, error)
	GetByMediaID(ctx context.Context, tx *gorm.DB, mediaID string) (*types.MediaPost, error)
	ListMediaIDs(ctx context.Context, tx *gorm.DB, username string, limit int) ([]string, error)
}

type mediaPostRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMediaPostRepo(db *gorm.DB, baseLog *logger.Logger) MediaPostRepo {
	return &mediaPostRepo{db: db, log: baseLog.With("repo", "MediaPostRepo")}
}

func (r *mediaPostRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.MediaPost) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.MediaID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "media_post", Field: "media_id", Reason: "is required"}
	}
	if rec.Username == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "media_post", Field: "username", Reason: "is required"}
	}

	var parents int64
	if err := db.WithContext(ctx).
		Model(&types.Profile{}).
		Where("username = ?", rec.Username).
		Count(&parents).Error; err != nil {
		return OutcomeNone, persistErr("media_post parent check", err)
	}
	if parents == 0 {
		return OutcomeNone, &apperrors.DanglingReferenceError{EntityKind: "media_post", ParentKind: "profile", ParentKey: rec.Username}
	}

	ins := *rec
	ins.ID = uuid.New()
	ins.LikeCount = insertCount(rec.LikeCount)
	ins.CommentCount = insertCount(rec.CommentCount)
	ins.SaveCount = insertCount(rec.SaveCount)
	ins.ShareCount = insertCount(rec.ShareCount)
	ins.ViewCount = insertCount(rec.ViewCount)

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "media_id"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("media_post insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	setCounter(updates, "like_count", rec.LikeCount)
	setCounter(updates, "comment_count", rec.CommentCount)
	setCounter(updates, "save_count", rec.SaveCount)
	setCounter(updates, "share_count", rec.ShareCount)
	setCounter(updates, "view_count", rec.ViewCount)
	setString(updates, "caption", rec.Caption)
	setString(updates, "media_type", rec.MediaType)
	setJSON(updates, "hashtags", rec.Hashtags)
	setJSON(updates, "mentions", rec.Mentions)
	setTime(updates, "post_datetime", rec.PostDatetime)
	setStringPtr(updates, "location_id", rec.LocationID)
	setStringPtr(updates, "audio_id", rec.AudioID)

	if err := db.WithContext(ctx).
		Model(&types.MediaPost{}).
		Where("media_id = ?", rec.MediaID).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("media_post update", err)
	}
	return OutcomeUpdated, nil
}

func (r *mediaPostRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.MediaPost) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.Upsert(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("media_post upsert rejected", "media_id", rec.MediaID, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}

func (r *mediaPostRepo) UpsertHashtagRef(ctx context.Context, tx *gorm.DB, mediaID, hashtag string) (Outcome, error) {
	db := useDB(tx, r.db)
	if mediaID == "" || hashtag == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "media_post_hashtag", Field: "media_id/hashtag", Reason: "is required"}
	}
	row := &types.MediaPostHashtag{
		ID:      uuid.New(),
		MediaID: mediaID,
		Hashtag: hashtag,
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "media_id"}, {Name: "hashtag"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return OutcomeNone, persistErr("media_post_hashtag insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}
	return OutcomeUpdated, nil
}

func (r *mediaPostRepo) GetByMediaID(ctx context.Context, tx *gorm.DB, mediaID string) (*types.MediaPost, error) {
	db := useDB(tx, r.db)
	var row types.MediaPost
	err := db.WithContext(ctx).
		Where("media_id = ?", mediaID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, persistErr("media_post get", err)
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *mediaPostRepo) ListMediaIDs(ctx context.Context, tx *gorm.DB, username string, limit int) ([]string, error) {
	db := useDB(tx, r.db)
	var ids []string
	q := db.WithContext(ctx).
		Model(&types.MediaPost{}).
		Where("username = ?", username).
		Order("post_datetime DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("media_id", &ids).Error; err != nil {
		return nil, persistErr("media_post list ids", err)
	}
	return ids, nil
}
