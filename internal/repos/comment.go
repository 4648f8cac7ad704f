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

type CommentRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.MediaComment) (Outcome, error)
	UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.MediaComment) (BatchOutcome, error)
	UpsertReply(ctx context.Context, tx *gorm.DB, rec *types.CommentReply) (Outcome, error)
	UpsertReplyBatch(ctx context.Context, tx *gorm.DB, recs []*types.CommentReply) (BatchOutcome, error)
	UpsertLike(ctx context.Context, tx *gorm.DB, rec *types.CommentLike) (Outcome, error)
	UpsertLikeBatch(ctx context.Context, tx *gorm.DB, recs []*types.CommentLike) (BatchOutcome, error)
}

type commentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommentRepo(db *gorm.DB, baseLog *logger.Logger) CommentRepo {
	return &commentRepo{db: db, log: baseLog.With("repo", "CommentRepo")}
}

func (r *commentRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.MediaComment) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.CommentID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "media_comment", Field: "comment_id", Reason: "is required"}
	}
	if rec.MediaID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "media_comment", Field: "media_id", Reason: "is required"}
	}

	var parents int64
	if err := db.WithContext(ctx).
		Model(&types.MediaPost{}).
		Where("media_id = ?", rec.MediaID).
		Count(&parents).Error; err != nil {
		return OutcomeNone, persistErr("media_comment parent check", err)
	}
	if parents == 0 {
		return OutcomeNone, &apperrors.DanglingReferenceError{EntityKind: "media_comment", ParentKind: "media_post", ParentKey: rec.MediaID}
	}

	ins := *rec
	ins.ID = uuid.New()
	ins.LikeCount = insertCount(rec.LikeCount)

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("media_comment insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	setCounter(updates, "like_count", rec.LikeCount)
	setString(updates, "text", rec.Text)
	setString(updates, "author", rec.Author)
	setTime(updates, "commented_at", rec.CommentedAt)

	if err := db.WithContext(ctx).
		Model(&types.MediaComment{}).
		Where("comment_id = ?", rec.CommentID).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("media_comment update", err)
	}
	return OutcomeUpdated, nil
}

func (r *commentRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.MediaComment) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.Upsert(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("media_comment upsert rejected", "comment_id", rec.CommentID, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}

func (r *commentRepo) UpsertReply(ctx context.Context, tx *gorm.DB, rec *types.CommentReply) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.ReplyID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "comment_reply", Field: "reply_id", Reason: "is required"}
	}
	if rec.CommentID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "comment_reply", Field: "comment_id", Reason: "is required"}
	}

	var parents int64
	if err := db.WithContext(ctx).
		Model(&types.MediaComment{}).
		Where("comment_id = ?", rec.CommentID).
		Count(&parents).Error; err != nil {
		return OutcomeNone, persistErr("comment_reply parent check", err)
	}
	if parents == 0 {
		return OutcomeNone, &apperrors.DanglingReferenceError{EntityKind: "comment_reply", ParentKind: "media_comment", ParentKey: rec.CommentID}
	}

	ins := *rec
	ins.ID = uuid.New()
	ins.LikeCount = insertCount(rec.LikeCount)

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reply_id"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("comment_reply insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	setCounter(updates, "like_count", rec.LikeCount)
	setString(updates, "text", rec.Text)
	setString(updates, "author", rec.Author)
	setTime(updates, "replied_at", rec.RepliedAt)

	if err := db.WithContext(ctx).
		Model(&types.CommentReply{}).
		Where("reply_id = ?", rec.ReplyID).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("comment_reply update", err)
	}
	return OutcomeUpdated, nil
}

func (r *commentRepo) UpsertReplyBatch(ctx context.Context, tx *gorm.DB, recs []*types.CommentReply) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.UpsertReply(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("comment_reply upsert rejected", "reply_id", rec.ReplyID, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}

func (r *commentRepo) UpsertLike(ctx context.Context, tx *gorm.DB, rec *types.CommentLike) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.CommentID == "" || rec.Username == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "comment_like", Field: "comment_id/username", Reason: "is required"}
	}

	var parents int64
	if err := db.WithContext(ctx).
		Model(&types.MediaComment{}).
		Where("comment_id = ?", rec.CommentID).
		Count(&parents).Error; err != nil {
		return OutcomeNone, persistErr("comment_like parent check", err)
	}
	if parents == 0 {
		return OutcomeNone, &apperrors.DanglingReferenceError{EntityKind: "comment_like", ParentKind: "media_comment", ParentKey: rec.CommentID}
	}

	ins := *rec
	ins.ID = uuid.New()

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}, {Name: "username"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("comment_like insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}
	return OutcomeUpdated, nil
}

func (r *commentRepo) UpsertLikeBatch(ctx context.Context, tx *gorm.DB, recs []*types.CommentLike) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.UpsertLike(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("comment_like upsert rejected", "comment_id", rec.CommentID, "username", rec.Username, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}
