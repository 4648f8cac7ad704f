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

type SimilarAccountRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.SimilarAccount) (Outcome, error)
	UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.SimilarAccount) (BatchOutcome, error)
}

type similarAccountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSimilarAccountRepo(db *gorm.DB, baseLog *logger.Logger) SimilarAccountRepo {
	return &similarAccountRepo{db: db, log: baseLog.With("repo", "SimilarAccountRepo")}
}

func (r *similarAccountRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.SimilarAccount) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.SourceUsername == "" || rec.SimilarUsername == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "similar_account", Field: "source_username/similar_username", Reason: "is required"}
	}

	var parents int64
	if err := db.WithContext(ctx).
		Model(&types.Profile{}).
		Where("username = ?", rec.SourceUsername).
		Count(&parents).Error; err != nil {
		return OutcomeNone, persistErr("similar_account parent check", err)
	}
	if parents == 0 {
		return OutcomeNone, &apperrors.DanglingReferenceError{EntityKind: "similar_account", ParentKind: "profile", ParentKey: rec.SourceUsername}
	}

	ins := *rec
	ins.ID = uuid.New()

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_username"}, {Name: "similar_username"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("similar_account insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	updates := map[string]any{
		"updated_at": time.Now().UTC(),
		"rank":       rec.Rank,
		"score":      rec.Score,
	}
	setString(updates, "full_name", rec.FullName)

	if err := db.WithContext(ctx).
		Model(&types.SimilarAccount{}).
		Where("source_username = ? AND similar_username = ?", rec.SourceUsername, rec.SimilarUsername).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("similar_account update", err)
	}
	return OutcomeUpdated, nil
}

func (r *similarAccountRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.SimilarAccount) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.Upsert(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("similar_account upsert rejected", "similar_username", rec.SimilarUsername, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}
