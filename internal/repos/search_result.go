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

type SearchResultRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.SearchResult) (Outcome, error)
	UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.SearchResult) (BatchOutcome, error)
	GetFresh(ctx context.Context, tx *gorm.DB, kind, query string, since time.Time) ([]*types.SearchResult, error)
}

type searchResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSearchResultRepo(db *gorm.DB, baseLog *logger.Logger) SearchResultRepo {
	return &searchResultRepo{db: db, log: baseLog.With("repo", "SearchResultRepo")}
}

func (r *searchResultRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.SearchResult) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.Kind == "" || rec.Query == "" || rec.ResultID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "search_result", Field: "kind/query/result_id", Reason: "is required"}
	}

	ins := *rec
	ins.ID = uuid.New()

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "query"}, {Name: "result_id"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("search_result insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	// Expired or refreshed entry: overwrite payload and fetched_at in place
	// so the same (kind, query, result) never accumulates rows.
	updates := map[string]any{
		"fetched_at": rec.FetchedAt,
		"updated_at": time.Now().UTC(),
	}
	setJSON(updates, "payload", rec.Payload)

	if err := db.WithContext(ctx).
		Model(&types.SearchResult{}).
		Where("kind = ? AND query = ? AND result_id = ?", rec.Kind, rec.Query, rec.ResultID).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("search_result update", err)
	}
	return OutcomeUpdated, nil
}

func (r *searchResultRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.SearchResult) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.Upsert(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("search_result upsert rejected", "kind", rec.Kind, "query", rec.Query, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}

func (r *searchResultRepo) GetFresh(ctx context.Context, tx *gorm.DB, kind, query string, since time.Time) ([]*types.SearchResult, error) {
	db := useDB(tx, r.db)
	var rows []*types.SearchResult
	if err := db.WithContext(ctx).
		Where("kind = ? AND query = ? AND fetched_at > ?", kind, query, since).
		Order("fetched_at DESC").
		Find(&rows).Error; err != nil {
		return nil, persistErr("search_result get fresh", err)
	}
	return rows, nil
}
