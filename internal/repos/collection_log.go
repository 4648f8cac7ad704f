package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
	"github.com/gramlytics/gramlytics-backend/internal/types"
)

type CollectionLogRepo interface {
	Append(ctx context.Context, tx *gorm.DB, rec *types.DataCollectionLog) error
	AppendBatch(ctx context.Context, tx *gorm.DB, recs []*types.DataCollectionLog) error
	LastRun(ctx context.Context, tx *gorm.DB, target string) ([]*types.DataCollectionLog, error)
}

type collectionLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCollectionLogRepo(db *gorm.DB, baseLog *logger.Logger) CollectionLogRepo {
	return &collectionLogRepo{db: db, log: baseLog.With("repo", "CollectionLogRepo")}
}

func (r *collectionLogRepo) Append(ctx context.Context, tx *gorm.DB, rec *types.DataCollectionLog) error {
	db := useDB(tx, r.db)
	ins := *rec
	ins.ID = uuid.New()
	if ins.CreatedAt.IsZero() {
		ins.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(&ins).Error; err != nil {
		return persistErr("data_collection_log append", err)
	}
	return nil
}

func (r *collectionLogRepo) AppendBatch(ctx context.Context, tx *gorm.DB, recs []*types.DataCollectionLog) error {
	if len(recs) == 0 {
		return nil
	}
	db := useDB(tx, r.db)
	now := time.Now().UTC()
	rows := make([]*types.DataCollectionLog, 0, len(recs))
	for _, rec := range recs {
		ins := *rec
		ins.ID = uuid.New()
		if ins.CreatedAt.IsZero() {
			ins.CreatedAt = now
		}
		rows = append(rows, &ins)
	}
	if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
		return persistErr("data_collection_log append batch", err)
	}
	return nil
}

// LastRun returns every row of the most recent run for a target, terminal
// row included.
func (r *collectionLogRepo) LastRun(ctx context.Context, tx *gorm.DB, target string) ([]*types.DataCollectionLog, error) {
	db := useDB(tx, r.db)

	var last types.DataCollectionLog
	err := db.WithContext(ctx).
		Where("target = ?", target).
		Order("created_at DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return nil, persistErr("data_collection_log last", err)
	}
	if last.ID == uuid.Nil {
		return nil, nil
	}

	var rows []*types.DataCollectionLog
	if err := db.WithContext(ctx).
		Where("target = ? AND run_id = ?", target, last.RunID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, persistErr("data_collection_log run rows", err)
	}
	return rows, nil
}
