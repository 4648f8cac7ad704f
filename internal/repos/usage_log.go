package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
	"github.com/gramlytics/gramlytics-backend/internal/types"
)

type UsageLogRepo interface {
	Insert(ctx context.Context, tx *gorm.DB, rec *types.APIUsageLog) error
	CountSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error)
	PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type usageLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageLogRepo(db *gorm.DB, baseLog *logger.Logger) UsageLogRepo {
	return &usageLogRepo{db: db, log: baseLog.With("repo", "UsageLogRepo")}
}

func (r *usageLogRepo) Insert(ctx context.Context, tx *gorm.DB, rec *types.APIUsageLog) error {
	db := useDB(tx, r.db)
	ins := *rec
	ins.ID = uuid.New()
	if ins.CalledAt.IsZero() {
		ins.CalledAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(&ins).Error; err != nil {
		return persistErr("api_usage_log insert", err)
	}
	return nil
}

func (r *usageLogRepo) CountSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error) {
	db := useDB(tx, r.db)
	var count int64
	if err := db.WithContext(ctx).
		Model(&types.APIUsageLog{}).
		Where("called_at > ?", since).
		Count(&count).Error; err != nil {
		return 0, persistErr("api_usage_log count", err)
	}
	return count, nil
}

func (r *usageLogRepo) PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := useDB(tx, r.db)
	res := db.WithContext(ctx).
		Where("called_at < ?", cutoff).
		Delete(&types.APIUsageLog{})
	if res.Error != nil {
		return 0, persistErr("api_usage_log prune", res.Error)
	}
	return res.RowsAffected, nil
}
