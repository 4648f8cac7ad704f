package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
	"github.com/gramlytics/gramlytics-backend/internal/types"
)

type ProfileRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.Profile) (Outcome, error)
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.Profile, error)
	Exists(ctx context.Context, tx *gorm.DB, username string) (bool, error)
	TouchCollected(ctx context.Context, tx *gorm.DB, username string, at time.Time) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo")}
}

func (r *profileRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.Profile) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.Username == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "profile", Field: "username", Reason: "is required"}
	}

	ins := *rec
	ins.ID = uuid.New()
	ins.FollowerCount = insertCount(rec.FollowerCount)
	ins.FollowingCount = insertCount(rec.FollowingCount)
	ins.PostCount = insertCount(rec.PostCount)

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("profile insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	// Row exists: merge. Identity and created_at stay untouched.
	updates := map[string]any{"updated_at": time.Now().UTC()}
	setCounter(updates, "follower_count", rec.FollowerCount)
	setCounter(updates, "following_count", rec.FollowingCount)
	setCounter(updates, "post_count", rec.PostCount)
	setString(updates, "full_name", rec.FullName)
	setString(updates, "bio", rec.Bio)
	setString(updates, "profile_pic_url", rec.ProfilePicURL)
	updates["is_verified"] = rec.IsVerified
	updates["is_private"] = rec.IsPrivate

	if err := db.WithContext(ctx).
		Model(&types.Profile{}).
		Where("username = ?", rec.Username).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("profile update", err)
	}
	return OutcomeUpdated, nil
}

func (r *profileRepo) GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.Profile, error) {
	db := useDB(tx, r.db)
	var row types.Profile
	err := db.WithContext(ctx).
		Where("username = ?", username).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, persistErr("profile get", err)
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *profileRepo) Exists(ctx context.Context, tx *gorm.DB, username string) (bool, error) {
	db := useDB(tx, r.db)
	var count int64
	if err := db.WithContext(ctx).
		Model(&types.Profile{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, persistErr("profile exists", err)
	}
	return count > 0, nil
}

func (r *profileRepo) TouchCollected(ctx context.Context, tx *gorm.DB, username string, at time.Time) error {
	db := useDB(tx, r.db)
	if err := db.WithContext(ctx).
		Model(&types.Profile{}).
		Where("username = ?", username).
		Updates(map[string]any{"last_collected_at": at, "updated_at": at}).Error; err != nil {
		return persistErr("profile touch", err)
	}
	return nil
}
