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

// HashtagRepo, LocationRepo and AudioRepo hold the reference entities posts
// point at. They have no parent, so upserts never dangle.

type HashtagRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.HashtagData) (Outcome, error)
	UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.HashtagData) (BatchOutcome, error)
}

type hashtagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHashtagRepo(db *gorm.DB, baseLog *logger.Logger) HashtagRepo {
	return &hashtagRepo{db: db, log: baseLog.With("repo", "HashtagRepo")}
}

func (r *hashtagRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.HashtagData) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.Hashtag == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "hashtag_data", Field: "hashtag", Reason: "is required"}
	}

	ins := *rec
	ins.ID = uuid.New()
	ins.UsageCount = insertCount(rec.UsageCount)
	ins.MediaCount = insertCount(rec.MediaCount)

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hashtag"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("hashtag_data insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	setCounter(updates, "usage_count", rec.UsageCount)
	setCounter(updates, "media_count", rec.MediaCount)

	if err := db.WithContext(ctx).
		Model(&types.HashtagData{}).
		Where("hashtag = ?", rec.Hashtag).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("hashtag_data update", err)
	}
	return OutcomeUpdated, nil
}

func (r *hashtagRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.HashtagData) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.Upsert(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("hashtag_data upsert rejected", "hashtag", rec.Hashtag, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}

type LocationRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.LocationData) (Outcome, error)
	UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.LocationData) (BatchOutcome, error)
}

type locationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLocationRepo(db *gorm.DB, baseLog *logger.Logger) LocationRepo {
	return &locationRepo{db: db, log: baseLog.With("repo", "LocationRepo")}
}

func (r *locationRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.LocationData) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.LocationID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "location_data", Field: "location_id", Reason: "is required"}
	}

	ins := *rec
	ins.ID = uuid.New()

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "location_id"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("location_data insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	setString(updates, "name", rec.Name)
	setFloat(updates, "lat", rec.Lat)
	setFloat(updates, "lng", rec.Lng)

	if err := db.WithContext(ctx).
		Model(&types.LocationData{}).
		Where("location_id = ?", rec.LocationID).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("location_data update", err)
	}
	return OutcomeUpdated, nil
}

func (r *locationRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.LocationData) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.Upsert(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("location_data upsert rejected", "location_id", rec.LocationID, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}

type AudioRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.AudioData) (Outcome, error)
	UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.AudioData) (BatchOutcome, error)
}

type audioRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAudioRepo(db *gorm.DB, baseLog *logger.Logger) AudioRepo {
	return &audioRepo{db: db, log: baseLog.With("repo", "AudioRepo")}
}

func (r *audioRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.AudioData) (Outcome, error) {
	db := useDB(tx, r.db)
	if rec.AudioID == "" {
		return OutcomeNone, &apperrors.ValidationError{EntityKind: "audio_data", Field: "audio_id", Reason: "is required"}
	}

	ins := *rec
	ins.ID = uuid.New()
	ins.UsageCount = insertCount(rec.UsageCount)

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "audio_id"}},
			DoNothing: true,
		}).
		Create(&ins)
	if res.Error != nil {
		return OutcomeNone, persistErr("audio_data insert", res.Error)
	}
	if res.RowsAffected > 0 {
		return OutcomeInserted, nil
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	setCounter(updates, "usage_count", rec.UsageCount)
	setString(updates, "title", rec.Title)
	setString(updates, "artist", rec.Artist)

	if err := db.WithContext(ctx).
		Model(&types.AudioData{}).
		Where("audio_id = ?", rec.AudioID).
		Updates(updates).Error; err != nil {
		return OutcomeNone, persistErr("audio_data update", err)
	}
	return OutcomeUpdated, nil
}

func (r *audioRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, recs []*types.AudioData) (BatchOutcome, error) {
	var out BatchOutcome
	for _, rec := range recs {
		o, err := r.Upsert(ctx, tx, rec)
		if err != nil {
			var pe *apperrors.PersistenceError
			if errors.As(err, &pe) {
				return out, err
			}
			r.log.Warn("audio_data upsert rejected", "audio_id", rec.AudioID, "error", err)
			out.reject(err)
			continue
		}
		out.add(o)
	}
	return out, nil
}
