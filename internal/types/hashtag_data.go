package types

import (
	"time"

	"github.com/google/uuid"
)

type HashtagData struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Hashtag    string    `gorm:"uniqueIndex;not null;column:hashtag" json:"hashtag"`
	UsageCount int64     `gorm:"not null;default:0;column:usage_count" json:"usage_count"`
	MediaCount int64     `gorm:"not null;default:0;column:media_count" json:"media_count"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (HashtagData) TableName() string { return "hashtag_data" }
