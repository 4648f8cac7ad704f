package types

import (
	"time"

	"github.com/google/uuid"
)

type AudioData struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AudioID    string    `gorm:"uniqueIndex;not null;column:audio_id" json:"audio_id"`
	Title      string    `gorm:"column:title" json:"title"`
	Artist     string    `gorm:"column:artist" json:"artist"`
	UsageCount int64     `gorm:"not null;default:0;column:usage_count" json:"usage_count"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (AudioData) TableName() string { return "audio_data" }
