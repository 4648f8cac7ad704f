package types

import (
	"time"

	"github.com/google/uuid"
)

type Story struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID   string     `gorm:"uniqueIndex;not null;column:story_id" json:"story_id"`
	Username  string     `gorm:"index;not null;column:username" json:"username"`
	MediaURL  string     `gorm:"column:media_url" json:"media_url"`
	MediaType string     `gorm:"column:media_type" json:"media_type"`
	ViewCount int64      `gorm:"not null;default:0;column:view_count" json:"view_count"`
	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

func (Story) TableName() string { return "story" }
