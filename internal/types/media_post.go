package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MediaPost belongs to a Profile by username (natural key). LocationID and
// AudioID reference LocationData/AudioData rows collected from the same
// payload.
type MediaPost struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MediaID      string         `gorm:"uniqueIndex;not null;column:media_id" json:"media_id"`
	Username     string         `gorm:"index;not null;column:username" json:"username"`
	Caption      string         `gorm:"type:text;column:caption" json:"caption"`
	MediaType    string         `gorm:"column:media_type" json:"media_type"`
	LikeCount    int64          `gorm:"not null;default:0;column:like_count" json:"like_count"`
	CommentCount int64          `gorm:"not null;default:0;column:comment_count" json:"comment_count"`
	SaveCount    int64          `gorm:"not null;default:0;column:save_count" json:"save_count"`
	ShareCount   int64          `gorm:"not null;default:0;column:share_count" json:"share_count"`
	ViewCount    int64          `gorm:"not null;default:0;column:view_count" json:"view_count"`
	Hashtags     datatypes.JSON `gorm:"column:hashtags" json:"hashtags,omitempty"`
	Mentions     datatypes.JSON `gorm:"column:mentions" json:"mentions,omitempty"`
	PostDatetime *time.Time     `gorm:"column:post_datetime" json:"post_datetime,omitempty"`
	LocationID   *string        `gorm:"index;column:location_id" json:"location_id,omitempty"`
	AudioID      *string        `gorm:"index;column:audio_id" json:"audio_id,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (MediaPost) TableName() string { return "media_post" }

// MediaPostHashtag is the N:M join between posts and hashtags.
type MediaPostHashtag struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MediaID   string    `gorm:"uniqueIndex:idx_media_hashtag;not null;column:media_id" json:"media_id"`
	Hashtag   string    `gorm:"uniqueIndex:idx_media_hashtag;not null;column:hashtag" json:"hashtag"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (MediaPostHashtag) TableName() string { return "media_post_hashtag" }
