package types

import (
	"time"

	"github.com/google/uuid"
)

// Profile is keyed by username: re-collection must update this row, never
// add another one.
type Profile struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username        string     `gorm:"uniqueIndex;not null;column:username" json:"username"`
	FullName        string     `gorm:"column:full_name" json:"full_name"`
	Bio             string     `gorm:"column:bio" json:"bio"`
	ProfilePicURL   string     `gorm:"column:profile_pic_url" json:"profile_pic_url"`
	FollowerCount   int64      `gorm:"not null;default:0;column:follower_count" json:"follower_count"`
	FollowingCount  int64      `gorm:"not null;default:0;column:following_count" json:"following_count"`
	PostCount       int64      `gorm:"not null;default:0;column:post_count" json:"post_count"`
	IsVerified      bool       `gorm:"not null;default:false;column:is_verified" json:"is_verified"`
	IsPrivate       bool       `gorm:"not null;default:false;column:is_private" json:"is_private"`
	LastCollectedAt *time.Time `gorm:"column:last_collected_at" json:"last_collected_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

func (Profile) TableName() string { return "profile" }
