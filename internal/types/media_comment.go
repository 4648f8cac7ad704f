package types

import (
	"time"

	"github.com/google/uuid"
)

// MediaComment belongs to a MediaPost by media_id.
type MediaComment struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CommentID   string     `gorm:"uniqueIndex;not null;column:comment_id" json:"comment_id"`
	MediaID     string     `gorm:"index;not null;column:media_id" json:"media_id"`
	Author      string     `gorm:"column:author" json:"author"`
	Text        string     `gorm:"type:text;column:text" json:"text"`
	LikeCount   int64      `gorm:"not null;default:0;column:like_count" json:"like_count"`
	CommentedAt *time.Time `gorm:"column:commented_at" json:"commented_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (MediaComment) TableName() string { return "media_comment" }

// CommentReply is one level below a comment; the provider nests these
// arbitrarily deep under the comment payload.
type CommentReply struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ReplyID   string     `gorm:"uniqueIndex;not null;column:reply_id" json:"reply_id"`
	CommentID string     `gorm:"index;not null;column:comment_id" json:"comment_id"`
	Author    string     `gorm:"column:author" json:"author"`
	Text      string     `gorm:"type:text;column:text" json:"text"`
	LikeCount int64      `gorm:"not null;default:0;column:like_count" json:"like_count"`
	RepliedAt *time.Time `gorm:"column:replied_at" json:"replied_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

func (CommentReply) TableName() string { return "comment_reply" }

type CommentLike struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CommentID string    `gorm:"uniqueIndex:idx_comment_like;not null;column:comment_id" json:"comment_id"`
	Username  string    `gorm:"uniqueIndex:idx_comment_like;not null;column:username" json:"username"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (CommentLike) TableName() string { return "comment_like" }
