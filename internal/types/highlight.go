package types

import (
	"time"

	"github.com/google/uuid"
)

type Highlight struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	HighlightID string    `gorm:"uniqueIndex;not null;column:highlight_id" json:"highlight_id"`
	Username    string    `gorm:"index;not null;column:username" json:"username"`
	Title       string    `gorm:"column:title" json:"title"`
	CoverURL    string    `gorm:"column:cover_url" json:"cover_url"`
	StoryCount  int64     `gorm:"not null;default:0;column:story_count" json:"story_count"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Highlight) TableName() string { return "highlight" }

// HighlightStory pins a story into a highlight reel.
type HighlightStory struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	HighlightID string     `gorm:"uniqueIndex:idx_highlight_story;not null;column:highlight_id" json:"highlight_id"`
	StoryID     string     `gorm:"uniqueIndex:idx_highlight_story;not null;column:story_id" json:"story_id"`
	MediaURL    string     `gorm:"column:media_url" json:"media_url"`
	TakenAt     *time.Time `gorm:"column:taken_at" json:"taken_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (HighlightStory) TableName() string { return "highlight_story" }
