package types

import (
	"time"

	"github.com/google/uuid"
)

// SimilarAccount is derived from the provider's profile-similarity query;
// keyed by the (source, similar) username pair.
type SimilarAccount struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SourceUsername  string    `gorm:"uniqueIndex:idx_similar_pair;not null;column:source_username" json:"source_username"`
	SimilarUsername string    `gorm:"uniqueIndex:idx_similar_pair;not null;column:similar_username" json:"similar_username"`
	Rank            int       `gorm:"not null;default:0;column:rank" json:"rank"`
	Score           float64   `gorm:"not null;default:0;column:score" json:"score"`
	FullName        string    `gorm:"column:full_name" json:"full_name"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (SimilarAccount) TableName() string { return "similar_account" }
