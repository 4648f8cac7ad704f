package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Search result kinds.
const (
	SearchKindUser     = "user"
	SearchKindLocation = "location"
	SearchKindAudio    = "audio"
)

func ValidSearchKind(kind string) bool {
	switch kind {
	case SearchKindUser, SearchKindLocation, SearchKindAudio:
		return true
	}
	return false
}

// SearchResult caches one provider search hit. Rows for the same
// (kind, query, result_id) are overwritten in place when refetched after the
// TTL, so stale entries never pile up.
type SearchResult struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Kind      string         `gorm:"uniqueIndex:idx_search_entry;not null;column:kind" json:"kind"`
	Query     string         `gorm:"uniqueIndex:idx_search_entry;not null;column:query" json:"query"`
	ResultID  string         `gorm:"uniqueIndex:idx_search_entry;not null;column:result_id" json:"result_id"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload"`
	FetchedAt time.Time      `gorm:"index;not null;column:fetched_at" json:"fetched_at"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (SearchResult) TableName() string { return "search_result" }
