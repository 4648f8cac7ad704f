package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Collection run / entity-kind statuses.
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
	RunStatusSkipped = "skipped"
)

// DataCollectionLog is the append-only audit trail of collection runs. One
// row per entity kind plus a terminal row with entity_kind = "run". Rows are
// immutable once written.
type DataCollectionLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID       uuid.UUID      `gorm:"type:uuid;index;not null;column:run_id" json:"run_id"`
	Target      string         `gorm:"index;not null;column:target" json:"target"`
	EntityKind  string         `gorm:"not null;column:entity_kind" json:"entity_kind"`
	Status      string         `gorm:"not null;column:status" json:"status"`
	Inserted    int            `gorm:"not null;default:0;column:inserted" json:"inserted"`
	Updated     int            `gorm:"not null;default:0;column:updated" json:"updated"`
	Skipped     int            `gorm:"not null;default:0;column:skipped" json:"skipped"`
	Failed      int            `gorm:"not null;default:0;column:failed" json:"failed"`
	ErrorDetail datatypes.JSON `gorm:"column:error_detail" json:"error_detail,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (DataCollectionLog) TableName() string { return "data_collection_log" }
