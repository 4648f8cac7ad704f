package types

import (
	"time"

	"github.com/google/uuid"
)

// APIUsageLog records one provider call attempt. Append-only.
type APIUsageLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Endpoint   string    `gorm:"index;not null;column:endpoint" json:"endpoint"`
	StatusCode int       `gorm:"not null;default:0;column:status_code" json:"status_code"`
	LatencyMs  int64     `gorm:"not null;default:0;column:latency_ms" json:"latency_ms"`
	CalledAt   time.Time `gorm:"index;not null;column:called_at" json:"called_at"`
}

func (APIUsageLog) TableName() string { return "api_usage_log" }
