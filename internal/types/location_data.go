package types

import (
	"time"

	"github.com/google/uuid"
)

type LocationData struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LocationID string    `gorm:"uniqueIndex;not null;column:location_id" json:"location_id"`
	Name       string    `gorm:"column:name" json:"name"`
	Lat        float64   `gorm:"column:lat" json:"lat"`
	Lng        float64   `gorm:"column:lng" json:"lng"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (LocationData) TableName() string { return "location_data" }
