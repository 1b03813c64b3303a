package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a fixed catalog item (as opposed to a saved custom design).
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	Description    *string   `gorm:"column:description"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Colors         []string  `gorm:"column:colors;type:jsonb;serializer:json"`
	Sizes          []string  `gorm:"column:sizes;type:jsonb;serializer:json"`
	ImageURL       *string   `gorm:"column:image_url"`
	Active         bool      `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
