package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/pkg/enums"
)

// DesignElement is one canvas element on a saved design. Element kinds carry
// different per-element surcharges in the pricing engine.
type DesignElement struct {
	Kind    enums.DesignElementKind `json:"kind"`
	Content string                  `json:"content,omitempty"`
	URL     string                  `json:"url,omitempty"`
}

// Design is a saved custom design a user can order garments from.
type Design struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Title        string          `gorm:"column:title;not null"`
	Elements     []DesignElement `gorm:"column:elements;type:jsonb;serializer:json"`
	HasBackPrint bool            `gorm:"column:has_back_print;not null;default:false"`
	PreviewURL   *string         `gorm:"column:preview_url"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// ElementCount tallies elements of the given kind.
func (d *Design) ElementCount(kind enums.DesignElementKind) int {
	count := 0
	for _, el := range d.Elements {
		if el.Kind == kind {
			count++
		}
	}
	return count
}
