package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/pkg/enums"
)

// OrderItem is a tagged line-item variant: Kind selects whether ProductID or
// DesignID is set, never both.
type OrderItem struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Kind           enums.OrderItemKind `gorm:"column:kind;type:text;not null"`
	ProductID      *uuid.UUID          `gorm:"column:product_id;type:uuid"`
	DesignID       *uuid.UUID          `gorm:"column:design_id;type:uuid"`
	Name           string              `gorm:"column:name;not null"`
	Color          *string             `gorm:"column:color"`
	Size           *string             `gorm:"column:size"`
	Qty            int                 `gorm:"column:qty;not null"`
	UnitPriceCents int64               `gorm:"column:unit_price_cents;not null"`
	TotalCents     int64               `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
}
