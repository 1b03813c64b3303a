package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/types"
)

// DesignOrder is the manufacturing-facing companion record for orders built
// from a saved design. Customer contact and the price breakdown are
// denormalized snapshots taken at order time so the print shop keeps working
// even if the commercial order or the user profile changes later.
type DesignOrder struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID  uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	DesignID uuid.UUID `gorm:"column:design_id;type:uuid;not null;index"`

	CustomerName  string  `gorm:"column:customer_name;not null"`
	CustomerEmail string  `gorm:"column:customer_email;not null"`
	CustomerPhone *string `gorm:"column:customer_phone"`

	SizeQuantities types.SizeQuantities `gorm:"column:size_quantities;type:jsonb;serializer:json"`
	TotalQuantity  int                  `gorm:"column:total_quantity;not null"`
	Color          *string              `gorm:"column:color"`

	PriceBreakdown types.PriceBreakdown `gorm:"column:price_breakdown;type:jsonb;serializer:json"`

	Status        enums.PrintingStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'pending'"`

	ChallanURL *string   `gorm:"column:challan_url"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
