package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/pkg/enums"
)

// DiscountCode is a shared mutable resource: UsageCount only ever moves
// through the atomic increment in the discounts repository (or an explicit
// admin correction), never a read-modify-write.
type DiscountCode struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string             `gorm:"column:code;uniqueIndex:idx_discount_codes_code;not null"`
	Type             enums.DiscountType `gorm:"column:type;type:text;not null"`
	Percent          int                `gorm:"column:percent;not null;default:0"`
	AmountCents      int64              `gorm:"column:amount_cents;not null;default:0"`
	MaxDiscountCents *int64             `gorm:"column:max_discount_cents"`
	StartsAt         time.Time          `gorm:"column:starts_at;not null"`
	ExpiresAt        time.Time          `gorm:"column:expires_at;not null"`
	Active           bool               `gorm:"column:active;not null;default:true"`
	UsageCount       int                `gorm:"column:usage_count;not null;default:0"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// WithinWindow reports whether now falls inside [StartsAt, ExpiresAt].
func (d *DiscountCode) WithinWindow(now time.Time) bool {
	return d != nil && !now.Before(d.StartsAt) && !now.After(d.ExpiresAt)
}
