package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/types"
)

// Order is the central aggregate. Status and PaymentStatus are two independent
// lifecycles: a cancelled order and a paid order are distinguishable at the
// same time. Orders are soft-cancelled, never deleted.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber string    `gorm:"column:order_number;uniqueIndex:idx_orders_order_number;not null"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`

	Items          []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PriceBreakdown types.PriceBreakdown `gorm:"column:price_breakdown;type:jsonb;serializer:json"`
	Currency       enums.Currency       `gorm:"column:currency;type:text;not null;default:'INR'"`

	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`

	// Gateway references stay nil until a payment session exists / the
	// verification callback lands.
	GatewayOrderID   *string `gorm:"column:gateway_order_id;index"`
	GatewayPaymentID *string `gorm:"column:gateway_payment_id;index"`
	GatewaySignature *string `gorm:"column:gateway_signature"`

	DiscountCode  *string `gorm:"column:discount_code"`
	DiscountCents int64   `gorm:"column:discount_cents;not null;default:0"`

	ShippingMethod  enums.ShippingMethod `gorm:"column:shipping_method;type:text;not null;default:'standard'"`
	ShippingAddress *types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  *types.Address       `gorm:"column:billing_address;type:jsonb;serializer:json"`

	IsExpressCheckout  bool       `gorm:"column:is_express_checkout;not null;default:false"`
	IsGuestOrder       bool       `gorm:"column:is_guest_order;not null;default:false"`
	GuestSessionToken  *string    `gorm:"column:guest_session_token"`
	GuestSessionExpiry *time.Time `gorm:"column:guest_session_expiry"`

	DesignOrderID *uuid.UUID `gorm:"column:design_order_id;type:uuid"`
	ChallanURL    *string    `gorm:"column:challan_url"`

	// AmountPaidCents is the gateway-captured amount, set at verification.
	// It can differ from PriceBreakdown.TotalCents when an expired discount
	// was zeroed out after the payment session was created.
	AmountPaidCents int64 `gorm:"column:amount_paid_cents;not null;default:0"`

	PaidAt      *time.Time `gorm:"column:paid_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
