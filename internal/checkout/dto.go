package checkout

import (
	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/internal/identity"
	"github.com/inkforge/studio-backend/internal/orders"
	"github.com/inkforge/studio-backend/internal/payments"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/types"
)

// CheckoutInput is the validated checkout request. Identity comes from either
// UserID (authenticated) or Guest (express/guest flow), never both.
type CheckoutInput struct {
	UserID          *uuid.UUID
	Guest           *identity.GuestInfo
	Items           []orders.ItemInput
	Design          *orders.DesignInput
	DiscountCode    string
	ShippingMethod  enums.ShippingMethod
	ShippingAddress types.Address
	BillingAddress  *types.Address
	Express         bool
}

// CheckoutResult is the client payload for a created checkout.
type CheckoutResult struct {
	Order   *models.Order
	Session *payments.Session

	UserType           identity.UserType
	UserAccountMessage string

	IsGuestOrder                  bool
	IsExistingUserExpressCheckout bool
	GuestSession                  *types.GuestSession

	// DesignOrderLinked is false when the manufacturing record could not be
	// created; the order stays payable regardless.
	DesignOrderLinked bool
}

// VerifyInput carries the payment callback fields.
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Demo             bool

	// Optional address updates captured by the gateway form.
	BillingAddress  *types.Address
	ShippingAddress *types.Address
}

// VerifyResult reports the reconciled order plus the outcome of the
// fire-and-forget side effects.
type VerifyResult struct {
	Order *models.Order

	// AlreadyVerified marks an idempotent replay of a callback that was
	// processed before.
	AlreadyVerified bool
	// DiscountZeroed is set when the order's code expired between cart and
	// payment and the discount was dropped rather than failing the payment.
	DiscountZeroed bool

	EmailSent        bool
	ChallanGenerated bool
	ChallanURL       string
}
