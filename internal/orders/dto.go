package orders

import (
	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/internal/discounts"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/types"
)

// ItemInput references a catalog product in a checkout request.
type ItemInput struct {
	ProductID uuid.UUID
	Color     string
	Size      string
	Quantity  int
}

// DesignInput references a saved design plus the garment run to print.
type DesignInput struct {
	DesignID       uuid.UUID
	SizeQuantities types.SizeQuantities
	Color          string
}

// AssembleInput is the validated checkout payload handed to the assembler.
// Exactly one of Items or Design is set.
type AssembleInput struct {
	User            *models.User
	Items           []ItemInput
	Design          *DesignInput
	DiscountCode    string
	ShippingMethod  enums.ShippingMethod
	ShippingAddress types.Address
	BillingAddress  *types.Address
	IsExpress       bool
	IsGuestOrder    bool
	GuestSession    *types.GuestSession
}

// AssembleResult reports the persisted order plus the non-fatal outcome of
// the design order linkage.
type AssembleResult struct {
	Order       *models.Order
	Reservation *discounts.Reservation
	DesignOrder *models.DesignOrder
	// DesignOrderLinked is false when linkage failed; the order itself stays
	// valid and payable.
	DesignOrderLinked bool
}
