package orders

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/internal/designorders"
	"github.com/inkforge/studio-backend/internal/designs"
	"github.com/inkforge/studio-backend/internal/discounts"
	"github.com/inkforge/studio-backend/internal/pricing"
	"github.com/inkforge/studio-backend/internal/products"
	"github.com/inkforge/studio-backend/pkg/config"
	"github.com/inkforge/studio-backend/pkg/db"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
)

// orderNumberAttempts bounds collision retries against the unique index.
const orderNumberAttempts = 3

// AssemblerParams groups dependencies for the order assembler.
type AssemblerParams struct {
	Repo      Repository
	Products  products.Repository
	Designs   designs.Repository
	Discounts *discounts.Service
	Linker    *designorders.Service
	Engine    *pricing.Engine
	Pricing   config.PricingConfig
	Logger    *logger.Logger
}

// Assembler builds the persisted order aggregate from a validated checkout
// payload. It is invoked inside the checkout transaction via WithTx.
type Assembler struct {
	repo      Repository
	products  products.Repository
	designs   designs.Repository
	discounts *discounts.Service
	linker    *designorders.Service
	engine    *pricing.Engine
	currency  enums.Currency
	logg      *logger.Logger
}

// NewAssembler builds an order assembler.
func NewAssembler(params AssemblerParams) (*Assembler, error) {
	if params.Repo == nil {
		return nil, stdErrors.New("repo is required")
	}
	if params.Products == nil {
		return nil, stdErrors.New("products repo is required")
	}
	if params.Designs == nil {
		return nil, stdErrors.New("designs repo is required")
	}
	if params.Discounts == nil {
		return nil, stdErrors.New("discounts service is required")
	}
	if params.Linker == nil {
		return nil, stdErrors.New("design order linker is required")
	}
	if params.Engine == nil {
		return nil, stdErrors.New("pricing engine is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}

	currency, err := enums.ParseCurrency(params.Pricing.Currency)
	if err != nil {
		return nil, errors.Wrap(errors.CodeConfig, err, "pricing currency")
	}

	return &Assembler{
		repo:      params.Repo,
		products:  params.Products,
		designs:   params.Designs,
		discounts: params.Discounts,
		linker:    params.Linker,
		engine:    params.Engine,
		currency:  currency,
		logg:      params.Logger,
	}, nil
}

// WithTx returns a copy of the assembler whose persistence runs inside tx.
func (a *Assembler) WithTx(tx *gorm.DB) *Assembler {
	if tx == nil {
		return a
	}
	clone := *a
	clone.repo = a.repo.WithTx(tx)
	clone.products = a.products.WithTx(tx)
	clone.designs = a.designs.WithTx(tx)
	clone.discounts = a.discounts.WithTx(tx)
	clone.linker = a.linker.WithTx(tx)
	return &clone
}

// Assemble validates the payload, prices it, reserves the discount, and
// persists the order with both statuses pending. Design order linkage runs
// last and is non-fatal: a linker failure leaves the order payable and is
// reported through AssembleResult.DesignOrderLinked.
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) (*AssembleResult, error) {
	if in.User == nil {
		return nil, errors.New(errors.CodeValidation, "resolved user is required")
	}
	if (len(in.Items) == 0) == (in.Design == nil) {
		return nil, errors.New(errors.CodeValidation, "exactly one of items or design is required")
	}
	if missing := in.ShippingAddress.Validate(); missing != "" {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("shipping address is missing %s", missing))
	}

	var (
		quoteInput pricing.QuoteInput
		items      []models.OrderItem
		design     *models.Design
		err        error
	)
	if in.Design != nil {
		design, quoteInput, err = a.designQuote(ctx, in.Design)
	} else {
		items, quoteInput, err = a.catalogQuote(ctx, in.Items)
	}
	if err != nil {
		return nil, err
	}
	quoteInput.ShippingMethod = in.ShippingMethod

	breakdown, err := a.engine.Quote(quoteInput)
	if err != nil {
		return nil, err
	}

	var reservation *discounts.Reservation
	if in.DiscountCode != "" {
		reservation, err = a.discounts.ValidateAndPrice(ctx, in.DiscountCode, breakdown.SubtotalCents, time.Now())
		if err != nil {
			return nil, err
		}
		quoteInput.Discount = &pricing.Discount{
			Type:             reservation.Code.Type,
			Percent:          reservation.Code.Percent,
			AmountCents:      reservation.Code.AmountCents,
			MaxDiscountCents: reservation.Code.MaxDiscountCents,
		}
		breakdown, err = a.engine.Quote(quoteInput)
		if err != nil {
			return nil, err
		}
		if err := a.discounts.CommitReservation(ctx, reservation); err != nil {
			return nil, err
		}
	}

	order := &models.Order{
		UserID:            in.User.ID,
		PriceBreakdown:    breakdown,
		Currency:          a.currency,
		Status:            enums.OrderStatusPending,
		PaymentStatus:     enums.PaymentStatusPending,
		DiscountCents:     breakdown.DiscountCents,
		ShippingMethod:    in.ShippingMethod,
		ShippingAddress:   &in.ShippingAddress,
		BillingAddress:    in.BillingAddress,
		IsExpressCheckout: in.IsExpress,
		IsGuestOrder:      in.IsGuestOrder,
	}
	if reservation != nil {
		code := reservation.Code.Code
		order.DiscountCode = &code
	}
	if in.GuestSession != nil {
		token := in.GuestSession.Token
		expiry := in.GuestSession.Expiry
		order.GuestSessionToken = &token
		order.GuestSessionExpiry = &expiry
	}

	if in.Design != nil {
		designID := design.ID
		size := in.Design.SizeQuantities
		item := models.OrderItem{
			Kind:           enums.OrderItemKindDesign,
			DesignID:       &designID,
			Name:           design.Title,
			Qty:            size.Total(),
			UnitPriceCents: breakdown.BasePriceCents / int64(size.Total()),
			TotalCents:     breakdown.SubtotalCents,
		}
		if in.Design.Color != "" {
			color := in.Design.Color
			item.Color = &color
		}
		order.Items = []models.OrderItem{item}
	} else {
		order.Items = items
	}

	if err := a.persistWithOrderNumber(ctx, order); err != nil {
		return nil, err
	}

	result := &AssembleResult{Order: order, Reservation: reservation}
	if in.Design != nil {
		record, linkErr := a.linker.Link(ctx, designorders.LinkInput{
			Order:          order,
			Design:         design,
			Customer:       in.User,
			SizeQuantities: in.Design.SizeQuantities,
			Color:          in.Design.Color,
		})
		if linkErr != nil {
			a.logg.Error(a.logg.WithOrderID(ctx, order.ID.String()), "linking design order", linkErr)
		} else {
			order.DesignOrderID = &record.ID
			if err := a.repo.Update(ctx, order); err != nil {
				return nil, errors.Wrap(errors.CodeInternal, err, "writing design order reference")
			}
			result.DesignOrder = record
			result.DesignOrderLinked = true
		}
	}

	return result, nil
}

func (a *Assembler) catalogQuote(ctx context.Context, inputs []ItemInput) ([]models.OrderItem, pricing.QuoteInput, error) {
	var (
		items []models.OrderItem
		lines []pricing.LineItem
	)
	for i, item := range inputs {
		if item.Quantity <= 0 {
			return nil, pricing.QuoteInput{}, errors.New(errors.CodeValidation, fmt.Sprintf("item %d: quantity must be positive", i))
		}
		product, err := a.products.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, pricing.QuoteInput{}, errors.Wrap(errors.CodeInternal, err, "looking up product")
		}
		if product == nil || !product.Active {
			return nil, pricing.QuoteInput{}, errors.New(errors.CodeNotFound, fmt.Sprintf("product %s not found", item.ProductID))
		}

		productID := product.ID
		orderItem := models.OrderItem{
			Kind:           enums.OrderItemKindProduct,
			ProductID:      &productID,
			Name:           product.Name,
			Qty:            item.Quantity,
			UnitPriceCents: product.UnitPriceCents,
			TotalCents:     product.UnitPriceCents * int64(item.Quantity),
		}
		if item.Color != "" {
			color := item.Color
			orderItem.Color = &color
		}
		if item.Size != "" {
			size := item.Size
			orderItem.Size = &size
		}
		items = append(items, orderItem)
		lines = append(lines, pricing.LineItem{UnitPriceCents: product.UnitPriceCents, Quantity: item.Quantity})
	}
	return items, pricing.QuoteInput{Items: lines}, nil
}

func (a *Assembler) designQuote(ctx context.Context, input *DesignInput) (*models.Design, pricing.QuoteInput, error) {
	design, err := a.designs.FindByID(ctx, input.DesignID)
	if err != nil {
		return nil, pricing.QuoteInput{}, errors.Wrap(errors.CodeInternal, err, "looking up design")
	}
	if design == nil {
		return nil, pricing.QuoteInput{}, errors.New(errors.CodeNotFound, fmt.Sprintf("design %s not found", input.DesignID))
	}

	spec := &pricing.DesignSpec{
		TextElements:   design.ElementCount(enums.DesignElementKindText),
		ImageElements:  design.ElementCount(enums.DesignElementKindImage),
		HasBackPrint:   design.HasBackPrint,
		SizeQuantities: input.SizeQuantities,
	}
	return design, pricing.QuoteInput{Design: spec}, nil
}

// persistWithOrderNumber creates the order, regenerating the order number on
// a unique-index collision.
func (a *Assembler) persistWithOrderNumber(ctx context.Context, order *models.Order) error {
	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = NewOrderNumber(time.Now())
		lastErr = a.repo.Create(ctx, order)
		if lastErr == nil {
			return nil
		}
		if !db.IsUniqueViolation(lastErr, "idx_orders_order_number") {
			return errors.Wrap(errors.CodeInternal, lastErr, "persisting order")
		}
	}
	return errors.Wrap(errors.CodeInternal, lastErr, "order number collisions exhausted retries")
}
