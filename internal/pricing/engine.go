package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/inkforge/studio-backend/pkg/config"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/types"
)

// Additional-cost line descriptions. The breakdown is persisted verbatim, so
// these strings are part of the stored order shape.
const (
	CostTextElements  = "text elements"
	CostImageElements = "image elements"
	CostBackPrint     = "back print"
	costSizePremium   = "size premium (%s)"
)

// LineItem is one catalog cart row.
type LineItem struct {
	UnitPriceCents int64
	Quantity       int
}

// DesignSpec describes a custom-printed garment order.
type DesignSpec struct {
	TextElements   int
	ImageElements  int
	HasBackPrint   bool
	SizeQuantities types.SizeQuantities
}

// Discount carries the code's pricing rule; eligibility is checked elsewhere.
type Discount struct {
	Type             enums.DiscountType
	Percent          int
	AmountCents      int64
	MaxDiscountCents *int64
}

// QuoteInput is the full pricing request. Exactly one of Items or Design must
// be set.
type QuoteInput struct {
	Items          []LineItem
	Design         *DesignSpec
	ShippingMethod enums.ShippingMethod
	Discount       *Discount
}

// Engine computes price breakdowns from configured rules. Pure computation,
// no I/O.
type Engine struct {
	pricing  config.PricingConfig
	shipping config.ShippingConfig
}

// NewEngine validates the pricing configuration up front so a misconfigured
// deployment fails at startup rather than quoting zero.
func NewEngine(pricing config.PricingConfig, shipping config.ShippingConfig) (*Engine, error) {
	if pricing.BasePriceCents <= 0 {
		return nil, errors.New(errors.CodeConfig, "pricing base price is not configured")
	}
	if pricing.TaxRateBps < 0 {
		return nil, errors.New(errors.CodeConfig, "pricing tax rate cannot be negative")
	}
	if shipping.BulkStepUnits <= 0 {
		return nil, errors.New(errors.CodeConfig, "shipping bulk step must be positive")
	}
	return &Engine{pricing: pricing, shipping: shipping}, nil
}

// Quote computes the itemized breakdown for the input. The returned breakdown
// always satisfies types.PriceBreakdown.Validate.
func (e *Engine) Quote(in QuoteInput) (types.PriceBreakdown, error) {
	if (len(in.Items) == 0) == (in.Design == nil) {
		return types.PriceBreakdown{}, errors.New(errors.CodeValidation, "exactly one of items or design is required")
	}
	if !in.ShippingMethod.IsValid() {
		return types.PriceBreakdown{}, errors.New(errors.CodeValidation, fmt.Sprintf("unknown shipping method %q", in.ShippingMethod))
	}

	var (
		breakdown types.PriceBreakdown
		units     int
		err       error
	)
	if in.Design != nil {
		breakdown, units, err = e.designSubtotal(in.Design)
	} else {
		breakdown, units, err = e.catalogSubtotal(in.Items)
	}
	if err != nil {
		return types.PriceBreakdown{}, err
	}
	if breakdown.SubtotalCents <= 0 {
		return types.PriceBreakdown{}, errors.New(errors.CodeValidation, "order subtotal must be positive")
	}

	if in.Discount != nil {
		breakdown.DiscountCents = DiscountAmount(*in.Discount, breakdown.SubtotalCents)
	}

	breakdown.TaxCents = e.tax(breakdown.SubtotalCents - breakdown.DiscountCents)
	breakdown.ShippingCents = e.shippingCost(in.ShippingMethod, units)
	breakdown.TotalCents = breakdown.SubtotalCents - breakdown.DiscountCents + breakdown.TaxCents + breakdown.ShippingCents

	return breakdown, nil
}

func (e *Engine) catalogSubtotal(items []LineItem) (types.PriceBreakdown, int, error) {
	var subtotal int64
	var units int
	for i, item := range items {
		if item.Quantity <= 0 {
			return types.PriceBreakdown{}, 0, errors.New(errors.CodeValidation, fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if item.UnitPriceCents <= 0 {
			return types.PriceBreakdown{}, 0, errors.New(errors.CodeValidation, fmt.Sprintf("item %d: unit price must be positive", i))
		}
		subtotal += item.UnitPriceCents * int64(item.Quantity)
		units += item.Quantity
	}
	return types.PriceBreakdown{BasePriceCents: subtotal, SubtotalCents: subtotal}, units, nil
}

// designSubtotal prices a custom design: the garment base price per unit,
// per-design setup surcharges for text and image elements, a per-unit back
// print surcharge, and per-unit size premiums for larger tiers.
func (e *Engine) designSubtotal(design *DesignSpec) (types.PriceBreakdown, int, error) {
	if err := design.SizeQuantities.Validate(); err != nil {
		return types.PriceBreakdown{}, 0, errors.New(errors.CodeValidation, err.Error())
	}
	if max := e.pricing.MaxQuantityPerSize; max > 0 {
		for _, size := range design.SizeQuantities.Sizes() {
			if design.SizeQuantities[size] > max {
				return types.PriceBreakdown{}, 0, errors.New(errors.CodeValidation,
					fmt.Sprintf("size %s: quantity exceeds the %d unit limit", size, max))
			}
		}
	}
	if design.TextElements < 0 || design.ImageElements < 0 {
		return types.PriceBreakdown{}, 0, errors.New(errors.CodeValidation, "element counts cannot be negative")
	}

	units := design.SizeQuantities.Total()
	breakdown := types.PriceBreakdown{BasePriceCents: e.pricing.BasePriceCents * int64(units)}

	if design.TextElements > 0 {
		breakdown.AdditionalCosts = append(breakdown.AdditionalCosts, types.AdditionalCost{
			Description: CostTextElements,
			AmountCents: e.pricing.TextElementCents * int64(design.TextElements),
		})
	}
	if design.ImageElements > 0 {
		breakdown.AdditionalCosts = append(breakdown.AdditionalCosts, types.AdditionalCost{
			Description: CostImageElements,
			AmountCents: e.pricing.ImageElementCents * int64(design.ImageElements),
		})
	}
	if design.HasBackPrint {
		breakdown.AdditionalCosts = append(breakdown.AdditionalCosts, types.AdditionalCost{
			Description: CostBackPrint,
			AmountCents: e.pricing.BackPrintCents * int64(units),
		})
	}

	for _, size := range design.SizeQuantities.Sizes() {
		premium, ok := e.sizePremium(size)
		if !ok {
			continue
		}
		breakdown.AdditionalCosts = append(breakdown.AdditionalCosts, types.AdditionalCost{
			Description: fmt.Sprintf(costSizePremium, size),
			AmountCents: premium * int64(design.SizeQuantities[size]),
		})
	}

	breakdown.SubtotalCents = breakdown.BasePriceCents
	for _, cost := range breakdown.AdditionalCosts {
		breakdown.SubtotalCents += cost.AmountCents
	}
	return breakdown, units, nil
}

func (e *Engine) sizePremium(size string) (int64, bool) {
	premium, ok := e.pricing.SizePremiumsCents[strings.ToUpper(size)]
	return premium, ok
}

// DiscountAmount applies the code's rule to the subtotal: percentage or flat
// amount, clamped to the optional cap and then to the subtotal itself.
func DiscountAmount(d Discount, subtotalCents int64) int64 {
	var amount int64
	switch d.Type {
	case enums.DiscountTypePercentage:
		amount = decimal.NewFromInt(subtotalCents).
			Mul(decimal.NewFromInt(int64(d.Percent))).
			Div(decimal.NewFromInt(100)).
			Round(0).IntPart()
	case enums.DiscountTypeFixed:
		amount = d.AmountCents
	default:
		return 0
	}

	if amount < 0 {
		return 0
	}
	if d.MaxDiscountCents != nil && amount > *d.MaxDiscountCents {
		amount = *d.MaxDiscountCents
	}
	if amount > subtotalCents {
		amount = subtotalCents
	}
	return amount
}

// tax applies the configured basis-point rate to the discounted subtotal,
// round-half-up. Shipping is added afterwards and is never taxed.
func (e *Engine) tax(taxableCents int64) int64 {
	if taxableCents <= 0 || e.pricing.TaxRateBps == 0 {
		return 0
	}
	return decimal.NewFromInt(taxableCents).
		Mul(decimal.NewFromInt(e.pricing.TaxRateBps)).
		Div(decimal.NewFromInt(10000)).
		Round(0).IntPart()
}

// shippingCost is the method's flat base cost plus a fixed increment for
// every started block of BulkStepUnits beyond BulkThresholdUnits.
func (e *Engine) shippingCost(method enums.ShippingMethod, units int) int64 {
	var base int64
	switch method {
	case enums.ShippingMethodStandard:
		base = e.shipping.StandardCents
	case enums.ShippingMethodExpress:
		base = e.shipping.ExpressCents
	case enums.ShippingMethodPickup:
		base = e.shipping.PickupCents
	}

	extra := units - e.shipping.BulkThresholdUnits
	if extra <= 0 {
		return base
	}
	blocks := (extra + e.shipping.BulkStepUnits - 1) / e.shipping.BulkStepUnits
	return base + int64(blocks)*e.shipping.BulkIncrementCents
}
