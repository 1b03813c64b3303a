package types

import "fmt"

// AdditionalCost is a named surcharge line inside a price breakdown.
type AdditionalCost struct {
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

// PriceBreakdown is the fully-itemized pricing snapshot persisted on orders
// and design orders. All amounts are integer minor currency units.
type PriceBreakdown struct {
	BasePriceCents  int64            `json:"base_price_cents"`
	AdditionalCosts []AdditionalCost `json:"additional_costs,omitempty"`
	SubtotalCents   int64            `json:"subtotal_cents"`
	DiscountCents   int64            `json:"discount_cents"`
	TaxCents        int64            `json:"tax_cents"`
	ShippingCents   int64            `json:"shipping_cents"`
	TotalCents      int64            `json:"total_cents"`
}

// Validate checks the two breakdown invariants:
//
//	subtotal == basePrice + sum(additionalCosts)
//	total    == subtotal - discount + tax + shipping
func (p PriceBreakdown) Validate() error {
	extras := int64(0)
	for _, cost := range p.AdditionalCosts {
		extras += cost.AmountCents
	}
	if p.BasePriceCents+extras != p.SubtotalCents {
		return fmt.Errorf("subtotal %d != base %d + additional %d", p.SubtotalCents, p.BasePriceCents, extras)
	}
	if got := p.SubtotalCents - p.DiscountCents + p.TaxCents + p.ShippingCents; got != p.TotalCents {
		return fmt.Errorf("total %d != subtotal %d - discount %d + tax %d + shipping %d",
			p.TotalCents, p.SubtotalCents, p.DiscountCents, p.TaxCents, p.ShippingCents)
	}
	return nil
}

// WithoutDiscount returns a copy with the discount zeroed and the total
// recomputed. Used when a code expires between cart and payment confirmation.
func (p PriceBreakdown) WithoutDiscount() PriceBreakdown {
	out := p
	out.DiscountCents = 0
	out.TotalCents = out.SubtotalCents + out.TaxCents + out.ShippingCents
	return out
}
