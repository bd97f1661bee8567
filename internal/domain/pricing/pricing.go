// Package pricing derives order totals from a snapshot of cart lines.
package pricing

import "github.com/shopspring/decimal"

// Line is one priced cart line: the unit price and quantity to charge.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Quote is the server-computed price breakdown for a set of lines.
// Client-submitted totals are never trusted; a Quote is always recomputed
// before anything is persisted.
type Quote struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Calculator computes quotes from configurable rates. The zero value is not
// usable; construct with NewCalculator.
type Calculator struct {
	taxRate          decimal.Decimal
	shippingFee      decimal.Decimal
	freeShippingOver decimal.Decimal
}

// Default rate values, matching the storefront's flat-fee policy.
var (
	DefaultTaxRate          = decimal.RequireFromString("0.08")
	DefaultShippingFee      = decimal.RequireFromString("5.99")
	DefaultFreeShippingOver = decimal.RequireFromString("50.00")
)

// NewCalculator creates a Calculator with the given tax rate, flat shipping
// fee, and free-shipping threshold.
func NewCalculator(taxRate, shippingFee, freeShippingOver decimal.Decimal) *Calculator {
	return &Calculator{
		taxRate:          taxRate,
		shippingFee:      shippingFee,
		freeShippingOver: freeShippingOver,
	}
}

// NewDefaultCalculator creates a Calculator with the default rates.
func NewDefaultCalculator() *Calculator {
	return NewCalculator(DefaultTaxRate, DefaultShippingFee, DefaultFreeShippingOver)
}

// Quote computes subtotal, shipping, tax, and total over the given lines.
// Shipping is free strictly above the threshold; tax applies to the subtotal
// only. All monetary outputs are rounded to 2 decimal places.
func (c *Calculator) Quote(lines []Line) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		subtotal = subtotal.Add(l.UnitPrice.Mul(qty))
	}

	shipping := c.shippingFee
	if subtotal.GreaterThan(c.freeShippingOver) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(c.taxRate).Round(2)
	subtotal = subtotal.Round(2)

	return Quote{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax).Round(2),
	}
}
