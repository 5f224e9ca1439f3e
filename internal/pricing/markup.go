package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Markup derives the markup percentage implied by a price, its cost and the
// product's tax rate, so that recalculating the price from cost and markup
// round-trips. Returns zero when the cost is zero.
//
//	markup = (price / (cost * (1 + taxRate/100)) - 1) * 100
func Markup(price, cost, taxRate decimal.Decimal) decimal.Decimal {
	if cost.IsZero() {
		return decimal.Zero
	}
	taxed := cost.Mul(decimal.NewFromInt(1).Add(taxRate.Div(hundred)))
	return price.Div(taxed).Sub(decimal.NewFromInt(1)).Mul(hundred).Round(2)
}
