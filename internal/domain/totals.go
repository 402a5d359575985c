package domain

import "github.com/shopspring/decimal"

type Totals struct {
	TotalItems int
	TotalPrice decimal.Decimal
}

// CalculateTotals sums quantities and unitPrice*quantity. No rounding is applied.
func CalculateTotals(items []LineItem) Totals {
	totals := Totals{TotalPrice: decimal.Zero}
	for _, item := range items {
		totals.TotalItems += item.Quantity
		totals.TotalPrice = totals.TotalPrice.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return totals
}
