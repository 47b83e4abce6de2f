package tax

import (
	"github.com/angelmondragon/taxsync/internal/sales"
	"github.com/shopspring/decimal"
)

// Total is one display row for a cart or checkout summary.
type Total struct {
	Code     string
	Title    string
	Value    decimal.Decimal
	FullInfo []sales.AppliedTax
}

const (
	TotalTitleTax             = "Tax"
	TotalTitleSubtotalInclTax = "Subtotal (Incl. Tax)"
	TotalSubtotalInclTax      = "subtotal_incl_tax"
)

// Fetch returns the display totals for an address after Collect ran.
// The tax row is omitted when zero unless zero tax display is enabled. The
// tax-inclusive subtotal row appears when the cart subtotal is displayed
// including tax or both ways. Fetch only reads addr.
func (c *Collector) Fetch(addr *sales.Address) []Total {
	var out []Total
	if !addr.TaxAmount.IsZero() || c.cfg.DisplayZeroTax {
		out = append(out, Total{
			Code:     sales.TotalTax,
			Title:    TotalTitleTax,
			Value:    addr.TaxAmount,
			FullInfo: addr.AppliedTaxes,
		})
	}

	if c.cfg.SubtotalDisplay().ShowsInclTax() {
		out = append(out, Total{
			Code:  TotalSubtotalInclTax,
			Title: TotalTitleSubtotalInclTax,
			Value: addr.SubtotalInclTax,
		})
	}
	return out
}
