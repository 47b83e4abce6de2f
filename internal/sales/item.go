package sales

import (
	"github.com/angelmondragon/taxsync/internal/rounding"
	"github.com/shopspring/decimal"
)

// LineItem is a quote item. Catalog prices are inputs; the remaining price
// fields are recomputed on every tax collection.
type LineItem struct {
	ID       string
	ParentID string
	SKU      string
	Name     string
	Qty      decimal.Decimal
	TaxClass string
	// ChildrenCalculated marks a parent whose tax is carried by its children.
	ChildrenCalculated bool

	CatalogPrice     decimal.Decimal
	BaseCatalogPrice decimal.Decimal

	// Per-unit gift wrap charge.
	GiftWrapPrice     decimal.Decimal
	BaseGiftWrapPrice decimal.Decimal

	Price               decimal.Decimal
	BasePrice           decimal.Decimal
	RowTotal            decimal.Decimal
	BaseRowTotal        decimal.Decimal
	TaxAmount           decimal.Decimal
	BaseTaxAmount       decimal.Decimal
	TaxPercent          decimal.Decimal
	PriceInclTax        decimal.Decimal
	BasePriceInclTax    decimal.Decimal
	RowTotalInclTax     decimal.Decimal
	BaseRowTotalInclTax decimal.Decimal
	RowTax              decimal.Decimal
	BaseRowTax          decimal.Decimal

	// Per-unit gift wrap tax.
	GiftWrapTaxAmount     decimal.Decimal
	BaseGiftWrapTaxAmount decimal.Decimal
}

// Reset restores catalog prices and clears computed tax fields.
func (i *LineItem) Reset() {
	zero := decimal.Zero
	i.Price = i.CatalogPrice
	i.BasePrice = i.BaseCatalogPrice
	i.TaxAmount, i.BaseTaxAmount = zero, zero
	i.TaxPercent = zero
	i.PriceInclTax, i.BasePriceInclTax = zero, zero
	i.RowTotalInclTax, i.BaseRowTotalInclTax = zero, zero
	i.RowTax, i.BaseRowTax = zero, zero
	i.GiftWrapTaxAmount, i.BaseGiftWrapTaxAmount = zero, zero
	i.CalcRowTotal()
}

// CalcRowTotal sets row totals from price and quantity.
func (i *LineItem) CalcRowTotal() {
	i.RowTotal = rounding.Round(i.Price.Mul(i.Qty))
	i.BaseRowTotal = rounding.Round(i.BasePrice.Mul(i.Qty))
}

// BaseRowAmount is the catalog row amount in base currency, the taxable
// basis sent for estimation.
func (i *LineItem) BaseRowAmount() decimal.Decimal {
	return rounding.Round(i.BaseCatalogPrice.Mul(i.Qty))
}

// IsChild reports whether the item belongs to a parent item.
func (i *LineItem) IsChild() bool {
	return i.ParentID != ""
}
