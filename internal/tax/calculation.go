package tax

import (
	"github.com/angelmondragon/taxsync/internal/rounding"
	"github.com/angelmondragon/taxsync/internal/sales"
	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/shopspring/decimal"
)

// LineTax is the tax outcome for one line. Base amounts are in the store's
// base currency; Tax is BaseTax converted for display.
type LineTax struct {
	BaseTaxable decimal.Decimal
	BaseTax     decimal.Decimal
	Tax         decimal.Decimal
	// Rate is a percentage.
	Rate decimal.Decimal
	// ProductCalculated means the tax is already counted on a related line.
	ProductCalculated bool
}

// AddressCalculation holds one estimate response for an address.
type AddressCalculation struct {
	skipped bool
	address *sales.Address
	store   *sales.Store
	lines   map[string]taxservice.LineTax
	summary []taxservice.SummaryRow
}

// Skipped reports whether the service was not consulted.
func (r *AddressCalculation) Skipped() bool {
	return r.skipped
}

func (r *AddressCalculation) line(id string) LineTax {
	raw, ok := r.lines[id]
	if !ok {
		return LineTax{}
	}
	base := rounding.Round(raw.Tax)
	return LineTax{
		BaseTaxable: raw.Taxable,
		BaseTax:     base,
		Tax:         r.store.ConvertPrice(base),
		Rate:        raw.Rate,
	}
}

// Item returns the tax for a product line.
func (r *AddressCalculation) Item(item *sales.LineItem) LineTax {
	if !isProductCalculated(r.address, item) {
		return r.line(itemLinePrefix + item.ID)
	}
	out := LineTax{ProductCalculated: true}
	if item.IsChild() {
		return out
	}
	for _, child := range r.address.Items {
		if child.ParentID != item.ID {
			continue
		}
		lt := r.line(itemLinePrefix + child.ID)
		out.BaseTaxable = out.BaseTaxable.Add(lt.BaseTaxable)
		out.BaseTax = out.BaseTax.Add(lt.BaseTax)
		out.Tax = out.Tax.Add(lt.Tax)
	}
	if out.BaseTaxable.IsPositive() {
		out.Rate = out.BaseTax.Div(out.BaseTaxable).Mul(decimal.NewFromInt(100)).Round(4)
	}
	return out
}

// ItemGiftWrap returns the row tax on an item's gift wrapping.
func (r *AddressCalculation) ItemGiftWrap(item *sales.LineItem) LineTax {
	return r.line(itemGiftWrapLinePrefix + item.ID)
}

// ItemTaxGroups returns the jurisdiction breakdown of an item's tax.
func (r *AddressCalculation) ItemTaxGroups(item *sales.LineItem) []sales.ItemTaxGroup {
	raw, ok := r.lines[itemLinePrefix+item.ID]
	if !ok {
		return nil
	}
	groups := make([]sales.ItemTaxGroup, 0, len(raw.Details))
	for _, d := range raw.Details {
		groups = append(groups, sales.ItemTaxGroup{Name: d.Name, Percent: d.Rate, Amount: d.Amount})
	}
	return groups
}

func (r *AddressCalculation) Shipping() LineTax {
	return r.line(shippingLineID)
}

func (r *AddressCalculation) GiftWrapOrder() LineTax {
	return r.line(giftWrapOrderLineID)
}

func (r *AddressCalculation) PrintedCard() LineTax {
	return r.line(printedCardLineID)
}

// Summary returns the per-tax-name aggregate from the service.
func (r *AddressCalculation) Summary() []taxservice.SummaryRow {
	return r.summary
}
