// Package sales holds the cart and financial document structures the tax
// pipeline reads and writes.
package sales

import (
	"strings"

	"github.com/angelmondragon/taxsync/internal/rounding"
	"github.com/shopspring/decimal"
)

// Sentinel postal code used by estimate forms before a real address exists.
const PostcodeSentinel = "-"

// Total codes used in Address.TotalAmounts.
const (
	TotalTax      = "tax"
	TotalSubtotal = "subtotal"
	TotalShipping = "shipping"
)

type AddressType string

const (
	AddressBilling  AddressType = "billing"
	AddressShipping AddressType = "shipping"
)

// Store is the currency and locale context of a quote.
type Store struct {
	ID              string
	BaseCurrency    string
	DisplayCurrency string
	// Rate converts base to display currency. Zero means 1.
	Rate           decimal.Decimal
	DefaultCountry string
}

// ConvertPrice converts a base amount into display currency.
func (s *Store) ConvertPrice(base decimal.Decimal) decimal.Decimal {
	if s == nil {
		return rounding.Round(base)
	}
	return rounding.Convert(base, s.Rate)
}

// ItemTaxGroup is one jurisdiction's share of a line's tax.
type ItemTaxGroup struct {
	Name    string
	Percent decimal.Decimal
	Amount  decimal.Decimal
}

// Quote is a cart with one or more addresses.
type Quote struct {
	ID         string
	Store      *Store
	CustomerID string
	Addresses  []*Address

	// TaxesForItems maps item id to the tax groups applied to it.
	TaxesForItems map[string][]ItemTaxGroup
	// EstimateTaxError is set when the tax service could not be reached
	// during the last collection.
	EstimateTaxError bool
}

// AddAddress attaches addr to the quote.
func (q *Quote) AddAddress(addr *Address) {
	addr.Quote = q
	q.Addresses = append(q.Addresses, addr)
}

// ShippingAddresses returns the addresses goods are shipped to.
func (q *Quote) ShippingAddresses() []*Address {
	var out []*Address
	for _, a := range q.Addresses {
		if a.IsShipping() {
			out = append(out, a)
		}
	}
	return out
}

// MergeTaxesForItems adds groups to the quote mapping. Entries in groups
// replace existing ones for the same item; other items are kept.
func (q *Quote) MergeTaxesForItems(groups map[string][]ItemTaxGroup) {
	if q.TaxesForItems == nil {
		q.TaxesForItems = make(map[string][]ItemTaxGroup, len(groups))
	}
	for id, g := range groups {
		q.TaxesForItems[id] = g
	}
}

// AppliedRate is the single rate row carried by an AppliedTax.
type AppliedRate struct {
	Code     string
	Title    string
	Percent  decimal.Decimal
	Position int
	Priority int
}

// AppliedTax is one row of the per-address tax summary.
type AppliedTax struct {
	ID         string
	Percent    decimal.Decimal
	Amount     decimal.Decimal
	BaseAmount decimal.Decimal
	Rates      []AppliedRate
}

// Address is a quote address with its items and computed tax totals.
type Address struct {
	ID             string
	Quote          *Quote
	Type           AddressType
	UseForShipping bool

	Street     string
	City       string
	Region     string
	Country    string
	PostalCode string

	Items []*LineItem

	ShippingAmount     decimal.Decimal
	BaseShippingAmount decimal.Decimal

	GiftWrapPrice          decimal.Decimal
	BaseGiftWrapPrice      decimal.Decimal
	GiftWrapAddPrintedCard bool
	PrintedCardPrice       decimal.Decimal
	BasePrintedCardPrice   decimal.Decimal

	// Computed by tax collection.
	TotalAmounts     map[string]decimal.Decimal
	BaseTotalAmounts map[string]decimal.Decimal

	TaxAmount     decimal.Decimal
	BaseTaxAmount decimal.Decimal

	ShippingTaxAmount     decimal.Decimal
	BaseShippingTaxAmount decimal.Decimal
	ShippingInclTax       decimal.Decimal
	BaseShippingInclTax   decimal.Decimal
	ShippingTaxable       decimal.Decimal
	BaseShippingTaxable   decimal.Decimal

	GiftWrapTaxAmount        decimal.Decimal
	BaseGiftWrapTaxAmount    decimal.Decimal
	PrintedCardTaxAmount     decimal.Decimal
	BasePrintedCardTaxAmount decimal.Decimal

	Subtotal            decimal.Decimal
	BaseSubtotal        decimal.Decimal
	SubtotalInclTax     decimal.Decimal
	BaseSubtotalInclTax decimal.Decimal

	AppliedTaxes []AppliedTax
}

// Store returns the store of the owning quote, if any.
func (a *Address) Store() *Store {
	if a.Quote == nil {
		return nil
	}
	return a.Quote.Store
}

// IsShipping reports whether shipping charges belong to this address.
func (a *Address) IsShipping() bool {
	return a.Type == AddressShipping || a.UseForShipping
}

func (a *Address) HasItems() bool {
	return len(a.Items) > 0
}

// HasSentinelPostcode reports whether the address carries the placeholder
// postal code.
func (a *Address) HasSentinelPostcode() bool {
	return strings.TrimSpace(a.PostalCode) == PostcodeSentinel
}

// Item returns the item with id, or nil.
func (a *Address) Item(id string) *LineItem {
	for _, it := range a.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func (a *Address) TotalAmount(code string) decimal.Decimal {
	return a.TotalAmounts[code]
}

func (a *Address) BaseTotalAmount(code string) decimal.Decimal {
	return a.BaseTotalAmounts[code]
}

func (a *Address) SetTotalAmount(code string, amount decimal.Decimal) {
	if a.TotalAmounts == nil {
		a.TotalAmounts = map[string]decimal.Decimal{}
	}
	a.TotalAmounts[code] = amount
}

func (a *Address) SetBaseTotalAmount(code string, amount decimal.Decimal) {
	if a.BaseTotalAmounts == nil {
		a.BaseTotalAmounts = map[string]decimal.Decimal{}
	}
	a.BaseTotalAmounts[code] = amount
}

func (a *Address) AddTotalAmount(code string, amount decimal.Decimal) {
	a.SetTotalAmount(code, a.TotalAmount(code).Add(amount))
}

func (a *Address) AddBaseTotalAmount(code string, amount decimal.Decimal) {
	a.SetBaseTotalAmount(code, a.BaseTotalAmount(code).Add(amount))
}

// ResetTaxTotals zeroes every tax-derived field on the address and its items
// and restores item prices from their catalog values.
func (a *Address) ResetTaxTotals() {
	zero := decimal.Zero
	for _, code := range []string{TotalTax, TotalSubtotal, TotalShipping} {
		a.SetTotalAmount(code, zero)
		a.SetBaseTotalAmount(code, zero)
	}
	a.TaxAmount, a.BaseTaxAmount = zero, zero
	a.ShippingTaxAmount, a.BaseShippingTaxAmount = zero, zero
	a.ShippingInclTax, a.BaseShippingInclTax = zero, zero
	a.ShippingTaxable, a.BaseShippingTaxable = zero, zero
	a.GiftWrapTaxAmount, a.BaseGiftWrapTaxAmount = zero, zero
	a.PrintedCardTaxAmount, a.BasePrintedCardTaxAmount = zero, zero
	a.Subtotal, a.BaseSubtotal = zero, zero
	a.SubtotalInclTax, a.BaseSubtotalInclTax = zero, zero
	a.AppliedTaxes = nil
	for _, it := range a.Items {
		it.Reset()
	}
}
