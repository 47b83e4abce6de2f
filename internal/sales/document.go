package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceState string

const (
	InvoiceOpen     InvoiceState = "open"
	InvoicePaid     InvoiceState = "paid"
	InvoiceCanceled InvoiceState = "canceled"
)

// DocumentLine is one taxable line of a finalized document, in base currency.
type DocumentLine struct {
	ItemID    string
	SKU       string
	Name      string
	TaxClass  string
	Qty       decimal.Decimal
	Amount    decimal.Decimal
	TaxAmount decimal.Decimal
}

// Invoice is a finalized order invoice.
type Invoice struct {
	IncrementID      string
	OrderIncrementID string
	CustomerCode     string
	Store            *Store
	CreatedAt        time.Time

	State InvoiceState
	// OrigState is the state last persisted; empty for a new invoice.
	OrigState InvoiceState

	Address *Address
	Lines   []DocumentLine

	BaseShippingAmount    decimal.Decimal
	BaseShippingTaxAmount decimal.Decimal

	AppliedTaxes []AppliedTax
}

// IsNew reports whether the invoice has not been saved before.
func (i *Invoice) IsNew() bool {
	return i.OrigState == ""
}

// CreditMemo is a finalized refund document.
type CreditMemo struct {
	IncrementID      string
	OrderIncrementID string
	CustomerCode     string
	Store            *Store
	CreatedAt        time.Time
	// New is true on the first save of the credit memo.
	New bool

	Address *Address
	Lines   []DocumentLine

	BaseShippingAmount    decimal.Decimal
	BaseShippingTaxAmount decimal.Decimal
	// BaseAdjustmentPositive is an extra refund; BaseAdjustmentNegative a fee
	// withheld from the refund.
	BaseAdjustmentPositive decimal.Decimal
	BaseAdjustmentNegative decimal.Decimal

	AppliedTaxes []AppliedTax
}
