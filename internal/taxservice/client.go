// Package taxservice defines the contract with the external tax
// determination service and a JSON over HTTP implementation of it.
package taxservice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Client is the tax determination service as seen by the tax pipeline.
type Client interface {
	Estimate(ctx context.Context, req EstimateRequest) (*EstimateResult, error)
	ValidateAddress(ctx context.Context, req AddressRequest) (*AddressResult, error)
	Commit(ctx context.Context, req CommitRequest) error
	Cancel(ctx context.Context, req CancelRequest) error
	// Ping returns an empty message when the credentials are accepted and a
	// diagnostic message otherwise.
	Ping(ctx context.Context, creds Credentials) (string, error)
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode"`
}

// Line is one taxable line: a product, shipping, or a gift wrap charge.
// Amounts are row amounts in base currency.
type Line struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Description string          `json:"description,omitempty"`
	TaxCode     string          `json:"taxCode,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
	TaxIncluded bool            `json:"taxIncluded,omitempty"`
	// TaxAmount is the tax already computed for the line, sent on commit.
	TaxAmount decimal.Decimal `json:"taxAmount"`
}

type EstimateRequest struct {
	StoreID      string    `json:"storeId"`
	CustomerCode string    `json:"customerCode,omitempty"`
	CurrencyCode string    `json:"currencyCode,omitempty"`
	Date         time.Time `json:"date"`
	Destination  Address   `json:"destination"`
	Lines        []Line    `json:"lines"`
}

// TaxDetail is one jurisdiction's tax on a line. Rate is a percentage.
type TaxDetail struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type LineTax struct {
	ID      string          `json:"id"`
	Taxable decimal.Decimal `json:"taxable"`
	Tax     decimal.Decimal `json:"tax"`
	Rate    decimal.Decimal `json:"rate"`
	Details []TaxDetail     `json:"details,omitempty"`
}

// SummaryRow aggregates one tax name across all lines. Rate is a percentage.
type SummaryRow struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type EstimateResult struct {
	Lines   []LineTax    `json:"lines"`
	Summary []SummaryRow `json:"summary"`
}

type AddressRequest struct {
	Address Address `json:"address"`
}

type AddressResult struct {
	Valid      bool     `json:"valid"`
	Normalized *Address `json:"normalized,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

type DocumentType string

const (
	DocumentSalesInvoice  DocumentType = "SalesInvoice"
	DocumentReturnInvoice DocumentType = "ReturnInvoice"
)

// CommitRequest posts a finalized invoice. With Commit false the document
// is recorded uncommitted.
type CommitRequest struct {
	DocumentRef  string       `json:"documentRef"`
	DocumentType DocumentType `json:"documentType"`
	StoreID      string       `json:"storeId"`
	OrderRef     string       `json:"orderRef,omitempty"`
	CustomerCode string       `json:"customerCode,omitempty"`
	Date         time.Time    `json:"date"`
	Destination  Address      `json:"destination"`
	Lines        []Line       `json:"lines"`
	Summary      []SummaryRow `json:"summary,omitempty"`
	Commit       bool         `json:"commit"`
}

// CancelRequest reverses tax for a refunded document.
type CancelRequest struct {
	DocumentRef  string       `json:"documentRef"`
	DocumentType DocumentType `json:"documentType"`
	StoreID      string       `json:"storeId"`
	OrderRef     string       `json:"orderRef,omitempty"`
	CustomerCode string       `json:"customerCode,omitempty"`
	Date         time.Time    `json:"date"`
	Destination  Address      `json:"destination"`
	Lines        []Line       `json:"lines"`
	Summary      []SummaryRow `json:"summary,omitempty"`
	Commit       bool         `json:"commit"`
}

type Credentials struct {
	URL         string
	Account     string
	License     string
	CompanyCode string
}
