// Package taxservicetest provides an in-memory tax service for tests.
package taxservicetest

import (
	"context"
	"sync"

	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/shopspring/decimal"
)

// Fake computes tax as Rate percent of every line amount and records calls.
type Fake struct {
	mu sync.Mutex

	// Rate is the percentage applied to every line. Per-SKU overrides go in
	// RatesBySKU.
	Rate       decimal.Decimal
	RatesBySKU map[string]decimal.Decimal
	TaxName    string

	EstimateErr error
	// EstimateErrByPostcode fails estimates for one destination only.
	EstimateErrByPostcode map[string]error
	CommitErr             error
	CancelErr   error
	ValidateFn  func(taxservice.AddressRequest) (*taxservice.AddressResult, error)
	PingMessage string
	PingErr     error

	Estimates []taxservice.EstimateRequest
	Commits   []taxservice.CommitRequest
	Cancels   []taxservice.CancelRequest
	Validates []taxservice.AddressRequest
}

var _ taxservice.Client = (*Fake)(nil)

func (f *Fake) Estimate(_ context.Context, req taxservice.EstimateRequest) (*taxservice.EstimateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Estimates = append(f.Estimates, req)
	if f.EstimateErr != nil {
		return nil, f.EstimateErr
	}
	if err := f.EstimateErrByPostcode[req.Destination.PostalCode]; err != nil {
		return nil, err
	}

	name := f.TaxName
	if name == "" {
		name = "STATE TAX"
	}
	res := &taxservice.EstimateResult{}
	total := decimal.Zero
	rate := f.Rate
	for _, line := range req.Lines {
		lineRate := rate
		if r, ok := f.RatesBySKU[line.SKU]; ok {
			lineRate = r
		}
		tax := line.Amount.Mul(lineRate).Div(decimal.NewFromInt(100)).Round(2)
		total = total.Add(tax)
		res.Lines = append(res.Lines, taxservice.LineTax{
			ID:      line.ID,
			Taxable: line.Amount,
			Tax:     tax,
			Rate:    lineRate,
			Details: []taxservice.TaxDetail{{Name: name, Rate: lineRate, Amount: tax}},
		})
	}
	if len(req.Lines) > 0 {
		res.Summary = []taxservice.SummaryRow{{Name: name, Rate: rate, Amount: total}}
	}
	return res, nil
}

func (f *Fake) ValidateAddress(_ context.Context, req taxservice.AddressRequest) (*taxservice.AddressResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Validates = append(f.Validates, req)
	if f.ValidateFn != nil {
		return f.ValidateFn(req)
	}
	return &taxservice.AddressResult{Valid: true}, nil
}

func (f *Fake) Commit(_ context.Context, req taxservice.CommitRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commits = append(f.Commits, req)
	return f.CommitErr
}

func (f *Fake) Cancel(_ context.Context, req taxservice.CancelRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cancels = append(f.Cancels, req)
	return f.CancelErr
}

func (f *Fake) Ping(_ context.Context, _ taxservice.Credentials) (string, error) {
	return f.PingMessage, f.PingErr
}

// EstimateCalls returns the number of Estimate calls made so far.
func (f *Fake) EstimateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Estimates)
}
