// Package pipeline exposes the typed stages the storefront calls when a
// cart is recalculated, an order is placed, or a financial document is
// finalized.
package pipeline

import (
	"context"
	"errors"

	"github.com/angelmondragon/taxsync/internal/address"
	"github.com/angelmondragon/taxsync/internal/sales"
	"github.com/angelmondragon/taxsync/internal/syncqueue"
	"github.com/angelmondragon/taxsync/internal/tax"
	"github.com/angelmondragon/taxsync/pkg/config"
	"github.com/angelmondragon/taxsync/pkg/db/models"
	"github.com/angelmondragon/taxsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

type queue interface {
	LoadByRef(ctx context.Context, docType enums.SyncDocumentType, ref string) (*models.TaxSyncQueue, error)
	Enqueue(ctx context.Context, doc syncqueue.Document) (*models.TaxSyncQueue, error)
}

// Params wires a Pipeline. Validator is optional.
type Params struct {
	Config    config.TaxConfig
	Collector *tax.Collector
	Validator *address.Validator
	Queue     queue
	Logger    *logger.Logger
}

type Pipeline struct {
	cfg       config.TaxConfig
	mode      enums.OperatingMode
	filter    config.RegionFilter
	collector *tax.Collector
	validator *address.Validator
	queue     queue
	logg      *logger.Logger
}

func New(params Params) (*Pipeline, error) {
	if params.Collector == nil {
		return nil, errors.New("tax collector required")
	}
	if params.Queue == nil {
		return nil, errors.New("sync queue required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Pipeline{
		cfg:       params.Config,
		mode:      params.Config.OperatingMode(),
		filter:    params.Config.RegionFilter(),
		collector: params.Collector,
		validator: params.Validator,
		queue:     params.Queue,
		logg:      params.Logger,
	}, nil
}

// QuoteTotals maps address id to its display totals.
type QuoteTotals map[string][]tax.Total

// OnQuoteRecalculate collects tax for every address of quote and returns
// the display totals. It does nothing when tax calculation is disabled.
//
// Every address is collected even when one fails, so no address keeps
// totals from an earlier run. The first failure is returned.
func (p *Pipeline) OnQuoteRecalculate(ctx context.Context, quote *sales.Quote) (QuoteTotals, error) {
	if !p.mode.CalculatesTax() {
		return nil, nil
	}
	ctx = p.logg.WithQuoteID(ctx, quote.ID)
	quote.EstimateTaxError = false

	var firstErr error
	totals := make(QuoteTotals, len(quote.Addresses))
	for _, addr := range quote.Addresses {
		if err := p.collector.Collect(ctx, addr); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		totals[addr.ID] = p.collector.Fetch(addr)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return totals, nil
}

// OnShippingAddressSubmit validates the quote's shipping addresses.
func (p *Pipeline) OnShippingAddressSubmit(ctx context.Context, quote *sales.Quote) (address.ValidationResult, error) {
	if p.validator == nil || !p.mode.CalculatesTax() {
		return address.ValidationResult{}, nil
	}
	return p.validator.ValidateShipping(ctx, quote)
}

// OnOrderPlace blocks order placement when the last estimate failed and
// full stop is configured.
func (p *Pipeline) OnOrderPlace(ctx context.Context, quote *sales.Quote) error {
	if !p.mode.CalculatesTax() || !p.cfg.FullStopOnError || !quote.EstimateTaxError {
		return nil
	}
	p.logg.Warn(p.logg.WithQuoteID(ctx, quote.ID), "order blocked: tax could not be estimated")
	msg := p.cfg.ErrorMessage
	if msg == "" {
		msg = "tax could not be calculated"
	}
	return pkgerrors.New(pkgerrors.CodeServiceUnavailable, msg).
		WithDetails(map[string]any{"quote_id": quote.ID})
}
