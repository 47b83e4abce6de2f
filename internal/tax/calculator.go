// Package tax computes per-line and per-address tax for quotes using the
// external tax service.
package tax

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/taxsync/internal/address"
	"github.com/angelmondragon/taxsync/internal/rounding"
	"github.com/angelmondragon/taxsync/internal/sales"
	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/pkg/config"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
	"github.com/angelmondragon/taxsync/pkg/logger"
	"github.com/angelmondragon/taxsync/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Line ids used to match estimate response lines back to the quote.
const (
	itemLinePrefix         = "item:"
	itemGiftWrapLinePrefix = "gw_item:"
	shippingLineID         = "shipping"
	giftWrapOrderLineID    = "gw_order"
	printedCardLineID      = "gw_printed_card"
)

// CalculatorParams wires a Calculator.
type CalculatorParams struct {
	Client  taxservice.Client
	Config  config.TaxConfig
	Logger  *logger.Logger
	Metrics *metrics.TaxMetrics
	Now     func() time.Time
}

// Calculator issues one batched estimate per address.
type Calculator struct {
	client  taxservice.Client
	cfg     config.TaxConfig
	filter  config.RegionFilter
	logg    *logger.Logger
	metrics *metrics.TaxMetrics
	now     func() time.Time
}

func NewCalculator(params CalculatorParams) (*Calculator, error) {
	if params.Client == nil {
		return nil, errors.New("tax service client required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Calculator{
		client:  params.Client,
		cfg:     params.Config,
		filter:  params.Config.RegionFilter(),
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// ForAddress estimates tax for every taxable line of addr in a single
// request. Sentinel and region-filtered addresses yield a skipped result
// without contacting the service.
func (c *Calculator) ForAddress(ctx context.Context, addr *sales.Address) (*AddressCalculation, error) {
	result := &AddressCalculation{address: addr, store: addr.Store(), lines: map[string]taxservice.LineTax{}}

	if addr.HasSentinelPostcode() || !address.IsActionable(addr, addr.Store(), c.filter, address.PurposeTax) {
		result.skipped = true
		return result, nil
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "postal code is required for tax calculation").
			WithDetails(map[string]any{"address_id": addr.ID})
	}

	req := c.buildRequest(addr)
	if len(req.Lines) == 0 {
		result.skipped = true
		return result, nil
	}

	started := time.Now()
	res, err := c.client.Estimate(ctx, req)
	c.metrics.ObserveCall("estimate", time.Since(started), err)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeServiceUnavailable, err, "tax estimate failed")
	}

	for _, line := range res.Lines {
		result.lines[line.ID] = line
	}
	result.summary = res.Summary

	c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
		"address_id": addr.ID,
		"lines":      len(req.Lines),
	}), "tax estimate received")
	return result, nil
}

func (c *Calculator) buildRequest(addr *sales.Address) taxservice.EstimateRequest {
	req := taxservice.EstimateRequest{
		Date:        c.now(),
		Destination: address.ServiceAddress(addr),
	}
	if store := addr.Store(); store != nil {
		req.StoreID = store.ID
		req.CurrencyCode = store.BaseCurrency
	}
	if addr.Quote != nil {
		req.CustomerCode = addr.Quote.CustomerID
	}

	for _, item := range addr.Items {
		if isProductCalculated(addr, item) {
			continue
		}
		req.Lines = append(req.Lines, taxservice.Line{
			ID:          itemLinePrefix + item.ID,
			SKU:         item.SKU,
			Description: item.Name,
			TaxCode:     item.TaxClass,
			Quantity:    item.Qty,
			Amount:      item.BaseRowAmount(),
			TaxIncluded: c.cfg.PriceIncludesTax,
		})
		if item.BaseGiftWrapPrice.IsPositive() {
			req.Lines = append(req.Lines, taxservice.Line{
				ID:       itemGiftWrapLinePrefix + item.ID,
				SKU:      c.cfg.GiftWrapItemSKU,
				Quantity: item.Qty,
				Amount:   rounding.Round(item.BaseGiftWrapPrice.Mul(item.Qty)),
			})
		}
	}

	if addr.IsShipping() {
		req.Lines = append(req.Lines, chargeLine(shippingLineID, c.cfg.ShippingSKU, addr.BaseShippingAmount))
	}
	if addr.BaseGiftWrapPrice.IsPositive() {
		req.Lines = append(req.Lines, chargeLine(giftWrapOrderLineID, c.cfg.GiftWrapOrderSKU, addr.BaseGiftWrapPrice))
	}
	if addr.GiftWrapAddPrintedCard {
		req.Lines = append(req.Lines, chargeLine(printedCardLineID, c.cfg.GiftWrapPrintedCardSKU, addr.BasePrintedCardPrice))
	}
	return req
}

func chargeLine(id, sku string, amount decimal.Decimal) taxservice.Line {
	return taxservice.Line{ID: id, SKU: sku, Quantity: decimal.NewFromInt(1), Amount: amount}
}

// isProductCalculated reports whether item's tax is carried by a related
// line: a parent whose children are priced separately, or a child of a
// parent that is not.
func isProductCalculated(addr *sales.Address, item *sales.LineItem) bool {
	if !item.IsChild() {
		if !item.ChildrenCalculated {
			return false
		}
		for _, other := range addr.Items {
			if other.ParentID == item.ID {
				return true
			}
		}
		return false
	}
	parent := addr.Item(item.ParentID)
	return parent != nil && !parent.ChildrenCalculated
}
