package tax

import (
	"context"
	"errors"

	"github.com/angelmondragon/taxsync/internal/address"
	"github.com/angelmondragon/taxsync/internal/rounding"
	"github.com/angelmondragon/taxsync/internal/sales"
	"github.com/angelmondragon/taxsync/pkg/config"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

type estimator interface {
	ForAddress(ctx context.Context, addr *sales.Address) (*AddressCalculation, error)
}

// CollectorParams wires a Collector.
type CollectorParams struct {
	Calculator *Calculator
	Config     config.TaxConfig
	Logger     *logger.Logger
}

// Collector writes estimated tax onto quote addresses and their items.
type Collector struct {
	calc   estimator
	cfg    config.TaxConfig
	filter config.RegionFilter
	logg   *logger.Logger
}

func NewCollector(params CollectorParams) (*Collector, error) {
	if params.Calculator == nil {
		return nil, errors.New("calculator required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Collector{
		calc:   params.Calculator,
		cfg:    params.Config,
		filter: params.Config.RegionFilter(),
		logg:   params.Logger,
	}, nil
}

// Collect recomputes tax for addr. Every tax field is reset first, so
// running it twice on unchanged input yields the same totals.
//
// A tax service outage leaves the totals at zero and flags the quote. The
// error is only returned when full stop is configured.
func (c *Collector) Collect(ctx context.Context, addr *sales.Address) error {
	addr.ResetTaxTotals()

	if !addr.HasItems() || addr.HasSentinelPostcode() {
		return nil
	}
	store := addr.Store()
	if !address.IsActionable(addr, store, c.filter, address.PurposeTax) {
		return nil
	}

	ctx = c.logg.WithField(ctx, "address_id", addr.ID)
	if addr.Quote != nil {
		ctx = c.logg.WithQuoteID(ctx, addr.Quote.ID)
	}
	if store != nil {
		ctx = c.logg.WithStoreID(ctx, store.ID)
	}

	calc, err := c.calc.ForAddress(ctx, addr)
	if err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeServiceUnavailable) {
			return err
		}
		if addr.Quote != nil {
			addr.Quote.EstimateTaxError = true
		}
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "tax estimate unavailable, totals left at zero")
		if c.cfg.FullStopOnError {
			return err
		}
		return nil
	}
	if calc.Skipped() {
		return nil
	}

	groups := make(map[string][]sales.ItemTaxGroup, len(addr.Items))
	for _, item := range addr.Items {
		c.applyItem(addr, store, calc, item)
		groups[item.ID] = calc.ItemTaxGroups(item)
	}

	if addr.IsShipping() {
		c.applyShipping(addr, store, calc)
	}
	c.applyGiftWrap(addr, calc)

	addr.TaxAmount = addr.TotalAmount(sales.TotalTax)
	addr.BaseTaxAmount = addr.BaseTotalAmount(sales.TotalTax)
	addr.Subtotal = addr.TotalAmount(sales.TotalSubtotal)
	addr.BaseSubtotal = addr.BaseTotalAmount(sales.TotalSubtotal)

	if addr.Quote != nil {
		addr.Quote.MergeTaxesForItems(groups)
	}
	addr.AppliedTaxes = appliedTaxes(store, calc)

	c.logg.Debug(c.logg.WithField(ctx, "tax_amount", addr.TaxAmount.String()), "address tax collected")
	return nil
}

func (c *Collector) applyItem(addr *sales.Address, store *sales.Store, calc *AddressCalculation, item *sales.LineItem) {
	lt := calc.Item(item)
	gw := calc.ItemGiftWrap(item)

	item.TaxAmount = lt.Tax
	item.BaseTaxAmount = lt.BaseTax
	item.TaxPercent = lt.Rate

	baseGiftUnit := rounding.PerUnit(gw.BaseTax, item.Qty)
	item.BaseGiftWrapTaxAmount = baseGiftUnit
	item.GiftWrapTaxAmount = store.ConvertPrice(baseGiftUnit)

	unitTax := rounding.PerUnit(lt.Tax, item.Qty)
	baseUnitTax := rounding.PerUnit(lt.BaseTax, item.Qty)
	item.RowTax = lt.Tax
	item.BaseRowTax = lt.BaseTax
	if c.cfg.PriceIncludesTax {
		item.Price = item.Price.Sub(unitTax)
		item.BasePrice = item.BasePrice.Sub(baseUnitTax)
		item.CalcRowTotal()
	}
	item.PriceInclTax = item.Price.Add(unitTax)
	item.BasePriceInclTax = item.BasePrice.Add(baseUnitTax)
	item.RowTotalInclTax = item.RowTotal.Add(lt.Tax)
	item.BaseRowTotalInclTax = item.BaseRowTotal.Add(lt.BaseTax)

	addr.AddTotalAmount(sales.TotalTax, gw.Tax)
	addr.AddBaseTotalAmount(sales.TotalTax, gw.BaseTax)
	if lt.ProductCalculated {
		return
	}
	addr.AddTotalAmount(sales.TotalTax, lt.Tax)
	addr.AddBaseTotalAmount(sales.TotalTax, lt.BaseTax)

	addr.AddTotalAmount(sales.TotalSubtotal, item.RowTotal)
	addr.AddBaseTotalAmount(sales.TotalSubtotal, item.BaseRowTotal)
	addr.SubtotalInclTax = addr.SubtotalInclTax.Add(item.RowTotalInclTax)
	addr.BaseSubtotalInclTax = addr.BaseSubtotalInclTax.Add(item.BaseRowTotalInclTax)
}

func (c *Collector) applyShipping(addr *sales.Address, store *sales.Store, calc *AddressCalculation) {
	s := calc.Shipping()
	base := addr.BaseShippingAmount
	amount := store.ConvertPrice(base)

	addr.SetTotalAmount(sales.TotalShipping, amount)
	addr.SetBaseTotalAmount(sales.TotalShipping, base)
	addr.ShippingTaxAmount = s.Tax
	addr.BaseShippingTaxAmount = s.BaseTax
	addr.ShippingInclTax = amount.Add(s.Tax)
	addr.BaseShippingInclTax = base.Add(s.BaseTax)
	if !s.BaseTax.IsZero() {
		addr.ShippingTaxable = amount
		addr.BaseShippingTaxable = base
	}

	addr.AddTotalAmount(sales.TotalTax, s.Tax)
	addr.AddBaseTotalAmount(sales.TotalTax, s.BaseTax)
}

func (c *Collector) applyGiftWrap(addr *sales.Address, calc *AddressCalculation) {
	if addr.BaseGiftWrapPrice.IsPositive() {
		g := calc.GiftWrapOrder()
		addr.GiftWrapTaxAmount = g.Tax
		addr.BaseGiftWrapTaxAmount = g.BaseTax
		addr.AddTotalAmount(sales.TotalTax, g.Tax)
		addr.AddBaseTotalAmount(sales.TotalTax, g.BaseTax)
	}
	if addr.GiftWrapAddPrintedCard {
		p := calc.PrintedCard()
		addr.PrintedCardTaxAmount = p.Tax
		addr.BasePrintedCardTaxAmount = p.BaseTax
		addr.AddTotalAmount(sales.TotalTax, p.Tax)
		addr.AddBaseTotalAmount(sales.TotalTax, p.BaseTax)
	}
}

// appliedTaxes builds one applied tax per summary name. Repeated names
// keep the last row.
func appliedTaxes(store *sales.Store, calc *AddressCalculation) []sales.AppliedTax {
	summary := calc.Summary()
	if len(summary) == 0 {
		return nil
	}
	out := make([]sales.AppliedTax, 0, len(summary))
	index := make(map[string]int, len(summary))
	for i, row := range summary {
		applied := sales.AppliedTax{
			ID:         row.Name,
			Percent:    row.Rate,
			Amount:     store.ConvertPrice(row.Amount),
			BaseAmount: row.Amount,
			Rates: []sales.AppliedRate{{
				Code:     row.Name,
				Title:    row.Name,
				Percent:  row.Rate,
				Position: i,
				Priority: i,
			}},
		}
		if at, ok := index[row.Name]; ok {
			out[at] = applied
			continue
		}
		index[row.Name] = len(out)
		out = append(out, applied)
	}
	return out
}
