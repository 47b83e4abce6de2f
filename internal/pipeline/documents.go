package pipeline

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/taxsync/internal/address"
	"github.com/angelmondragon/taxsync/internal/sales"
	"github.com/angelmondragon/taxsync/internal/syncqueue"
	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/pkg/db/models"
	"github.com/angelmondragon/taxsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
)

// OnInvoiceFinalized queues a paid invoice for submission. Repeated saves of
// the same invoice queue it once; the existing record is returned instead.
func (p *Pipeline) OnInvoiceFinalized(ctx context.Context, inv *sales.Invoice) (*models.TaxSyncQueue, error) {
	if !p.mode.SubmitsDocuments() {
		return nil, nil
	}
	if inv.State != sales.InvoicePaid {
		return nil, nil
	}
	if !inv.IsNew() && inv.OrigState != sales.InvoiceOpen {
		return nil, nil
	}
	if inv.Address == nil || !address.IsActionable(inv.Address, inv.Store, p.filter, address.PurposeTax) {
		return nil, nil
	}

	doc := syncqueue.Document{
		Type:         enums.DocumentInvoice,
		Ref:          inv.IncrementID,
		OrderRef:     inv.OrderIncrementID,
		CustomerCode: inv.CustomerCode,
		Date:         documentDate(inv.CreatedAt),
		Destination:  address.ServiceAddress(inv.Address),
		Summary:      summaryRows(inv.AppliedTaxes),
	}
	if inv.Store != nil {
		doc.StoreID = inv.Store.ID
	}
	doc.Lines = p.lines(inv.Lines, inv.BaseShippingAmount, inv.BaseShippingTaxAmount)
	return p.enqueue(ctx, doc)
}

// OnCreditMemoFinalized queues a newly created credit memo for
// cancellation at the tax service.
func (p *Pipeline) OnCreditMemoFinalized(ctx context.Context, memo *sales.CreditMemo) (*models.TaxSyncQueue, error) {
	if !p.mode.SubmitsDocuments() || !memo.New {
		return nil, nil
	}
	if memo.Address == nil || !address.IsActionable(memo.Address, memo.Store, p.filter, address.PurposeTax) {
		return nil, nil
	}

	doc := syncqueue.Document{
		Type:         enums.DocumentCreditMemo,
		Ref:          memo.IncrementID,
		OrderRef:     memo.OrderIncrementID,
		CustomerCode: memo.CustomerCode,
		Date:         documentDate(memo.CreatedAt),
		Destination:  address.ServiceAddress(memo.Address),
		Summary:      summaryRows(memo.AppliedTaxes),
	}
	if memo.Store != nil {
		doc.StoreID = memo.Store.ID
	}
	doc.Lines = p.lines(memo.Lines, memo.BaseShippingAmount, memo.BaseShippingTaxAmount)
	if memo.BaseAdjustmentPositive.IsPositive() {
		doc.Lines = append(doc.Lines, adjustmentLine("adjustment_refund", p.cfg.AdjustmentPositiveSKU, memo.BaseAdjustmentPositive))
	}
	if memo.BaseAdjustmentNegative.IsPositive() {
		doc.Lines = append(doc.Lines, adjustmentLine("adjustment_fee", p.cfg.AdjustmentNegativeSKU, memo.BaseAdjustmentNegative.Neg()))
	}
	return p.enqueue(ctx, doc)
}

func (p *Pipeline) enqueue(ctx context.Context, doc syncqueue.Document) (*models.TaxSyncQueue, error) {
	ctx = p.logg.WithDocument(ctx, string(doc.Type), doc.Ref)

	existing, err := p.queue.LoadByRef(ctx, doc.Type, doc.Ref)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status.IsActive() {
		p.logg.Debug(p.logg.WithField(ctx, "status", existing.Status), "document already queued")
		return existing, nil
	}

	row, err := p.queue.Enqueue(ctx, doc)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeDuplicate) {
			p.logg.Info(ctx, "document queued concurrently, skipping")
			return p.queue.LoadByRef(ctx, doc.Type, doc.Ref)
		}
		return nil, err
	}
	return row, nil
}

func (p *Pipeline) lines(docLines []sales.DocumentLine, shipping, shippingTax decimal.Decimal) []taxservice.Line {
	out := make([]taxservice.Line, 0, len(docLines)+1)
	for _, l := range docLines {
		out = append(out, taxservice.Line{
			ID:          "item:" + l.ItemID,
			SKU:         l.SKU,
			Description: l.Name,
			TaxCode:     l.TaxClass,
			Quantity:    l.Qty,
			Amount:      l.Amount,
			TaxIncluded: p.cfg.PriceIncludesTax,
			TaxAmount:   l.TaxAmount,
		})
	}
	if !shipping.IsZero() {
		out = append(out, taxservice.Line{
			ID:        "shipping",
			SKU:       p.cfg.ShippingSKU,
			Quantity:  decimal.NewFromInt(1),
			Amount:    shipping,
			TaxAmount: shippingTax,
		})
	}
	return out
}

func adjustmentLine(id, sku string, amount decimal.Decimal) taxservice.Line {
	return taxservice.Line{ID: id, SKU: sku, Quantity: decimal.NewFromInt(1), Amount: amount}
}

func summaryRows(applied []sales.AppliedTax) []taxservice.SummaryRow {
	if len(applied) == 0 {
		return nil
	}
	rows := make([]taxservice.SummaryRow, 0, len(applied))
	for _, a := range applied {
		rows = append(rows, taxservice.SummaryRow{Name: a.ID, Rate: a.Percent, Amount: a.BaseAmount})
	}
	return rows
}

func documentDate(created time.Time) time.Time {
	if created.IsZero() {
		return time.Now().UTC()
	}
	return created.UTC()
}
