package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/pkg/config"
	"github.com/angelmondragon/taxsync/pkg/db/models"
	"github.com/angelmondragon/taxsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
	"github.com/angelmondragon/taxsync/pkg/logger"
	"github.com/angelmondragon/taxsync/pkg/metrics"
)

const defaultBatchSize = 50

// ProcessorParams wires a Processor.
type ProcessorParams struct {
	Queue     *Service
	Client    taxservice.Client
	Config    config.TaxConfig
	Logger    *logger.Logger
	Metrics   *metrics.TaxMetrics
	BatchSize int
	Now       func() time.Time
}

// Processor drains pending records. Failed records move to error and are
// left there; nothing in Run retries them.
type Processor struct {
	queue     *Service
	client    taxservice.Client
	mode      enums.OperatingMode
	logg      *logger.Logger
	metrics   *metrics.TaxMetrics
	batchSize int
	now       func() time.Time
}

// Result summarizes one Run.
type Result struct {
	Claimed   int
	Committed int
	Failed    int
	Skipped   int
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Queue == nil {
		return nil, errors.New("queue service required")
	}
	if params.Client == nil {
		return nil, errors.New("tax service client required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		queue:     params.Queue,
		client:    params.Client,
		mode:      params.Config.OperatingMode(),
		logg:      params.Logger,
		metrics:   params.Metrics,
		batchSize: batch,
		now:       now,
	}, nil
}

// Run claims the next batch and submits each record once. Submission
// failures are recorded on the record and do not fail the run; storage
// failures are collected and returned.
func (p *Processor) Run(ctx context.Context) (Result, error) {
	var res Result
	if !p.mode.SubmitsDocuments() {
		p.logg.Debug(p.logg.WithField(ctx, "mode", p.mode), "document submission disabled for operating mode")
		return res, nil
	}

	batch, err := p.queue.NextBatch(ctx, p.batchSize)
	if err != nil {
		return res, err
	}

	var errs error
	for i := range batch {
		if err := ctx.Err(); err != nil {
			return res, multierr.Append(errs, err)
		}
		outcome, err := p.process(ctx, &batch[i])
		switch outcome {
		case enums.SyncStatusCommitted:
			res.Claimed++
			res.Committed++
		case enums.SyncStatusError:
			res.Claimed++
			res.Failed++
		default:
			res.Skipped++
		}
		errs = multierr.Append(errs, err)
	}
	return res, errs
}

func (p *Processor) process(ctx context.Context, row *models.TaxSyncQueue) (enums.SyncStatus, error) {
	ctx = p.logg.WithDocument(ctx, string(row.DocumentType), row.DocumentRef)
	ctx = p.logg.WithField(ctx, "queue_id", row.ID.String())

	if err := p.queue.Claim(ctx, row.ID); err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			p.logg.Info(ctx, "queue record already claimed")
			return "", nil
		}
		return "", err
	}

	submitErr := p.submit(ctx, row)
	at := p.now().UTC()

	if submitErr != nil {
		entry := p.entry(row, enums.LogSeverityError, "tax document submission failed", submitErr)
		if err := p.queue.MarkFailed(ctx, row.ID, at, submitErr, entry); err != nil {
			return "", fmt.Errorf("mark record %s failed: %w", row.ID, err)
		}
		p.metrics.IncDocument(string(row.DocumentType), string(enums.SyncStatusError))
		p.logg.Error(p.logg.WithFields(ctx, pkgerrors.Dump(submitErr).Fields()), "tax document submission failed", submitErr)
		return enums.SyncStatusError, nil
	}

	entry := p.entry(row, enums.LogSeverityInfo, "tax document committed", nil)
	if err := p.queue.MarkCommitted(ctx, row.ID, at, entry); err != nil {
		return "", fmt.Errorf("mark record %s committed: %w", row.ID, err)
	}
	p.metrics.IncDocument(string(row.DocumentType), string(enums.SyncStatusCommitted))
	p.logg.Info(ctx, "tax document committed")
	return enums.SyncStatusCommitted, nil
}

func (p *Processor) submit(ctx context.Context, row *models.TaxSyncQueue) error {
	doc, err := decodeDocument(row.Payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable queue payload")
	}
	commit := p.mode.CommitsDocuments()

	var op string
	started := time.Now()
	switch doc.Type {
	case enums.DocumentInvoice:
		op = "commit"
		err = p.client.Commit(ctx, taxservice.CommitRequest{
			DocumentRef:  doc.Ref,
			DocumentType: taxservice.DocumentSalesInvoice,
			StoreID:      doc.StoreID,
			OrderRef:     doc.OrderRef,
			CustomerCode: doc.CustomerCode,
			Date:         doc.Date,
			Destination:  doc.Destination,
			Lines:        doc.Lines,
			Summary:      doc.Summary,
			Commit:       commit,
		})
	case enums.DocumentCreditMemo:
		op = "cancel"
		err = p.client.Cancel(ctx, taxservice.CancelRequest{
			DocumentRef:  doc.Ref,
			DocumentType: taxservice.DocumentReturnInvoice,
			StoreID:      doc.StoreID,
			OrderRef:     doc.OrderRef,
			CustomerCode: doc.CustomerCode,
			Date:         doc.Date,
			Destination:  doc.Destination,
			Lines:        doc.Lines,
			Summary:      doc.Summary,
			Commit:       commit,
		})
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported document type %q", doc.Type))
	}
	p.metrics.ObserveCall(op, time.Since(started), err)
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeServiceUnavailable, err, "tax service "+op+" failed")
}

func (p *Processor) entry(row *models.TaxSyncQueue, severity enums.LogSeverity, msg string, cause error) *models.TaxSyncLog {
	id := row.ID
	entry := &models.TaxSyncLog{
		Severity:     severity,
		Message:      msg,
		DocumentType: row.DocumentType,
		DocumentRef:  row.DocumentRef,
		QueueID:      &id,
		CreatedAt:    p.now().UTC(),
	}
	if cause != nil {
		if detail, err := json.Marshal(pkgerrors.Dump(cause)); err == nil {
			entry.Detail = detail
		}
	}
	return entry
}
