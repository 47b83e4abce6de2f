package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/taxsync/pkg/db"
	"github.com/angelmondragon/taxsync/pkg/db/models"
	"github.com/angelmondragon/taxsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

const activeIndexName = "ux_tax_sync_queue_active"

// ServiceParams wires a Service.
type ServiceParams struct {
	DB         dbpkg.TxRunner
	Repository *Repository
	Logs       *LogRepository
	Logger     *logger.Logger
}

// Service is the transactional entry point to the queue.
type Service struct {
	db   dbpkg.TxRunner
	repo *Repository
	logs *LogRepository
	logg *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("queue repository required")
	}
	if params.Logs == nil {
		return nil, errors.New("log repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{db: params.DB, repo: params.Repository, logs: params.Logs, logg: params.Logger}, nil
}

// Enqueue stores doc as a pending record. It fails with CodeDuplicate when
// the document already has an active record.
func (s *Service) Enqueue(ctx context.Context, doc Document) (*models.TaxSyncQueue, error) {
	if err := doc.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tax document")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode tax document")
	}

	row := &models.TaxSyncQueue{
		DocumentType: doc.Type,
		DocumentRef:  doc.Ref,
		StoreID:      doc.StoreID,
		Status:       enums.SyncStatusPending,
		Payload:      payload,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindActive(ctx, doc.Type, doc.Ref)
		if err != nil {
			return err
		}
		if existing != nil {
			return duplicateError(doc.Type, doc.Ref, existing)
		}
		return repo.Insert(ctx, row)
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, activeIndexName) {
			return nil, duplicateError(doc.Type, doc.Ref, nil)
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enqueue tax document")
	}

	logCtx := s.logg.WithDocument(ctx, string(doc.Type), doc.Ref)
	s.logg.Info(s.logg.WithField(logCtx, "queue_id", row.ID.String()), "tax document queued")
	return row, nil
}

// LoadByRef returns the latest record for a document, or nil when the
// document was never queued.
func (s *Service) LoadByRef(ctx context.Context, docType enums.SyncDocumentType, ref string) (*models.TaxSyncQueue, error) {
	row, err := s.repo.LatestByRef(ctx, docType, ref)
	if err != nil {
		return nil, fmt.Errorf("load queue record: %w", err)
	}
	return row, nil
}

// NextBatch returns up to limit pending records, oldest first.
func (s *Service) NextBatch(ctx context.Context, limit int) ([]models.TaxSyncQueue, error) {
	rows, err := s.repo.ListByStatus(ctx, enums.SyncStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}
	return rows, nil
}

// Get returns a record by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.TaxSyncQueue, error) {
	row, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "queue record not found").
			WithDetails(map[string]any{"queue_id": id.String()})
	}
	if err != nil {
		return nil, fmt.Errorf("find queue record: %w", err)
	}
	return row, nil
}

// Claim moves a pending record to processing. Exactly one concurrent caller
// succeeds; the others get CodeStateConflict.
func (s *Service) Claim(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Transition(ctx, id, enums.SyncStatusPending, enums.SyncStatusProcessing, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
	if err != nil {
		return fmt.Errorf("claim queue record: %w", err)
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "queue record is not pending").
			WithDetails(map[string]any{"queue_id": id.String()})
	}
	return nil
}

// MarkCommitted records a successful submission together with entry.
func (s *Service) MarkCommitted(ctx context.Context, id uuid.UUID, at time.Time, entry *models.TaxSyncLog) error {
	return s.finish(ctx, id, enums.SyncStatusCommitted, map[string]any{
		"processed_at": at,
		"last_error":   nil,
	}, entry)
}

// MarkFailed records a failed submission together with entry. The record
// stays in error until an operator replays it.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, cause error, entry *models.TaxSyncLog) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.finish(ctx, id, enums.SyncStatusError, map[string]any{
		"processed_at": at,
		"last_error":   msg,
	}, entry)
}

func (s *Service) finish(ctx context.Context, id uuid.UUID, to enums.SyncStatus, updates map[string]any, entry *models.TaxSyncLog) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Transition(ctx, id, enums.SyncStatusProcessing, to, updates)
		if err != nil {
			return fmt.Errorf("update queue record: %w", err)
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "queue record is not processing").
				WithDetails(map[string]any{"queue_id": id.String(), "target": to})
		}
		if entry == nil {
			return nil
		}
		if err := s.logs.WithTx(tx).Insert(ctx, entry); err != nil {
			return fmt.Errorf("write sync log: %w", err)
		}
		return nil
	})
}

// List returns up to limit records in status, oldest first.
func (s *Service) List(ctx context.Context, status enums.SyncStatus, limit int) ([]models.TaxSyncQueue, error) {
	rows, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", status, err)
	}
	return rows, nil
}

// Release moves a record stuck in processing to error so it can be
// replayed. The submission outcome is unknown, so check the tax service
// before replaying a released record.
func (s *Service) Release(ctx context.Context, id uuid.UUID, at time.Time, reason string) (*models.TaxSyncQueue, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.Status != enums.SyncStatusProcessing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only processing records can be released").
			WithDetails(map[string]any{"queue_id": id.String(), "status": row.Status})
	}
	if reason == "" {
		reason = "released by operator"
	}
	entry := &models.TaxSyncLog{
		Severity:     enums.LogSeverityWarning,
		Message:      reason,
		DocumentType: row.DocumentType,
		DocumentRef:  row.DocumentRef,
		QueueID:      &row.ID,
		CreatedAt:    at,
	}
	if err := s.MarkFailed(ctx, id, at, errors.New(reason), entry); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithDocument(ctx, string(row.DocumentType), row.DocumentRef)
	s.logg.Warn(s.logg.WithField(logCtx, "queue_id", id.String()), "processing record released")
	return s.Get(ctx, id)
}

// Logs returns the entries written for a record.
func (s *Service) Logs(ctx context.Context, id uuid.UUID) ([]models.TaxSyncLog, error) {
	return s.logs.ListByQueueID(ctx, id)
}

// Reprocess resets an errored record to pending for another attempt.
func (s *Service) Reprocess(ctx context.Context, id uuid.UUID) (*models.TaxSyncQueue, error) {
	var out *models.TaxSyncQueue
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "queue record not found").
				WithDetails(map[string]any{"queue_id": id.String()})
		}
		if err != nil {
			return err
		}
		if row.Status != enums.SyncStatusError {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only errored records can be reprocessed").
				WithDetails(map[string]any{"queue_id": id.String(), "status": row.Status})
		}
		active, err := repo.FindActive(ctx, row.DocumentType, row.DocumentRef)
		if err != nil {
			return err
		}
		if active != nil {
			return duplicateError(row.DocumentType, row.DocumentRef, active)
		}
		ok, err := repo.Transition(ctx, id, enums.SyncStatusError, enums.SyncStatusPending, map[string]any{
			"processed_at": nil,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "queue record changed during reprocess").
				WithDetails(map[string]any{"queue_id": id.String()})
		}
		row.Status = enums.SyncStatusPending
		row.ProcessedAt = nil
		out = row
		return nil
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, activeIndexName) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicate, err, "document already has an active record")
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reprocess queue record")
	}

	logCtx := s.logg.WithDocument(ctx, string(out.DocumentType), out.DocumentRef)
	s.logg.Info(s.logg.WithField(logCtx, "queue_id", id.String()), "queue record reset for replay")
	return out, nil
}

// Counts returns the number of records per status.
func (s *Service) Counts(ctx context.Context) (map[enums.SyncStatus]int64, error) {
	return s.repo.CountByStatus(ctx)
}

func duplicateError(docType enums.SyncDocumentType, ref string, existing *models.TaxSyncQueue) error {
	details := map[string]any{
		"document_type": docType,
		"document_ref":  ref,
	}
	if existing != nil {
		details["queue_id"] = existing.ID.String()
		details["status"] = existing.Status
	}
	return pkgerrors.New(pkgerrors.CodeDuplicate, "document already queued").WithDetails(details)
}
