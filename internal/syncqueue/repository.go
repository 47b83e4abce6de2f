package syncqueue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/taxsync/pkg/db/models"
	"github.com/angelmondragon/taxsync/pkg/enums"
)

// Repository persists tax_sync_queue rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Insert(ctx context.Context, row *models.TaxSyncQueue) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// FindByID returns gorm.ErrRecordNotFound when the row is missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TaxSyncQueue, error) {
	var row models.TaxSyncQueue
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindActive returns the active row for a document, or nil.
func (r *Repository) FindActive(ctx context.Context, docType enums.SyncDocumentType, ref string) (*models.TaxSyncQueue, error) {
	var row models.TaxSyncQueue
	err := r.db.WithContext(ctx).
		Where("document_type = ? AND document_ref = ?", docType, ref).
		Where("status IN ?", enums.ActiveSyncStatuses).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// LatestByRef returns the most recently created row for a document, or nil.
func (r *Repository) LatestByRef(ctx context.Context, docType enums.SyncDocumentType, ref string) (*models.TaxSyncQueue, error) {
	var row models.TaxSyncQueue
	err := r.db.WithContext(ctx).
		Where("document_type = ? AND document_ref = ?", docType, ref).
		Order("created_at DESC").
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByStatus returns up to limit rows in creation order.
func (r *Repository) ListByStatus(ctx context.Context, status enums.SyncStatus, limit int) ([]models.TaxSyncQueue, error) {
	var rows []models.TaxSyncQueue
	q := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// Transition moves a row from one status to another, applying updates in
// the same statement. It reports false when the row was not in from.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.SyncStatus, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.TaxSyncQueue{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountByStatus returns the number of rows per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[enums.SyncStatus]int64, error) {
	var rows []struct {
		Status enums.SyncStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.TaxSyncQueue{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.SyncStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
