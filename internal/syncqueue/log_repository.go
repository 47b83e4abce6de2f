package syncqueue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/taxsync/pkg/db/models"
)

// LogRepository persists tax_sync_log entries.
type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) WithTx(tx *gorm.DB) *LogRepository {
	if tx == nil {
		return r
	}
	return &LogRepository{db: tx}
}

func (r *LogRepository) Insert(ctx context.Context, entry *models.TaxSyncLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *LogRepository) ListByQueueID(ctx context.Context, queueID uuid.UUID) ([]models.TaxSyncLog, error) {
	var rows []models.TaxSyncLog
	err := r.db.WithContext(ctx).
		Where("queue_id = ?", queueID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// DeleteOlderThan removes entries created before cutoff.
func (r *LogRepository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	res := tx.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.TaxSyncLog{})
	return res.RowsAffected, res.Error
}
