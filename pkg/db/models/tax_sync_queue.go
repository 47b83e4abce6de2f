package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/taxsync/pkg/enums"
)

// TaxSyncQueue is one financial document waiting to be sent to the tax
// service. At most one active row exists per document type and ref.
type TaxSyncQueue struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	DocumentType enums.SyncDocumentType `gorm:"column:document_type;not null"`
	DocumentRef  string                 `gorm:"column:document_ref;not null"`
	StoreID      string                 `gorm:"column:store_id;not null"`
	Status       enums.SyncStatus       `gorm:"column:status;not null"`
	Payload      json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount int                    `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string                `gorm:"column:last_error"`
	CreatedAt    time.Time              `gorm:"column:created_at"`
	UpdatedAt    time.Time              `gorm:"column:updated_at"`
	ProcessedAt  *time.Time             `gorm:"column:processed_at"`
}

func (TaxSyncQueue) TableName() string { return "tax_sync_queue" }
