package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/taxsync/pkg/enums"
)

// TaxSyncLog is an append-only record of sync outcomes.
type TaxSyncLog struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Severity     enums.LogSeverity      `gorm:"column:severity;not null"`
	Message      string                 `gorm:"column:message;not null"`
	DocumentType enums.SyncDocumentType `gorm:"column:document_type"`
	DocumentRef  string                 `gorm:"column:document_ref"`
	QueueID      *uuid.UUID             `gorm:"column:queue_id;type:uuid"`
	Detail       json.RawMessage        `gorm:"column:detail;type:jsonb"`
	CreatedAt    time.Time              `gorm:"column:created_at"`
}

func (TaxSyncLog) TableName() string { return "tax_sync_log" }
