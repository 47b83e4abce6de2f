package enums

import "fmt"

// SyncDocumentType maps to the document_type column of tax_sync_queue.
type SyncDocumentType string

const (
	DocumentInvoice    SyncDocumentType = "invoice"
	DocumentCreditMemo SyncDocumentType = "credit_memo"
)

var validSyncDocumentTypes = []SyncDocumentType{
	DocumentInvoice,
	DocumentCreditMemo,
}

// IsValid reports whether the value is a known document type.
func (d SyncDocumentType) IsValid() bool {
	for _, candidate := range validSyncDocumentTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseSyncDocumentType converts raw input into SyncDocumentType.
func ParseSyncDocumentType(value string) (SyncDocumentType, error) {
	for _, candidate := range validSyncDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}

// SyncStatus tracks a queued document through submission.
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusProcessing SyncStatus = "processing"
	SyncStatusCommitted  SyncStatus = "committed"
	SyncStatusError      SyncStatus = "error"
)

var validSyncStatuses = []SyncStatus{
	SyncStatusPending,
	SyncStatusProcessing,
	SyncStatusCommitted,
	SyncStatusError,
}

// ActiveSyncStatuses block a second record for the same document.
var ActiveSyncStatuses = []SyncStatus{
	SyncStatusPending,
	SyncStatusProcessing,
	SyncStatusCommitted,
}

func (s SyncStatus) IsValid() bool {
	for _, candidate := range validSyncStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether a record in this status counts against the
// one-active-record-per-document rule.
func (s SyncStatus) IsActive() bool {
	for _, candidate := range ActiveSyncStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseSyncStatus(value string) (SyncStatus, error) {
	for _, candidate := range validSyncStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync status %q", value)
}

// LogSeverity is the level of a tax_sync_log entry.
type LogSeverity string

const (
	LogSeverityInfo    LogSeverity = "info"
	LogSeverityWarning LogSeverity = "warning"
	LogSeverityError   LogSeverity = "error"
)

func (l LogSeverity) IsValid() bool {
	switch l {
	case LogSeverityInfo, LogSeverityWarning, LogSeverityError:
		return true
	}
	return false
}
