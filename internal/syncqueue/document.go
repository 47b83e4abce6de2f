// Package syncqueue records finalized invoices and credit memos and submits
// each of them to the tax service at most once.
package syncqueue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/pkg/enums"
)

// Document is the snapshot stored in a queue record's payload and replayed
// to the tax service by the processor.
type Document struct {
	Type         enums.SyncDocumentType  `json:"type"`
	Ref          string                  `json:"ref"`
	StoreID      string                  `json:"store_id"`
	OrderRef     string                  `json:"order_ref,omitempty"`
	CustomerCode string                  `json:"customer_code,omitempty"`
	Date         time.Time               `json:"date"`
	Destination  taxservice.Address      `json:"destination"`
	Lines        []taxservice.Line       `json:"lines"`
	Summary      []taxservice.SummaryRow `json:"summary,omitempty"`
}

func (d Document) validate() error {
	if !d.Type.IsValid() {
		return fmt.Errorf("invalid document type %q", d.Type)
	}
	if strings.TrimSpace(d.Ref) == "" {
		return fmt.Errorf("document ref is required")
	}
	if strings.TrimSpace(d.StoreID) == "" {
		return fmt.Errorf("store id is required")
	}
	return nil
}

func decodeDocument(payload json.RawMessage) (Document, error) {
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document payload: %w", err)
	}
	return doc, nil
}
