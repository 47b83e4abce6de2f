package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestTaxMetricsRecordsCallsAndDocuments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTaxMetrics(reg)

	m.ObserveCall("commit", 120*time.Millisecond, nil)
	m.ObserveCall("commit", 80*time.Millisecond, errors.New("timeout"))
	m.IncDocument("invoice", "committed")
	m.IncDocument("invoice", "committed")
	m.IncDocument("credit_memo", "error")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "taxsync_sync_queue_documents_total", "document_type", "invoice"); err != nil {
		t.Fatalf("fetch documents: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 committed invoices, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "taxsync_tax_service_request_duration_seconds", "outcome", "error"); err != nil {
		t.Fatalf("fetch call duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected error call duration > 0, got %f", got)
	}
}
