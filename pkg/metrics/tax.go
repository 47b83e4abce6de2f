package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TaxMetrics tracks calls to the tax service and sync queue outcomes.
type TaxMetrics struct {
	calls     *prometheus.HistogramVec
	documents *prometheus.CounterVec
}

func NewTaxMetrics(reg prometheus.Registerer) *TaxMetrics {
	if reg == nil {
		return &TaxMetrics{}
	}
	calls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "tax_service",
		Name:      "request_duration_seconds",
		Help:      "Duration of tax service requests by operation and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync_queue",
		Name:      "documents_total",
		Help:      "Queued documents processed, by document type and resulting status.",
	}, []string{"document_type", "status"})
	reg.MustRegister(calls, documents)
	return &TaxMetrics{calls: calls, documents: documents}
}

// ObserveCall records one tax service request.
func (m *TaxMetrics) ObserveCall(operation string, duration time.Duration, err error) {
	if m == nil || m.calls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(normalizeLabel(operation), outcome).Observe(duration.Seconds())
}

// IncDocument counts a processed queue record.
func (m *TaxMetrics) IncDocument(documentType, status string) {
	if m == nil || m.documents == nil {
		return
	}
	m.documents.WithLabelValues(normalizeLabel(documentType), normalizeLabel(status)).Inc()
}
