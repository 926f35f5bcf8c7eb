package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	ScanOutcomePassed  = "passed"
	ScanOutcomeFlagged = "flagged"
	ScanOutcomeFailed  = "failed"
	ScanOutcomeTimeout = "timeout"
)

// ScanMetrics counts how audio scans close out and how often the vendor errors.
type ScanMetrics struct {
	outcomes     *prometheus.CounterVec
	vendorErrors *prometheus.CounterVec
}

func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	if reg == nil {
		return &ScanMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_scan_outcomes_total",
		Help:      "Audio scans that reached a terminal state, by outcome.",
	}, []string{"outcome"})
	vendorErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_scan_vendor_errors_total",
		Help:      "Failed calls to the detection vendor, by operation.",
	}, []string{"operation"})
	reg.MustRegister(outcomes, vendorErrors)
	return &ScanMetrics{outcomes: outcomes, vendorErrors: vendorErrors}
}

func (m *ScanMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *ScanMetrics) IncVendorError(operation string) {
	if m == nil || m.vendorErrors == nil {
		return
	}
	m.vendorErrors.WithLabelValues(normalizeLabel(operation)).Inc()
}
