package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	InitiationsTotal    *prometheus.CounterVec
	OTPSubmissionsTotal *prometheus.CounterVec
	RequestsExpired     prometheus.Counter
	UpstreamAttempts    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		InitiationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_initiations_total",
			Help: "Total verification initiations by resulting status",
		}, []string{"status"}),
		OTPSubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_otp_submissions_total",
			Help: "Total OTP submissions by result",
		}, []string{"result"}),
		RequestsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ekyc_requests_expired_total",
			Help: "Total IN_PROGRESS requests expired by the sweeper",
		}),
		UpstreamAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ekyc_upstream_attempts_total",
			Help: "Total upstream identity authority call attempts, retries included",
		}),
	}
}

func (m *Metrics) RecordInitiation(status string) {
	if m == nil {
		return
	}
	m.InitiationsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordSubmission(result string) {
	if m == nil {
		return
	}
	m.OTPSubmissionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordExpiry() {
	if m == nil {
		return
	}
	m.RequestsExpired.Inc()
}

func (m *Metrics) RecordUpstreamAttempts(n int) {
	if m == nil {
		return
	}
	m.UpstreamAttempts.Add(float64(n))
}
