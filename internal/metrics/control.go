package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	controlConsultTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtp_control_consult_total",
			Help: "Total RTP control consultations by verdict",
		},
		[]string{"verdict"},
	)
)

// RecordControlConsult 记录一次控盘询问
// verdict: "force" | "pass" | "unreachable"
func RecordControlConsult(verdict string) {
	controlConsultTotal.WithLabelValues(verdict).Inc()
}
