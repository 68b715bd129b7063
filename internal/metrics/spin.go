package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	spinTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spin_requests_total",
			Help: "Total spin requests by result and outcome",
		},
		[]string{"result", "outcome"},
	)

	spinDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spin_request_duration_ms",
			Help:    "Spin request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "outcome"},
	)
)

// RecordSpin 记录一次下注结算的业务指标
// result: "success" | "fail"
// outcome: "win" | "lose" | "none"（未走到结算）
func RecordSpin(result, outcome string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	oc := strings.ToLower(strings.TrimSpace(outcome))
	if oc == "" {
		oc = "none"
	}
	spinTotal.WithLabelValues(res, oc).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	spinDuration.WithLabelValues(res, oc).Observe(durMs)
}
