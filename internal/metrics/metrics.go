package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotflow",
		Subsystem: "api",
		Name:      "requests_total",
	}, []string{"method", "status"})
	APIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "slotflow",
		Subsystem: "api",
		Name:      "request_duration_seconds",
	}, []string{"method"})
	SessionExpiredCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slotflow",
		Subsystem: "api",
		Name:      "session_expired_total",
	})
	RefreshCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotflow",
		Subsystem: "booking",
		Name:      "refresh_total",
	}, []string{"result"})
	DevServerRequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotflow",
		Subsystem: "devserver",
		Name:      "requests_total",
	}, []string{"method", "route", "status"})
)
