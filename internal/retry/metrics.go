package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Write attempts made, including the first.",
		},
		[]string{"op"},
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Subsystem: "retry",
			Name:      "failures_total",
			Help:      "Writes abandoned after a permanent error or exhausted attempts.",
		},
		[]string{"op"},
	)
)
