package entitylock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faktur",
		Subsystem: "entitylock",
		Name:      "wait_seconds",
		Help:      "Time spent waiting for an entity lease.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
	}, []string{"kind"})

	lockTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faktur",
		Subsystem: "entitylock",
		Name:      "timeouts_total",
		Help:      "Lease acquisitions abandoned before grant.",
	}, []string{"kind"})
)

func observeWait(kind Kind, d time.Duration) {
	lockWaitSeconds.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func observeTimeout(kind Kind) {
	lockTimeouts.WithLabelValues(string(kind)).Inc()
}
