package s3

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datastore",
		Subsystem: "s3",
		Name:      "operations_total",
		Help:      "Backend operations by name and outcome.",
	}, []string{"op", "outcome"})

	presignTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datastore",
		Subsystem: "s3",
		Name:      "presign_total",
		Help:      "Presigned URI mints by permission and outcome.",
	}, []string{"permission", "outcome"})

	downloadURICacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datastore",
		Subsystem: "s3",
		Name:      "download_uri_cache_events_total",
		Help:      "Download URI cache hits and misses.",
	}, []string{"event"})
)

func recordOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	opsTotal.WithLabelValues(op, outcome).Inc()
}

func recordPresign(perm permission, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	presignTotal.WithLabelValues(perm.String(), outcome).Inc()
}
