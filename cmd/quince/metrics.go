package main

import (
	"net/http"

	dockermetrics "github.com/docker/go-metrics"
	"github.com/sirupsen/logrus"
)

// serveMetrics exposes the process's registered docker/go-metrics
// namespaces (the quic endpoint's counters and gauges) as Prometheus text
// format on addr until the process exits.
func serveMetrics(addr string) {
	logrus.Infof("serving metrics on %s/metrics", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", dockermetrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.WithError(err).Error("metrics server stopped")
	}
}
